package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handlePing(c *gin.Context) {
	writeOK(c, http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
		"status":    "alive",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "using_memory"
	if s.deps.DB != nil {
		dbStatus = "ok"
		if err := s.deps.DB.PingContext(c.Request.Context()); err != nil {
			dbStatus = "error: " + err.Error()
		}
	}

	body := gin.H{
		"health": "ok",
		"db":     dbStatus,
		"time":   time.Now().Format(time.RFC3339),
	}
	if s.deps.Market != nil {
		snap := s.deps.Market.Nifty50SnapshotStats()
		body["snapshot_fetch_success"] = snap.SnapshotFetchSuccess
	}
	writeOK(c, http.StatusOK, body)
}

// handleStats 回傳上游呼叫、歷史快取、快照與基準快取的即時統計。
func (s *Server) handleStats(c *gin.Context) {
	body := gin.H{}
	if s.deps.Market != nil {
		body["api"] = toAPIStatsView(s.deps.Market.ApiStats())
		body["historical_cache"] = toCacheStatsView(s.deps.Market.HistoricalCacheStats())
		body["snapshot"] = toSnapshotStatsView(s.deps.Market.Nifty50SnapshotStats())
	}
	if s.deps.Baselines != nil {
		body["baselines"] = toBaselineStatsView(s.deps.Baselines.Stats())
	}
	writeOK(c, http.StatusOK, body)
}
