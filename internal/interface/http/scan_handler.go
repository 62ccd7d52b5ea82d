package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"nifty-breakout/internal/application/scanner"
	"nifty-breakout/internal/domain/marketdata"

	"github.com/gin-gonic/gin"
)

// handleScan 手動觸發一次掃描週期；同一時間只允許一個手動週期。
func (s *Server) handleScan(c *gin.Context) {
	if !s.scanMu.TryLock() {
		writeError(c, http.StatusConflict, errCodeConflict, "a scan is already running")
		return
	}
	defer s.scanMu.Unlock()

	report, err := s.deps.Runner.Run(c.Request.Context())
	view := toCycleView(report, dateKey(report))
	if err != nil {
		status, code := http.StatusInternalServerError, errCodeInternal
		if errors.Is(err, scanner.ErrUpstreamUnavailable) {
			status, code = http.StatusBadGateway, errCodeUpstream
		}
		c.AbortWithStatusJSON(status, gin.H{
			"success":    false,
			"error":      err.Error(),
			"error_code": code,
			"cycle":      view,
		})
		return
	}
	writeOK(c, http.StatusOK, gin.H{"cycle": view})
}

func (s *Server) handleRecentCycles(c *gin.Context) {
	if s.deps.Cycles == nil {
		writeOK(c, http.StatusOK, gin.H{"cycles": []cycleSummaryView{}})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, errCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.deps.Cycles.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	out := make([]cycleSummaryView, 0, len(list))
	for _, cs := range list {
		out = append(out, toCycleSummaryView(cs))
	}
	writeOK(c, http.StatusOK, gin.H{"cycles": out})
}

func dateKey(r scanner.CycleReport) string {
	if r.TradingDate.IsZero() {
		return ""
	}
	return marketdata.DateKey(r.TradingDate)
}
