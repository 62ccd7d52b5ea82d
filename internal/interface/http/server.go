package httpapi

import (
	"context"
	"io"
	"net/http"
	"sync"

	"nifty-breakout/internal"
	"nifty-breakout/internal/application/baseline"
	"nifty-breakout/internal/application/marketdata"
	"nifty-breakout/internal/application/scanner"
	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/watchlist"
	"nifty-breakout/internal/infrastructure/persistence/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	errCodeBadRequest = "BAD_REQUEST"
	errCodeNotFound   = "NOT_FOUND"
	errCodeConflict   = "SCAN_IN_PROGRESS"
	errCodeUpstream   = "UPSTREAM_UNAVAILABLE"
	errCodeInternal   = "INTERNAL_ERROR"
)

// StatsProvider 提供行情快取與呼叫統計。
type StatsProvider interface {
	ApiStats() marketdata.ApiStats
	HistoricalCacheStats() marketdata.CacheStats
	Nifty50SnapshotStats() marketdata.SnapshotStats
}

// BaselineStats 提供基準快取摘要。
type BaselineStats interface {
	Stats() baseline.Stats
}

// AlertStore 為警報查詢與已讀標記。
type AlertStore interface {
	List(ctx context.Context) ([]alertDomain.Alert, error)
	MarkRead(ctx context.Context, id string) error
	UnreadCount(ctx context.Context) (int, error)
}

// WatchlistStore 為自選清單維護。
type WatchlistStore interface {
	ListWatchlist(ctx context.Context) ([]watchlist.Symbol, error)
	AddSymbol(ctx context.Context, sym watchlist.Symbol) error
	RemoveSymbol(ctx context.Context, symbol string) error
}

// CycleRunner 執行一次掃描週期。
type CycleRunner interface {
	Run(ctx context.Context) (scanner.CycleReport, error)
}

// CycleHistory 讀取已保存的週期摘要。
type CycleHistory interface {
	RecentCycles(ctx context.Context, limit int) ([]sqlite.CycleSummary, error)
}

// Pinger 用於健康檢查資料庫連線。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps 為 Server 的所有協作者；DB 與 Cycles 可為 nil。
type Deps struct {
	Market    StatsProvider
	Baselines BaselineStats
	Alerts    AlertStore
	Watchlist WatchlistStore
	Runner    CycleRunner
	Cycles    CycleHistory
	DB        Pinger
	Log       logrus.FieldLogger
}

// Server 為掃描器的運維 HTTP 介面。
type Server struct {
	deps   Deps
	log    logrus.FieldLogger
	router *gin.Engine

	scanMu sync.Mutex
}

// NewServer 建立 gin router 並註冊路由。
func NewServer(deps Deps) *Server {
	log := deps.Log
	if internal.IsNil(log) {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if internal.IsNil(deps.DB) {
		deps.DB = nil
	}
	if internal.IsNil(deps.Cycles) {
		deps.Cycles = nil
	}
	s := &Server{deps: deps, log: log}
	s.router = s.routes()
	return s
}

// Handler 回傳 http.Handler。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), s.recovery())

	api := r.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)

	api.GET("/alerts", s.handleListAlerts)
	api.GET("/alerts/unread", s.handleUnreadCount)
	api.POST("/alerts/:id/read", s.handleMarkRead)

	api.GET("/watchlist", s.handleListWatchlist)
	api.POST("/watchlist", s.handleAddSymbol)
	api.DELETE("/watchlist/:symbol", s.handleRemoveSymbol)

	api.POST("/scan", s.handleScan)
	api.GET("/cycles", s.handleRecentCycles)
	return r
}
