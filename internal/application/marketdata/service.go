package marketdata

import (
	"context"
	"time"

	domain "nifty-breakout/internal/domain/marketdata"
)

const (
	opCurrentDay   = "current_day"
	opMarketStatus = "market_status"
)

// Options 控制快取的新鮮度與時間來源。
type Options struct {
	HistoricalTTL time.Duration
	SnapshotTTL   time.Duration
	HistoryDepth  int
	StatsWindow   time.Duration
	Calendar      *domain.Calendar
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HistoricalTTL == 0 {
		o.HistoricalTTL = 6 * time.Hour
	}
	if o.SnapshotTTL == 0 {
		o.SnapshotTTL = time.Minute
	}
	if o.HistoryDepth == 0 {
		o.HistoryDepth = 10
	}
	if o.StatsWindow == 0 {
		o.StatsWindow = time.Minute
	}
	if o.Calendar == nil {
		o.Calendar = domain.DefaultCalendar()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service 將上游來源包在快取與呼叫統計之後，是掃描器與基準引擎唯一的資料入口。
type Service struct {
	source     Source
	tracker    *Tracker
	historical *HistoricalCache
	snapshot   *SnapshotCache
	calendar   *domain.Calendar
	now        func() time.Time
	depth      int
}

// NewService 建立行情資料服務。
func NewService(source Source, opts Options) *Service {
	opts = opts.withDefaults()
	tracker := NewTracker(opts.StatsWindow, opts.Now)
	return &Service{
		source:     source,
		tracker:    tracker,
		historical: NewHistoricalCache(source, tracker, opts.Calendar, opts.HistoricalTTL, opts.HistoryDepth, opts.Now),
		snapshot:   NewSnapshotCache(source, tracker, opts.SnapshotTTL, opts.Now),
		calendar:   opts.Calendar,
		now:        opts.Now,
		depth:      opts.HistoryDepth,
	}
}

// GetHistoricalData 回傳最近 days 根日 K（舊到新）。
func (s *Service) GetHistoricalData(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	return s.historical.Get(ctx, symbol, days)
}

// HistoryDepth 為預設抓取深度；以此深度查詢可與基準引擎共用快取。
func (s *Service) HistoryDepth() int {
	return s.depth
}

// LastKnownHistory 讀取可能已過期的歷史資料，供呼叫端自行決定降級策略。
func (s *Service) LastKnownHistory(symbol string) ([]domain.Candle, bool) {
	candles, _, ok := s.historical.LastKnown(symbol)
	if ok {
		s.tracker.RecordCacheHit(opHistorical)
	}
	return candles, ok
}

// HistoricalCacheStats 回傳歷史快取摘要。
func (s *Service) HistoricalCacheStats() CacheStats {
	return s.historical.Stats()
}

// InvalidateHistorical 清除歷史快取。
func (s *Service) InvalidateHistorical() {
	s.historical.Invalidate()
}

// GetNifty50Snapshot 回傳指數快照（可能為 Stale）。
func (s *Service) GetNifty50Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return s.snapshot.Get(ctx)
}

// Nifty50SnapshotStats 回傳快照抓取統計。
func (s *Service) Nifty50SnapshotStats() SnapshotStats {
	return s.snapshot.Stats()
}

// FetchCurrentDay 直接向上游取得盤中資料，不經快取。
func (s *Service) FetchCurrentDay(ctx context.Context, symbol string) (*domain.Candle, error) {
	s.tracker.RecordAPICall(opCurrentDay)
	c, err := s.source.FetchCurrentDay(ctx, symbol)
	if err != nil {
		return nil, domain.Unavailable(opCurrentDay, symbol, err)
	}
	if c != nil && c.Symbol == "" {
		c.Symbol = symbol
	}
	return c, nil
}

// MarketStatus 查詢是否開盤；查詢失敗一律視為收盤。
func (s *Service) MarketStatus(ctx context.Context) (bool, error) {
	s.tracker.RecordAPICall(opMarketStatus)
	open, err := s.source.FetchMarketStatus(ctx)
	if err != nil {
		return false, domain.Unavailable(opMarketStatus, "", err)
	}
	return open, nil
}

// ApiStats 回傳呼叫統計。
func (s *Service) ApiStats() ApiStats {
	return s.tracker.Stats()
}

// TradingDate 回傳目前的交易日。
func (s *Service) TradingDate() time.Time {
	return s.calendar.TradingDate(s.now())
}

// Now 回傳服務使用的時間來源。
func (s *Service) Now() time.Time {
	return s.now()
}
