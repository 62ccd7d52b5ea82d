package httpapi

import (
	"time"

	"nifty-breakout/internal/application/baseline"
	"nifty-breakout/internal/application/marketdata"
	"nifty-breakout/internal/application/scanner"
	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/breakout"
	"nifty-breakout/internal/domain/watchlist"
	"nifty-breakout/internal/infrastructure/persistence/sqlite"
)

type apiStatsView struct {
	Total               int64          `json:"total"`
	APICalls            int64          `json:"api_calls"`
	CacheHits           int64          `json:"cache_hits"`
	HitRatePercent      float64        `json:"hit_rate_percent"`
	RecentAPICalls      int            `json:"recent_api_calls"`
	RecentCacheHits     int            `json:"recent_cache_hits"`
	RecentRatePerMinute float64        `json:"recent_rate_per_minute"`
	RecentAPICallsByOp  map[string]int `json:"recent_api_calls_by_op"`
	WindowSeconds       float64        `json:"window_seconds"`
}

func toAPIStatsView(s marketdata.ApiStats) apiStatsView {
	return apiStatsView{
		Total:               s.Total,
		APICalls:            s.APICalls,
		CacheHits:           s.CacheHits,
		HitRatePercent:      s.HitRatePercent,
		RecentAPICalls:      s.RecentAPICalls,
		RecentCacheHits:     s.RecentCacheHits,
		RecentRatePerMinute: s.RecentRatePerMinute,
		RecentAPICallsByOp:  s.RecentAPICallsByOp,
		WindowSeconds:       s.Window.Seconds(),
	}
}

type cacheStatsView struct {
	Size    int      `json:"size"`
	Symbols []string `json:"symbols"`
	Date    string   `json:"date"`
}

func toCacheStatsView(s marketdata.CacheStats) cacheStatsView {
	return cacheStatsView{Size: s.Size, Symbols: nonNil(s.Symbols), Date: s.Date}
}

type snapshotStatsView struct {
	LastRefreshTime      *time.Time `json:"last_refresh_time"`
	SnapshotFetchSuccess bool       `json:"snapshot_fetch_success"`
	SnapshotFetchCount   int64      `json:"snapshot_fetch_count"`
	SnapshotFailCount    int64      `json:"snapshot_fail_count"`
	Cached               bool       `json:"cached"`
	StockCount           int        `json:"stock_count"`
}

func toSnapshotStatsView(s marketdata.SnapshotStats) snapshotStatsView {
	v := snapshotStatsView{
		SnapshotFetchSuccess: s.SnapshotFetchSuccess,
		SnapshotFetchCount:   s.SnapshotFetchCount,
		SnapshotFailCount:    s.SnapshotFailCount,
		Cached:               s.Cached,
		StockCount:           s.StockCount,
	}
	if !s.LastRefreshTime.IsZero() {
		t := s.LastRefreshTime
		v.LastRefreshTime = &t
	}
	return v
}

type baselineStatsView struct {
	Available int      `json:"available"`
	Missing   int      `json:"missing"`
	Date      string   `json:"date"`
	Symbols   []string `json:"symbols"`
}

func toBaselineStatsView(s baseline.Stats) baselineStatsView {
	return baselineStatsView{Available: s.Available, Missing: s.Missing, Date: s.Date, Symbols: nonNil(s.Symbols)}
}

type alertView struct {
	ID                 string    `json:"id"`
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name,omitempty"`
	Type               string    `json:"type"`
	TodayHigh          float64   `json:"today_high"`
	TodayVolume        int64     `json:"today_volume"`
	PrevMaxHigh        float64   `json:"prev_max_high"`
	PrevMaxVolume      int64     `json:"prev_max_volume"`
	HighBreakPercent   float64   `json:"high_break_percent"`
	VolumeBreakPercent float64   `json:"volume_break_percent"`
	TodayClose         float64   `json:"today_close"`
	TodayChange        float64   `json:"today_change"`
	TriggeredAt        time.Time `json:"triggered_at"`
	Read               bool      `json:"read"`
}

func toAlertView(a alertDomain.Alert) alertView {
	return alertView{
		ID:                 a.ID,
		Symbol:             a.Symbol,
		Name:               a.Name,
		Type:               string(a.Type),
		TodayHigh:          a.TodayHigh,
		TodayVolume:        a.TodayVolume,
		PrevMaxHigh:        a.PrevMaxHigh,
		PrevMaxVolume:      a.PrevMaxVolume,
		HighBreakPercent:   a.HighBreakPercent,
		VolumeBreakPercent: a.VolumeBreakPercent,
		TodayClose:         a.TodayClose,
		TodayChange:        a.TodayChange,
		TriggeredAt:        a.TriggeredAt,
		Read:               a.Read,
	}
}

type symbolView struct {
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

func toSymbolView(s watchlist.Symbol) symbolView {
	return symbolView{Symbol: s.Symbol, Name: s.Name, AddedAt: s.AddedAt}
}

type scanResultView struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name,omitempty"`
	TodayHigh          float64 `json:"today_high"`
	TodayVolume        int64   `json:"today_volume"`
	TodayClose         float64 `json:"today_close"`
	TodayChange        float64 `json:"today_change"`
	PrevMaxHigh        float64 `json:"prev_max_high"`
	PrevMaxVolume      int64   `json:"prev_max_volume"`
	HighBreakPercent   float64 `json:"high_break_percent"`
	VolumeBreakPercent float64 `json:"volume_break_percent"`
	HighBreak          bool    `json:"high_break"`
	VolumeBreak        bool    `json:"volume_break"`
	Triggered          bool    `json:"triggered"`
	DataSource         string  `json:"data_source,omitempty"`
	Skipped            bool    `json:"skipped"`
	Reason             string  `json:"reason,omitempty"`
}

func toScanResultView(r breakout.ScanResult) scanResultView {
	return scanResultView{
		Symbol:             r.Symbol,
		Name:               r.Name,
		TodayHigh:          r.TodayHigh,
		TodayVolume:        r.TodayVolume,
		TodayClose:         r.TodayClose,
		TodayChange:        r.TodayChange,
		PrevMaxHigh:        r.PrevMaxHigh,
		PrevMaxVolume:      r.PrevMaxVolume,
		HighBreakPercent:   r.HighBreakPercent,
		VolumeBreakPercent: r.VolumeBreakPercent,
		HighBreak:          r.HighBreak,
		VolumeBreak:        r.VolumeBreak,
		Triggered:          r.Triggered,
		DataSource:         string(r.DataSource),
		Skipped:            r.Skipped,
		Reason:             r.Reason,
	}
}

type discoveryView struct {
	Symbol              string  `json:"symbol"`
	Name                string  `json:"name,omitempty"`
	Breakout            bool    `json:"breakout"`
	HighBreakPercent    float64 `json:"high_break_percent"`
	VolumeBreakPercent  float64 `json:"volume_break_percent"`
	BaselineUnavailable bool    `json:"baseline_unavailable"`
	PossibleBreakout    bool    `json:"possible_breakout"`
	LastPrice           float64 `json:"last_price"`
	DayHigh             float64 `json:"day_high"`
}

func toDiscoveryView(d breakout.Discovery) discoveryView {
	return discoveryView{
		Symbol:              d.Symbol,
		Name:                d.Name,
		Breakout:            d.Breakout,
		HighBreakPercent:    d.HighBreakPercent,
		VolumeBreakPercent:  d.VolumeBreakPercent,
		BaselineUnavailable: d.BaselineUnavailable,
		PossibleBreakout:    d.PossibleBreakout,
		LastPrice:           d.Quote.LastPrice,
		DayHigh:             d.Quote.DayHigh,
	}
}

type cycleView struct {
	ID                string           `json:"id"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	TradingDate       string           `json:"trading_date"`
	MarketOpen        bool             `json:"market_open"`
	SnapshotAvailable bool             `json:"snapshot_available"`
	SnapshotStale     bool             `json:"snapshot_stale"`
	Triggered         int              `json:"triggered"`
	Skipped           int              `json:"skipped"`
	Results           []scanResultView `json:"results"`
	Discoveries       []discoveryView  `json:"discoveries"`
	Alerts            []alertView      `json:"alerts"`
	Error             string           `json:"error,omitempty"`
}

func toCycleView(r scanner.CycleReport, tradingDate string) cycleView {
	v := cycleView{
		ID:                r.ID,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		TradingDate:       tradingDate,
		MarketOpen:        r.MarketOpen,
		SnapshotAvailable: r.SnapshotAvailable,
		SnapshotStale:     r.SnapshotStale,
		Triggered:         r.Triggered,
		Skipped:           r.Skipped,
		Results:           make([]scanResultView, 0, len(r.Results)),
		Discoveries:       make([]discoveryView, 0, len(r.Discoveries)),
		Alerts:            make([]alertView, 0, len(r.Alerts)),
		Error:             r.Err,
	}
	for _, res := range r.Results {
		v.Results = append(v.Results, toScanResultView(res))
	}
	for _, d := range r.Discoveries {
		v.Discoveries = append(v.Discoveries, toDiscoveryView(d))
	}
	for _, a := range r.Alerts {
		v.Alerts = append(v.Alerts, toAlertView(a))
	}
	return v
}

type cycleSummaryView struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	TradingDate string    `json:"trading_date"`
	MarketOpen  bool      `json:"market_open"`
	Symbols     int       `json:"symbols"`
	Triggered   int       `json:"triggered"`
	Skipped     int       `json:"skipped"`
	Alerts      int       `json:"alerts"`
	Error       string    `json:"error,omitempty"`
}

func toCycleSummaryView(c sqlite.CycleSummary) cycleSummaryView {
	return cycleSummaryView{
		ID:          c.ID,
		StartedAt:   c.StartedAt,
		FinishedAt:  c.FinishedAt,
		TradingDate: c.TradingDate,
		MarketOpen:  c.MarketOpen,
		Symbols:     c.Symbols,
		Triggered:   c.Triggered,
		Skipped:     c.Skipped,
		Alerts:      c.Alerts,
		Error:       c.Err,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
