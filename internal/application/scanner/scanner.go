package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"nifty-breakout/internal/domain/breakout"
	"nifty-breakout/internal/domain/marketdata"
	"nifty-breakout/internal/domain/watchlist"

	"golang.org/x/sync/errgroup"
)

const (
	// ReasonNoBaseline 為缺少基準時的略過原因。
	ReasonNoBaseline = "baseline unavailable"
	// ReasonNoTradingDayCandle 表示最新 K 棒早於當前交易日（例如開盤前），該 K 棒已落在基準視窗內，不可拿來比較。
	ReasonNoTradingDayCandle = "no candle for trading date"
)

// MarketData 為掃描器讀取行情的入口（通常是 marketdata.Service）。
type MarketData interface {
	FetchCurrentDay(ctx context.Context, symbol string) (*marketdata.Candle, error)
	GetHistoricalData(ctx context.Context, symbol string, days int) ([]marketdata.Candle, error)
	LastKnownHistory(symbol string) ([]marketdata.Candle, bool)
	HistoryDepth() int
	GetNifty50Snapshot(ctx context.Context) (marketdata.Snapshot, error)
	MarketStatus(ctx context.Context) (bool, error)
	TradingDate() time.Time
	Now() time.Time
}

// Baselines 提供每檔股票的基準，缺少代表無法取得。
type Baselines interface {
	GetBaselines(ctx context.Context, symbols []string) map[string]breakout.Baseline
}

// Scanner 對一批股票執行單次突破判斷。
type Scanner struct {
	data        MarketData
	baselines   Baselines
	concurrency int
}

// NewScanner 建立掃描器；concurrency <= 0 時使用 8。
func NewScanner(data MarketData, baselines Baselines, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Scanner{data: data, baselines: baselines, concurrency: concurrency}
}

type todayData struct {
	candle marketdata.Candle
	source breakout.DataSource
	err    error
}

// ScanMultipleStocks 抓取每檔當日資料（全部結束後才開始分類）並與基準比較。
// 單檔失敗只會產生 Skipped 結果；結果順序不保證與輸入相同。
func (s *Scanner) ScanMultipleStocks(ctx context.Context, stocks []watchlist.Symbol, useIntraday, marketOpen bool) []breakout.ScanResult {
	targets := make([]watchlist.Symbol, 0, len(stocks))
	seen := make(map[string]struct{}, len(stocks))
	for _, st := range stocks {
		st = st.Normalize()
		if _, dup := seen[st.Symbol]; dup || st.Symbol == "" {
			continue
		}
		seen[st.Symbol] = struct{}{}
		targets = append(targets, st)
	}
	if len(targets) == 0 {
		return nil
	}

	symbols := make([]string, len(targets))
	for i, st := range targets {
		symbols[i] = st.Symbol
	}

	var (
		baselines map[string]breakout.Baseline
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		baselines = s.baselines.GetBaselines(ctx, symbols)
	}()

	today := make([]todayData, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			today[i] = s.resolveToday(gctx, sym, useIntraday, marketOpen)
			return nil
		})
	}
	_ = g.Wait()
	wg.Wait()

	at := s.data.Now()
	results := make([]breakout.ScanResult, 0, len(targets))
	for i, st := range targets {
		results = append(results, classify(st, today[i], baselines, at))
	}
	return results
}

// resolveToday 依序嘗試盤中、當日歷史快取、過期歷史快取。
func (s *Scanner) resolveToday(ctx context.Context, symbol string, useIntraday, marketOpen bool) todayData {
	if useIntraday && marketOpen {
		c, err := s.data.FetchCurrentDay(ctx, symbol)
		if err == nil && c != nil {
			return todayData{candle: *c, source: breakout.SourceLive}
		}
	}

	tradingDate := s.data.TradingDate()
	candles, err := s.data.GetHistoricalData(ctx, symbol, s.data.HistoryDepth())
	if err == nil {
		if c, ok := marketdata.Latest(candles); ok {
			return forTradingDate(c, breakout.SourceHistorical, tradingDate)
		}
		err = marketdata.Unavailable("historical", symbol, errors.New("empty history"))
	}

	if stale, ok := s.data.LastKnownHistory(symbol); ok {
		if c, ok := marketdata.Latest(stale); ok {
			return forTradingDate(c, breakout.SourceStale, tradingDate)
		}
	}
	return todayData{err: err}
}

func forTradingDate(c marketdata.Candle, source breakout.DataSource, tradingDate time.Time) todayData {
	if marketdata.DateKey(c.Date) < marketdata.DateKey(tradingDate) {
		return todayData{source: source, err: errors.New(ReasonNoTradingDayCandle)}
	}
	return todayData{candle: c, source: source}
}

func classify(st watchlist.Symbol, td todayData, baselines map[string]breakout.Baseline, at time.Time) breakout.ScanResult {
	if td.err != nil {
		r := breakout.Skip(st.Symbol, st.Name, td.err.Error(), at)
		r.DataSource = td.source
		return r
	}
	b, ok := baselines[st.Symbol]
	if !ok {
		r := breakout.Skip(st.Symbol, st.Name, ReasonNoBaseline, at)
		r.DataSource = td.source
		return r
	}

	c := td.candle
	dec := breakout.Evaluate(c.High, c.Volume, b)
	r := breakout.ScanResult{
		Symbol:             st.Symbol,
		Name:               st.Name,
		TodayHigh:          c.High,
		TodayVolume:        c.Volume,
		TodayClose:         c.Close,
		PrevMaxHigh:        b.MaxHigh5d,
		PrevMaxVolume:      b.MaxVolume5d,
		HighBreakPercent:   dec.HighBreakPercent,
		VolumeBreakPercent: dec.VolumeBreakPercent,
		HighBreak:          dec.HighBreak,
		VolumeBreak:        dec.VolumeBreak,
		Triggered:          dec.Triggered,
		DataSource:         td.source,
		ScannedAt:          at,
	}
	if b.PrevClose > 0 {
		r.TodayChange = c.Close - b.PrevClose
	}
	return r
}

// Discover 分類指數中不在自選清單內的成分股。
func (s *Scanner) Discover(ctx context.Context, snap marketdata.Snapshot, list []watchlist.Symbol) []breakout.Discovery {
	exclude := watchlist.SymbolSet(list)
	candidates := make([]marketdata.Quote, 0, len(snap.Stocks))
	symbols := make([]string, 0, len(snap.Stocks))
	for _, q := range snap.Stocks {
		if _, ok := exclude[q.Symbol]; ok || q.Symbol == "" {
			continue
		}
		candidates = append(candidates, q)
		symbols = append(symbols, q.Symbol)
	}
	if len(candidates) == 0 {
		return nil
	}

	baselines := s.baselines.GetBaselines(ctx, symbols)
	untrusted := snap.Stale || !snap.FetchSuccess
	out := make([]breakout.Discovery, 0, len(candidates))
	for _, q := range candidates {
		b, ok := baselines[q.Symbol]
		out = append(out, breakout.ClassifyDiscovery(q, b, ok, untrusted))
	}
	return out
}
