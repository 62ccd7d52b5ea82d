package baseline

import (
	"context"
	"sort"
	"sync"
	"time"

	"nifty-breakout/internal/domain/breakout"
	"nifty-breakout/internal/domain/marketdata"

	"golang.org/x/sync/errgroup"
)

// HistoryProvider 為基準引擎讀取日 K 的來源（通常是 marketdata.Service）。
type HistoryProvider interface {
	GetHistoricalData(ctx context.Context, symbol string, days int) ([]marketdata.Candle, error)
	HistoryDepth() int
	TradingDate() time.Time
}

// Stats 為基準快取的唯讀摘要。
type Stats struct {
	Available int
	Missing   int
	Date      string
	Symbols   []string
}

// Config 控制基準計算。
type Config struct {
	Lookback     int
	UniverseSize int
	Concurrency  int
}

// Engine 以交易日為單位快取每檔股票的基準；換日後整批重算。
type Engine struct {
	history HistoryProvider
	cfg     Config

	mu        sync.Mutex
	date      time.Time
	baselines map[string]breakout.Baseline
}

// NewEngine 建立基準引擎。
func NewEngine(history HistoryProvider, cfg Config) *Engine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 5
	}
	if cfg.UniverseSize <= 0 {
		cfg.UniverseSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Engine{history: history, cfg: cfg, baselines: make(map[string]breakout.Baseline)}
}

// GetBaselines 回傳有基準的股票；抓不到歷史資料的股票不會出現在結果中。
func (e *Engine) GetBaselines(ctx context.Context, symbols []string) map[string]breakout.Baseline {
	date := e.history.TradingDate()
	out := make(map[string]breakout.Baseline, len(symbols))
	pending := e.collect(date, symbols, out)
	if len(pending) == 0 {
		return out
	}

	// 多抓一天，當日 K 棒若已出現在歷史資料中仍能湊滿窗口。
	days := e.cfg.Lookback + 1
	if depth := e.history.HistoryDepth(); depth > days {
		days = depth
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, sym := range pending {
		sym := sym
		g.Go(func() error {
			candles, err := e.history.GetHistoricalData(gctx, sym, days)
			if err != nil {
				return nil
			}
			b, ok := Compute(sym, candles, date, e.cfg.Lookback)
			if !ok {
				return nil
			}
			mu.Lock()
			out[sym] = b
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	if e.date.Equal(date) {
		for _, sym := range pending {
			if b, ok := out[sym]; ok {
				e.baselines[sym] = b
			}
		}
	}
	e.mu.Unlock()
	return out
}

// collect 從快取取出已計算的基準，回傳仍需計算的代號；交易日變更時先清空快取。
func (e *Engine) collect(date time.Time, symbols []string, out map[string]breakout.Baseline) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.date.Equal(date) {
		e.date = date
		e.baselines = make(map[string]breakout.Baseline)
	}

	seen := make(map[string]struct{}, len(symbols))
	var pending []string
	for _, sym := range symbols {
		if _, dup := seen[sym]; dup || sym == "" {
			continue
		}
		seen[sym] = struct{}{}
		if b, ok := e.baselines[sym]; ok {
			out[sym] = b
			continue
		}
		pending = append(pending, sym)
	}
	return pending
}

// Stats 回傳當前交易日的基準覆蓋率。
func (e *Engine) Stats() Stats {
	date := e.history.TradingDate()
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Date: marketdata.DateKey(date), Symbols: []string{}}
	if e.date.Equal(date) {
		for sym := range e.baselines {
			s.Symbols = append(s.Symbols, sym)
		}
	}
	sort.Strings(s.Symbols)
	s.Available = len(s.Symbols)
	s.Missing = e.cfg.UniverseSize - s.Available
	if s.Missing < 0 {
		s.Missing = 0
	}
	return s
}

// Compute 取 date 之前最近 lookback 根 K 棒計算最高價與最大量；沒有任何可用 K 棒時回傳 false。
func Compute(symbol string, candles []marketdata.Candle, date time.Time, lookback int) (breakout.Baseline, bool) {
	cutoff := marketdata.DateKey(date)
	prior := make([]marketdata.Candle, 0, len(candles))
	for _, c := range candles {
		if marketdata.DateKey(c.Date) < cutoff {
			prior = append(prior, c)
		}
	}
	if len(prior) == 0 {
		return breakout.Baseline{}, false
	}
	marketdata.SortCandles(prior)
	if len(prior) > lookback {
		prior = prior[len(prior)-lookback:]
	}

	b := breakout.Baseline{
		Symbol:       symbol,
		Days:         len(prior),
		PrevClose:    prior[len(prior)-1].Close,
		ComputedDate: date,
	}
	for _, c := range prior {
		if c.High > b.MaxHigh5d {
			b.MaxHigh5d = c.High
		}
		if c.Volume > b.MaxVolume5d {
			b.MaxVolume5d = c.Volume
		}
	}
	return b, true
}
