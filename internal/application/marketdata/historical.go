package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "nifty-breakout/internal/domain/marketdata"

	"golang.org/x/sync/singleflight"
)

const (
	maxHistoryDays = 365
	opHistorical   = "historical"
)

// CacheStats 為歷史 K 棒快取的唯讀摘要。
type CacheStats struct {
	Size    int
	Symbols []string
	Date    string
}

type historyEntry struct {
	day       time.Time
	depth     int
	fetchedAt time.Time
	candles   []domain.Candle
}

// HistoricalCache 以 (symbol, 交易日) 為單位快取日 K；換日後舊資料視為未命中，只剩 LastKnown 讀得到。
type HistoricalCache struct {
	source   Source
	tracker  *Tracker
	calendar *domain.Calendar
	now      func() time.Time
	ttl      time.Duration
	depth    int

	mu      sync.RWMutex
	entries map[string]historyEntry
	flight  singleflight.Group
}

// NewHistoricalCache 建立歷史 K 棒快取；depth 為未命中時最少抓取的天數。
func NewHistoricalCache(source Source, tracker *Tracker, calendar *domain.Calendar, ttl time.Duration, depth int, now func() time.Time) *HistoricalCache {
	if calendar == nil {
		calendar = domain.DefaultCalendar()
	}
	if now == nil {
		now = time.Now
	}
	return &HistoricalCache{
		source:   source,
		tracker:  tracker,
		calendar: calendar,
		now:      now,
		ttl:      ttl,
		depth:    depth,
		entries:  make(map[string]historyEntry),
	}
}

// Get 回傳最近 days 根日 K（舊到新）。未命中時向上游抓取，失敗回傳 DataUnavailableError。
func (c *HistoricalCache) Get(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	if days < 1 || days > maxHistoryDays {
		return nil, fmt.Errorf("get historical %s (%d): %w", symbol, days, domain.ErrInvalidDays)
	}
	now := c.now()
	today := c.calendar.TradingDate(now)

	if candles, ok := c.lookup(symbol, days, today, now); ok {
		c.tracker.RecordCacheHit(opHistorical)
		return candles, nil
	}

	depth := days
	if c.depth > depth {
		depth = c.depth
	}
	if depth > maxHistoryDays {
		depth = maxHistoryDays
	}
	key := fmt.Sprintf("%s|%s|%d", symbol, domain.DateKey(today), depth)
	v, err := shared(ctx, &c.flight, key, func(fetchCtx context.Context) (interface{}, error) {
		c.tracker.RecordAPICall(opHistorical)
		raw, err := c.source.FetchHistorical(fetchCtx, symbol, depth)
		if err != nil {
			return nil, domain.Unavailable(opHistorical, symbol, err)
		}
		candles, dropped := sanitize(symbol, raw)
		if len(candles) == 0 {
			return nil, domain.Unavailable(opHistorical, symbol, fmt.Errorf("no valid candles returned (%d of %d invalid)", dropped, len(raw)))
		}
		c.store(symbol, historyEntry{day: today, depth: depth, fetchedAt: c.now(), candles: candles})
		return candles, nil
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, domain.Unavailable(opHistorical, symbol, err)
		}
		return nil, err
	}
	return tail(v.([]domain.Candle), days), nil
}

func (c *HistoricalCache) lookup(symbol string, days int, today, now time.Time) ([]domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// 前一交易日的資料不算命中，換日即失效。
	e, ok := c.entries[symbol]
	if !ok || !e.day.Equal(today) || e.depth < days {
		return nil, false
	}
	if c.ttl > 0 && now.Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return tail(e.candles, days), true
}

func (c *HistoricalCache) store(symbol string, e historyEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = e
}

// LastKnown 回傳最後一次成功抓取的資料，不論是否過期；ok=false 代表從未抓到。
func (c *HistoricalCache) LastKnown(symbol string) ([]domain.Candle, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok {
		return nil, time.Time{}, false
	}
	return tail(e.candles, len(e.candles)), e.fetchedAt, true
}

// Invalidate 清除全部快取。
func (c *HistoricalCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]historyEntry)
}

// Stats 回傳當前交易日的快取內容摘要。
func (c *HistoricalCache) Stats() CacheStats {
	today := c.calendar.TradingDate(c.now())
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := make([]string, 0, len(c.entries))
	for sym, e := range c.entries {
		if e.day.Equal(today) {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return CacheStats{Size: len(symbols), Symbols: symbols, Date: domain.DateKey(today)}
}

// tail 複製最後 n 筆，避免呼叫端改動快取。
func tail(candles []domain.Candle, n int) []domain.Candle {
	if n > len(candles) {
		n = len(candles)
	}
	return append([]domain.Candle(nil), candles[len(candles)-n:]...)
}
