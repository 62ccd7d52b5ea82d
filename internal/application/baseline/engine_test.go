package baseline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nifty-breakout/internal/domain/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu      sync.Mutex
	date    time.Time
	calls   atomic.Int32
	candles map[string][]marketdata.Candle
	fail    map[string]bool
}

func (f *fakeHistory) GetHistoricalData(_ context.Context, symbol string, days int) ([]marketdata.Candle, error) {
	f.calls.Add(1)
	if f.fail[symbol] {
		return nil, marketdata.Unavailable("historical", symbol, errors.New("boom"))
	}
	c := f.candles[symbol]
	if len(c) > days {
		c = c[len(c)-days:]
	}
	return c, nil
}

func (f *fakeHistory) HistoryDepth() int { return 10 }

func (f *fakeHistory) TradingDate() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date
}

func (f *fakeHistory) setDate(d time.Time) {
	f.mu.Lock()
	f.date = d
	f.mu.Unlock()
}

func day(d int) time.Time {
	return time.Date(2024, 12, d, 0, 0, 0, 0, marketdata.IST)
}

func candle(d int, high float64, vol int64) marketdata.Candle {
	return marketdata.Candle{Symbol: "X", Date: day(d), Open: high - 1, High: high, Low: high - 2, Close: high - 0.5, Volume: vol}
}

func TestCompute_UsesTrailingWindowBeforeDate(t *testing.T) {
	candles := []marketdata.Candle{
		candle(2, 500, 9000), // outside the 5-day window
		candle(3, 101, 100),
		candle(4, 105, 300),
		candle(5, 103, 200),
		candle(6, 104, 250),
		candle(9, 102, 150),
		candle(10, 999, 99999), // today, excluded
	}

	b, ok := Compute("X", candles, day(10), 5)
	require.True(t, ok)
	assert.Equal(t, 105.0, b.MaxHigh5d)
	assert.Equal(t, int64(300), b.MaxVolume5d)
	assert.Equal(t, 5, b.Days)
	assert.Equal(t, 101.5, b.PrevClose)
	assert.False(t, b.Sparse(5))
	assert.Equal(t, day(10), b.ComputedDate)
}

func TestCompute_SparseAndEmpty(t *testing.T) {
	b, ok := Compute("X", []marketdata.Candle{candle(9, 50, 10), candle(6, 60, 5)}, day(10), 5)
	require.True(t, ok)
	assert.Equal(t, 2, b.Days)
	assert.True(t, b.Sparse(5))
	assert.Equal(t, 60.0, b.MaxHigh5d)
	assert.Equal(t, int64(10), b.MaxVolume5d)

	_, ok = Compute("X", []marketdata.Candle{candle(10, 50, 10)}, day(10), 5)
	assert.False(t, ok, "only today's candle is not a baseline")

	_, ok = Compute("X", nil, day(10), 5)
	assert.False(t, ok)
}

func TestEngine_GetBaselinesCachesPerDay(t *testing.T) {
	hist := &fakeHistory{
		date: day(10),
		candles: map[string][]marketdata.Candle{
			"TCS":  {candle(5, 100, 1000), candle(6, 110, 900)},
			"INFY": {candle(9, 50, 10)},
		},
		fail: map[string]bool{"WIPRO": true},
	}
	eng := NewEngine(hist, Config{Lookback: 5, UniverseSize: 4})
	ctx := context.Background()

	got := eng.GetBaselines(ctx, []string{"TCS", "INFY", "WIPRO", "NONE", "TCS"})
	require.Len(t, got, 2)
	assert.Equal(t, 110.0, got["TCS"].MaxHigh5d)
	_, ok := got["WIPRO"]
	assert.False(t, ok, "fetch failure means absent, not zero")
	_, ok = got["NONE"]
	assert.False(t, ok)
	assert.Equal(t, int32(4), hist.calls.Load())

	stats := eng.Stats()
	assert.Equal(t, 2, stats.Available)
	assert.Equal(t, 2, stats.Missing)
	assert.Equal(t, "2024-12-10", stats.Date)
	assert.Equal(t, []string{"INFY", "TCS"}, stats.Symbols)

	// cached symbols are not refetched; missing ones are retried
	eng.GetBaselines(ctx, []string{"TCS", "INFY", "WIPRO"})
	assert.Equal(t, int32(5), hist.calls.Load())

	hist.setDate(day(11))
	assert.Equal(t, 0, eng.Stats().Available, "previous day baselines are not reported")
	got = eng.GetBaselines(ctx, []string{"TCS"})
	assert.Equal(t, day(11), got["TCS"].ComputedDate)
	assert.Equal(t, int32(6), hist.calls.Load())
}

func TestEngine_ConcurrentCallers(t *testing.T) {
	hist := &fakeHistory{
		date:    day(10),
		candles: map[string][]marketdata.Candle{"TCS": {candle(9, 100, 1000)}},
	}
	eng := NewEngine(hist, Config{Concurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := eng.GetBaselines(context.Background(), []string{"TCS"})
			assert.Equal(t, 100.0, got["TCS"].MaxHigh5d)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, eng.Stats().Available)
	assert.Equal(t, 49, eng.Stats().Missing)
}
