package marketdata

import (
	"context"
	"time"

	domain "nifty-breakout/internal/domain/marketdata"

	"golang.org/x/sync/singleflight"
)

// upstreamTimeout 為共用上游呼叫的上限；與任何單一呼叫端的 ctx 無關。
var upstreamTimeout = 30 * time.Second

// Source 抽象化外部行情來源（NSE、Yahoo 等），本身不做任何快取。
// 所有方法都可能回傳暫時性的網路錯誤。
type Source interface {
	// FetchCurrentDay 回傳當日盤中 K 棒；nil 且無錯誤代表沒有盤中資料。
	FetchCurrentDay(ctx context.Context, symbol string) (*domain.Candle, error)
	FetchHistorical(ctx context.Context, symbol string, days int) ([]domain.Candle, error)
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
	FetchMarketStatus(ctx context.Context) (bool, error)
}

// sanitize 排除未通過驗證的 K 棒並依日期排序，回傳被排除的數量。
func sanitize(symbol string, candles []domain.Candle) ([]domain.Candle, int) {
	out := make([]domain.Candle, 0, len(candles))
	dropped := 0
	for _, c := range candles {
		if c.Symbol == "" {
			c.Symbol = symbol
		}
		if err := c.Validate(); err != nil {
			dropped++
			continue
		}
		out = append(out, c)
	}
	domain.SortCandles(out)
	return out, dropped
}

// shared 讓同一 key 的呼叫共用一次上游請求。請求本身不受呼叫端取消影響，
// 呼叫端的 ctx 只決定自己是否放棄等待。
func shared(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := g.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), upstreamTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
