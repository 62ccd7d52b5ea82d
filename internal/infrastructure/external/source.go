package external

import (
	"context"

	"nifty-breakout/internal/domain/marketdata"
	"nifty-breakout/internal/infrastructure/external/nse"
	"nifty-breakout/internal/infrastructure/external/yahoo"
)

// Source 組合 NSE（快照、開盤狀態）與 Yahoo（日 K）成為單一行情來源。
type Source struct {
	nse   *nse.Client
	yahoo *yahoo.Client
}

func NewSource(nseClient *nse.Client, yahooClient *yahoo.Client) *Source {
	return &Source{nse: nseClient, yahoo: yahooClient}
}

func (s *Source) FetchCurrentDay(ctx context.Context, symbol string) (*marketdata.Candle, error) {
	return s.yahoo.FetchCurrentDay(ctx, symbol)
}

func (s *Source) FetchHistorical(ctx context.Context, symbol string, days int) ([]marketdata.Candle, error) {
	return s.yahoo.FetchHistorical(ctx, symbol, days)
}

func (s *Source) FetchSnapshot(ctx context.Context) (marketdata.Snapshot, error) {
	return s.nse.FetchSnapshot(ctx)
}

func (s *Source) FetchMarketStatus(ctx context.Context) (bool, error) {
	return s.nse.FetchMarketStatus(ctx)
}
