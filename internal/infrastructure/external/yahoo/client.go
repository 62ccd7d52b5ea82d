package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nifty-breakout/internal/domain/marketdata"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const BaseURL = "https://query1.finance.yahoo.com"

// Config 設定 Yahoo Finance 用戶端。
type Config struct {
	BaseURL           string
	SymbolSuffix      string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
	Burst             int
}

// Client 透過 chart API 取得日 K。
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	suffix  string
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewClient(cfg Config, logger logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetHeader("User-Agent", "Mozilla/5.0")

	return &Client{
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		suffix:  cfg.SymbolSuffix,
		logger:  logger.WithField("upstream", "yahoo"),
		now:     time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// chartRange 依需要的交易日數挑選最小的 range 參數。
func chartRange(days int) string {
	switch {
	case days <= 1:
		return "1d"
	case days <= 15:
		return "1mo"
	case days <= 45:
		return "3mo"
	case days <= 90:
		return "6mo"
	case days <= 180:
		return "1y"
	default:
		return "2y"
	}
}

func (c *Client) chart(ctx context.Context, symbol, rng string) ([]marketdata.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := "/v8/finance/chart/" + url.PathEscape(symbol+c.suffix)
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"range": rng, "interval": "1d"}).
		Get(endpoint)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("yahoo request failed")
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	var body chartResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: decode (status %d): %w", symbol, resp.StatusCode(), err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yahoo chart %s: status %d", symbol, resp.StatusCode())
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: empty result", symbol)
	}
	return toCandles(symbol, body.Chart.Result[0]), nil
}

// toCandles 丟棄任何欄位為 null 的資料列（停牌或尚未成交）。
func toCandles(symbol string, r chartResult) []marketdata.Candle {
	q := r.Indicators.Quote[0]
	out := make([]marketdata.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) || i >= len(q.Volume) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil || q.Volume[i] == nil {
			continue
		}
		out = append(out, marketdata.Candle{
			Symbol: symbol,
			Date:   marketdata.TradingDate(time.Unix(ts, 0)),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Volume: *q.Volume[i],
		})
	}
	return out
}

// FetchHistorical 回傳最近 days 根日 K（舊到新）。
func (c *Client) FetchHistorical(ctx context.Context, symbol string, days int) ([]marketdata.Candle, error) {
	candles, err := c.chart(ctx, symbol, chartRange(days))
	if err != nil {
		return nil, err
	}
	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

// FetchCurrentDay 回傳今日盤中 K 棒；最新一根不是今天時回傳 nil。
func (c *Client) FetchCurrentDay(ctx context.Context, symbol string) (*marketdata.Candle, error) {
	candles, err := c.chart(ctx, symbol, "1d")
	if err != nil {
		return nil, err
	}
	latest, ok := marketdata.Latest(candles)
	if !ok || !marketdata.SameDay(latest.Date, c.now()) {
		return nil, nil
	}
	return &latest, nil
}
