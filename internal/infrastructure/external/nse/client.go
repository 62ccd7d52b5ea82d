package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"nifty-breakout/internal/domain/marketdata"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	BaseURL    = "https://www.nseindia.com"
	IndexName  = "NIFTY 50"
	userAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	sessionTTL = 5 * time.Minute
)

// Config 設定 NSE 用戶端。
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
	Burst             int
}

// Client 讀取 NSE 指數快照與開盤狀態。NSE 需要先取得首頁 cookie 才會回應 API。
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	primedAt time.Time
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
	client.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         strings.TrimRight(cfg.BaseURL, "/") + "/",
	})

	return &Client{
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.WithField("upstream", "nse"),
		now:     time.Now,
	}
}

// primeSession 於 cookie 過期時重新造訪首頁；失敗不阻擋後續 API 呼叫。
func (c *Client) primeSession(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primedAt.IsZero() && c.now().Sub(c.primedAt) < sessionTTL {
		return
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := c.client.R().SetContext(ctx).Get("/"); err != nil {
		c.logger.WithError(err).Debug("prime nse session failed")
		return
	}
	c.primedAt = c.now()
}

func (c *Client) resetSession() {
	c.mu.Lock()
	c.primedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	c.primeSession(ctx)
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("nse request failed")
		return fmt.Errorf("nse %s: %w", endpoint, err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		c.resetSession()
	}
	if resp.IsError() {
		return fmt.Errorf("nse %s: status %d", endpoint, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("nse %s: decode: %w", endpoint, err)
	}
	return nil
}

type indexResponse struct {
	Name string     `json:"name"`
	Data []indexRow `json:"data"`
}

type indexRow struct {
	Priority          int     `json:"priority"`
	Symbol            string  `json:"symbol"`
	Open              float64 `json:"open"`
	DayHigh           float64 `json:"dayHigh"`
	DayLow            float64 `json:"dayLow"`
	LastPrice         float64 `json:"lastPrice"`
	PreviousClose     float64 `json:"previousClose"`
	Change            float64 `json:"change"`
	PChange           float64 `json:"pChange"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	TotalTradedValue  float64 `json:"totalTradedValue"`
	YearHigh          float64 `json:"yearHigh"`
	YearLow           float64 `json:"yearLow"`
	Meta              struct {
		CompanyName string `json:"companyName"`
	} `json:"meta"`
}

// FetchSnapshot 取得 Nifty 50 全部成分股報價（不含指數本身那一列）。
func (c *Client) FetchSnapshot(ctx context.Context) (marketdata.Snapshot, error) {
	var body indexResponse
	endpoint := "/api/equity-stockIndices?index=" + url.QueryEscape(IndexName)
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return marketdata.Snapshot{}, err
	}

	stocks := make([]marketdata.Quote, 0, len(body.Data))
	for _, row := range body.Data {
		if row.Priority == 1 || row.Symbol == "" || row.Symbol == IndexName {
			continue
		}
		stocks = append(stocks, marketdata.Quote{
			Symbol:            strings.ToUpper(row.Symbol),
			Name:              row.Meta.CompanyName,
			LastPrice:         row.LastPrice,
			Change:            row.Change,
			PercentChange:     row.PChange,
			Open:              row.Open,
			DayHigh:           row.DayHigh,
			DayLow:            row.DayLow,
			PreviousClose:     row.PreviousClose,
			TotalTradedVolume: int64(row.TotalTradedVolume),
			TotalTradedValue:  row.TotalTradedValue,
			YearHigh:          row.YearHigh,
			YearLow:           row.YearLow,
		})
	}
	if len(stocks) == 0 {
		return marketdata.Snapshot{}, fmt.Errorf("nse snapshot: no constituents returned")
	}
	return marketdata.Snapshot{Stocks: stocks, FetchedAt: c.now()}, nil
}

type marketStatusResponse struct {
	MarketState []struct {
		Market       string `json:"market"`
		MarketStatus string `json:"marketStatus"`
	} `json:"marketState"`
}

// FetchMarketStatus 回傳現貨市場（Capital Market）是否開盤。
func (c *Client) FetchMarketStatus(ctx context.Context) (bool, error) {
	var body marketStatusResponse
	if err := c.getJSON(ctx, "/api/marketStatus", &body); err != nil {
		return false, err
	}
	for _, m := range body.MarketState {
		if strings.EqualFold(m.Market, "Capital Market") {
			return strings.EqualFold(m.MarketStatus, "Open"), nil
		}
	}
	return false, fmt.Errorf("nse market status: capital market not listed")
}
