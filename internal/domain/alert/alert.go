package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nifty-breakout/internal/domain/marketdata"
)

// ErrNotFound 表示警報不存在。
var ErrNotFound = errors.New("alert not found")

// ErrDuplicate 表示儲存層已有相同 ID 的警報，本次寫入未生效。
var ErrDuplicate = errors.New("alert already exists")

// Type 列舉警報類型。
type Type string

const (
	// TypeBreakout 來自自選股掃描，每次觸發都產生新警報。
	TypeBreakout Type = "breakout"
	// TypeNifty50Breakout 來自指數成分股探索，每檔每個交易日最多一筆。
	TypeNifty50Breakout Type = "nifty50_breakout"
)

// Alert 為一次突破觸發所持久化的警報。Read 只能由外部確認動作改為 true。
type Alert struct {
	ID                 string
	Symbol             string
	Name               string
	Type               Type
	TodayHigh          float64
	TodayVolume        int64
	PrevMaxHigh        float64
	PrevMaxVolume      int64
	HighBreakPercent   float64
	VolumeBreakPercent float64
	TodayClose         float64
	TodayChange        float64
	TriggeredAt        time.Time
	Read               bool
}

// WatchlistAlertID 以觸發時間（毫秒）組成識別碼，同一交易日可重複觸發。
func WatchlistAlertID(symbol string, at time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, at.UnixMilli())
}

// DiscoveryAlertID 以交易日組成識別碼，同一交易日只會有一筆。
func DiscoveryAlertID(symbol string, tradingDate time.Time) string {
	return fmt.Sprintf("%s-nifty50-breakout-%s", symbol, marketdata.DateKey(tradingDate))
}

// Validate 基本欄位檢查。
func (a Alert) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	switch a.Type {
	case TypeBreakout, TypeNifty50Breakout:
	default:
		return fmt.Errorf("unsupported alert type: %s", a.Type)
	}
	if a.TriggeredAt.IsZero() {
		return fmt.Errorf("triggered_at is required")
	}
	return nil
}
