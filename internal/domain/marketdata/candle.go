package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Candle 描述單一股票的日 K/成交量資料。已完成交易日的 K 棒寫入快取後不再變動。
type Candle struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64 // 成交量（股）
}

// ValidationError 收集多個驗證失敗原因。
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("candle validation failed: %v", e.Reasons)
}

// Validate 檢查欄位是否符合基本完整性條件。
func (c Candle) Validate() error {
	var reasons []string

	if c.Symbol == "" {
		reasons = append(reasons, "symbol is required")
	}

	if c.Date.IsZero() {
		reasons = append(reasons, "date is required")
	}

	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
		reasons = append(reasons, "price fields must be >= 0")
	}

	if c.High < maxFloat64(c.Open, c.Close, c.Low) {
		reasons = append(reasons, "high must be >= open/close/low")
	}

	if c.Low > minFloat64(c.Open, c.Close, c.High) {
		reasons = append(reasons, "low must be <= open/close/high")
	}

	if c.Volume < 0 {
		reasons = append(reasons, "volume must be >= 0")
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}

	return nil
}

// SortCandles 依日期遞增排序（舊到新）。
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
}

// Latest 回傳最新一根 K 棒。
func Latest(candles []Candle) (Candle, bool) {
	if len(candles) == 0 {
		return Candle{}, false
	}
	return candles[len(candles)-1], true
}

func maxFloat64(values ...float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func minFloat64(values ...float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// IsValidationError 檢查錯誤是否為 K 棒的驗證錯誤。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
