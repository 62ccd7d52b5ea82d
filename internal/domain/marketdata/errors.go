package marketdata

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable 表示上游抓取失敗且沒有可用快取。
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInvalidDays 表示歷史資料天數超出 1..365。
	ErrInvalidDays = errors.New("days must be between 1 and 365")
)

// DataUnavailableError 帶有失敗的代號與操作，並保留上游原因。
type DataUnavailableError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrDataUnavailable, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Symbol, ErrDataUnavailable, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Is 讓 errors.Is(err, ErrDataUnavailable) 成立。
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// Unavailable 將上游錯誤包裝為 DataUnavailableError。
func Unavailable(op, symbol string, err error) error {
	return &DataUnavailableError{Symbol: symbol, Op: op, Err: err}
}
