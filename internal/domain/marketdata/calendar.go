package marketdata

import (
	"fmt"
	"time"
)

// IST 為 NSE 所在時區（固定 +05:30，不依賴系統 tzdata）。
var IST = time.FixedZone("IST", 5*60*60+30*60)

const dateLayout = "2006-01-02"

// Calendar 決定交易日邊界；所有「今天」的判斷都必須經過這裡。
type Calendar struct {
	loc      *time.Location
	holidays map[string]struct{}
}

// NewCalendar 建立交易日曆，holidays 為 YYYY-MM-DD 格式的休市日。
func NewCalendar(holidays []string) (*Calendar, error) {
	c := &Calendar{loc: IST, holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		d, err := time.ParseInLocation(dateLayout, h, IST)
		if err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", h, err)
		}
		c.holidays[d.Format(dateLayout)] = struct{}{}
	}
	return c, nil
}

var defaultCalendar = &Calendar{loc: IST, holidays: map[string]struct{}{}}

// DefaultCalendar 僅排除週末。
func DefaultCalendar() *Calendar { return defaultCalendar }

// TradingDate 以預設日曆計算交易日。
func TradingDate(instant time.Time) time.Time {
	return defaultCalendar.TradingDate(instant)
}

// TradingDate 將時間點轉為交易所當地日期（零點），遇到週末或休市日回推到最近的交易日。
func (c *Calendar) TradingDate(instant time.Time) time.Time {
	t := instant.In(c.loc)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	for i := 0; i < 14 && !c.IsTradingDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// IsTradingDay 判斷該日期是否開市。
func (c *Calendar) IsTradingDay(date time.Time) bool {
	d := date.In(c.loc)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.holidays[d.Format(dateLayout)]
	return !closed
}

// DateKey 將交易日格式化為 YYYY-MM-DD。
func DateKey(date time.Time) string {
	return date.In(IST).Format(dateLayout)
}

// SameDay 判斷兩個時間點是否落在同一個交易所當地日期。
func SameDay(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}
