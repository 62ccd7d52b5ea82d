package marketdata

import (
	"strings"
	"time"
)

// Quote 為指數快照中的單一成分股報價列。
type Quote struct {
	Symbol            string
	Name              string
	LastPrice         float64
	Change            float64
	PercentChange     float64
	Open              float64
	DayHigh           float64
	DayLow            float64
	PreviousClose     float64
	TotalTradedVolume int64
	TotalTradedValue  float64
	YearHigh          float64
	YearLow           float64
}

// Snapshot 是一次抓取得到的完整指數成分股報價。
// Stale=true 代表最新一次抓取失敗，回傳的是超過新鮮期限的舊資料。
type Snapshot struct {
	Stocks       []Quote
	FetchedAt    time.Time
	FetchSuccess bool
	Stale        bool
}

// Find 依代號查詢成分股報價。
func (s Snapshot) Find(symbol string) (Quote, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range s.Stocks {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}

// Symbols 回傳快照中的成分股代號，順序與快照相同。
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Stocks))
	for _, q := range s.Stocks {
		out = append(out, q.Symbol)
	}
	return out
}

// Clone 複製成分股切片，避免呼叫端改動快取內容。
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Stocks = append([]Quote(nil), s.Stocks...)
	return cp
}
