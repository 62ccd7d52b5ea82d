package watchlist

import (
	"strings"
	"time"
)

// Symbol 為使用者自選清單中的一檔股票。
type Symbol struct {
	Symbol  string
	Name    string
	AddedAt time.Time
}

// Normalize 去除空白並轉為大寫代號。
func (s Symbol) Normalize() Symbol {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Name = strings.TrimSpace(s.Name)
	return s
}

// SymbolSet 將清單轉為代號集合，供探索模式排除自選股。
func SymbolSet(list []Symbol) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		out[s.Normalize().Symbol] = struct{}{}
	}
	return out
}
