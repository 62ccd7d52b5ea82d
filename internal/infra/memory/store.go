package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/watchlist"
)

// Store 為記憶體版的警報與自選清單儲存，未設定資料庫時使用；程序結束後資料即消失。
type Store struct {
	mu        sync.RWMutex
	alerts    map[string]alertDomain.Alert
	watchlist map[string]watchlist.Symbol
	now       func() time.Time
}

// NewStore 建立新的記憶體 Store 實例。
func NewStore() *Store {
	return &Store{
		alerts:    make(map[string]alertDomain.Alert),
		watchlist: make(map[string]watchlist.Symbol),
		now:       time.Now,
	}
}

// Get 依 ID 取得警報。
func (s *Store) Get(_ context.Context, id string) (alertDomain.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	return a, ok, nil
}

// Put 寫入警報（相同 ID 會被覆寫，去重由呼叫端負責）。
func (s *Store) Put(_ context.Context, a alertDomain.Alert) error {
	if a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

// List 依觸發時間由新到舊回傳全部警報。
func (s *Store) List(_ context.Context) ([]alertDomain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]alertDomain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

// MarkRead 將警報標記為已讀。
func (s *Store) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("mark read %s: %w", id, alertDomain.ErrNotFound)
	}
	a.Read = true
	s.alerts[id] = a
	return nil
}

// UnreadCount 回傳未讀警報數。
func (s *Store) UnreadCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.alerts {
		if !a.Read {
			n++
		}
	}
	return n, nil
}

// AddSymbol 加入自選股；已存在時只更新名稱。
func (s *Store) AddSymbol(_ context.Context, sym watchlist.Symbol) error {
	sym = sym.Normalize()
	if sym.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.watchlist[sym.Symbol]; ok {
		if sym.Name != "" {
			existing.Name = sym.Name
			s.watchlist[sym.Symbol] = existing
		}
		return nil
	}
	if sym.AddedAt.IsZero() {
		sym.AddedAt = s.now()
	}
	s.watchlist[sym.Symbol] = sym
	return nil
}

// RemoveSymbol 移除自選股，不存在時不視為錯誤。
func (s *Store) RemoveSymbol(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchlist, strings.ToUpper(strings.TrimSpace(symbol)))
	return nil
}

// ListWatchlist 依加入時間回傳自選清單。
func (s *Store) ListWatchlist(_ context.Context) ([]watchlist.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]watchlist.Symbol, 0, len(s.watchlist))
	for _, sym := range s.watchlist {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}
