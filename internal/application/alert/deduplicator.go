package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/breakout"
	"nifty-breakout/internal/domain/marketdata"
)

// Repository 為警報的鍵值儲存。
type Repository interface {
	Get(ctx context.Context, id string) (alertDomain.Alert, bool, error)
	Put(ctx context.Context, a alertDomain.Alert) error
	List(ctx context.Context) ([]alertDomain.Alert, error)
}

// Deduplicator 是唯一指派警報識別碼並寫入儲存的地方；同一識別碼的寫入會被序列化。
type Deduplicator struct {
	repo Repository

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewDeduplicator 建立警報去重器。
func NewDeduplicator(repo Repository) *Deduplicator {
	return &Deduplicator{repo: repo, locks: make(map[string]*keyLock)}
}

// AddAlert 寫入警報；已有相同 ID 時不寫入並回傳 false。
func (d *Deduplicator) AddAlert(ctx context.Context, a alertDomain.Alert) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, fmt.Errorf("add alert: %w", err)
	}

	unlock := d.lock(a.ID)
	defer unlock()

	_, exists, err := d.repo.Get(ctx, a.ID)
	if err != nil {
		return false, fmt.Errorf("get alert %s: %w", a.ID, err)
	}
	if exists {
		return false, nil
	}
	if err := d.repo.Put(ctx, a); err != nil {
		if errors.Is(err, alertDomain.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("put alert %s: %w", a.ID, err)
	}
	return true, nil
}

// Recent 依觸發時間由新到舊回傳警報；limit <= 0 代表全部。
func (d *Deduplicator) Recent(ctx context.Context, limit int) ([]alertDomain.Alert, error) {
	list, err := d.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].TriggeredAt.After(list[j].TriggeredAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (d *Deduplicator) lock(id string) func() {
	d.mu.Lock()
	l, ok := d.locks[id]
	if !ok {
		l = &keyLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, id)
		}
		d.mu.Unlock()
	}
}

// FromScanResult 由自選股掃描結果建立警報，識別碼含觸發時間。
func FromScanResult(r breakout.ScanResult, at time.Time) alertDomain.Alert {
	return alertDomain.Alert{
		ID:                 alertDomain.WatchlistAlertID(r.Symbol, at),
		Symbol:             r.Symbol,
		Name:               r.Name,
		Type:               alertDomain.TypeBreakout,
		TodayHigh:          r.TodayHigh,
		TodayVolume:        r.TodayVolume,
		PrevMaxHigh:        r.PrevMaxHigh,
		PrevMaxVolume:      r.PrevMaxVolume,
		HighBreakPercent:   r.HighBreakPercent,
		VolumeBreakPercent: r.VolumeBreakPercent,
		TodayClose:         r.TodayClose,
		TodayChange:        r.TodayChange,
		TriggeredAt:        at,
	}
}

// FromDiscovery 由指數探索結果建立警報，識別碼以交易日為單位。
func FromDiscovery(d breakout.Discovery, tradingDate, at time.Time) alertDomain.Alert {
	q := d.Quote
	return alertDomain.Alert{
		ID:                 alertDomain.DiscoveryAlertID(d.Symbol, tradingDate),
		Symbol:             d.Symbol,
		Name:               d.Name,
		Type:               alertDomain.TypeNifty50Breakout,
		TodayHigh:          q.DayHigh,
		TodayVolume:        q.TotalTradedVolume,
		PrevMaxHigh:        d.Baseline.MaxHigh5d,
		PrevMaxVolume:      d.Baseline.MaxVolume5d,
		HighBreakPercent:   d.HighBreakPercent,
		VolumeBreakPercent: d.VolumeBreakPercent,
		TodayClose:         q.LastPrice,
		TodayChange:        quoteChange(q),
		TriggeredAt:        at,
	}
}

func quoteChange(q marketdata.Quote) float64 {
	if q.Change != 0 || q.PreviousClose == 0 {
		return q.Change
	}
	return q.LastPrice - q.PreviousClose
}
