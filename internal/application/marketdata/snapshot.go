package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "nifty-breakout/internal/domain/marketdata"

	"golang.org/x/sync/singleflight"
)

const opSnapshot = "snapshot"

// SnapshotStats 為快照抓取的觀測值；計數在程序生命週期內只增不減。
type SnapshotStats struct {
	LastRefreshTime      time.Time
	SnapshotFetchSuccess bool
	SnapshotFetchCount   int64
	SnapshotFailCount    int64
	Cached               bool
	StockCount           int
}

// SnapshotCache 快取整份指數快照；抓取失敗時回傳舊資料並標記 Stale。
type SnapshotCache struct {
	source  Source
	tracker *Tracker
	now     func() time.Time
	ttl     time.Duration

	mu          sync.RWMutex
	current     *domain.Snapshot
	lastRefresh time.Time
	lastOK      bool
	fetchCount  int64
	failCount   int64
	flight      singleflight.Group
}

// NewSnapshotCache 建立快照快取。
func NewSnapshotCache(source Source, tracker *Tracker, ttl time.Duration, now func() time.Time) *SnapshotCache {
	if now == nil {
		now = time.Now
	}
	return &SnapshotCache{source: source, tracker: tracker, ttl: ttl, now: now}
}

// Get 在 TTL 內回傳快取；否則重新抓取，失敗時有舊資料就回傳 Stale 版本，沒有就回傳錯誤。
func (c *SnapshotCache) Get(ctx context.Context) (domain.Snapshot, error) {
	if snap, ok := c.fresh(); ok {
		c.tracker.RecordCacheHit(opSnapshot)
		return snap, nil
	}

	v, err := shared(ctx, &c.flight, opSnapshot, func(fetchCtx context.Context) (interface{}, error) {
		return c.refresh(fetchCtx)
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return domain.Snapshot{}, domain.Unavailable(opSnapshot, "", err)
		}
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot).Clone(), nil
}

func (c *SnapshotCache) fresh() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return domain.Snapshot{}, false
	}
	if c.now().Sub(c.current.FetchedAt) >= c.ttl {
		return domain.Snapshot{}, false
	}
	return c.current.Clone(), true
}

func (c *SnapshotCache) refresh(ctx context.Context) (domain.Snapshot, error) {
	c.tracker.RecordAPICall(opSnapshot)
	snap, err := c.source.FetchSnapshot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRefresh = c.now()
	if err != nil {
		c.failCount++
		c.lastOK = false
		if c.current == nil {
			return domain.Snapshot{}, domain.Unavailable(opSnapshot, "", err)
		}
		stale := c.current.Clone()
		stale.Stale = true
		stale.FetchSuccess = false
		return stale, nil
	}

	c.fetchCount++
	c.lastOK = true
	snap.FetchedAt = c.lastRefresh
	snap.FetchSuccess = true
	snap.Stale = false
	stored := snap.Clone()
	c.current = &stored
	return snap, nil
}

// Stats 回傳快照抓取統計。
func (c *SnapshotCache) Stats() SnapshotStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := SnapshotStats{
		LastRefreshTime:      c.lastRefresh,
		SnapshotFetchSuccess: c.lastOK,
		SnapshotFetchCount:   c.fetchCount,
		SnapshotFailCount:    c.failCount,
		Cached:               c.current != nil,
	}
	if c.current != nil {
		s.StockCount = len(c.current.Stocks)
	}
	return s
}
