package marketdata

import (
	"math"
	"sync"
	"time"
)

// ApiStats 為呼叫統計的唯讀摘要，每次讀取時重新計算。
type ApiStats struct {
	Total               int64
	APICalls            int64
	CacheHits           int64
	HitRatePercent      float64
	RecentAPICalls      int
	RecentCacheHits     int
	RecentRatePerMinute float64
	RecentAPICallsByOp  map[string]int
	Window              time.Duration
}

type trackedEvent struct {
	at    time.Time
	api   bool
	label string
}

// Tracker 記錄每一次資料請求是打到上游還是命中快取。
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	now       func() time.Time
	apiCalls  int64
	cacheHits int64
	recent    []trackedEvent
}

// NewTracker 建立統計器；window <= 0 時使用一分鐘。
func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{window: window, now: now}
}

// RecordAPICall 記錄一次上游呼叫。
func (t *Tracker) RecordAPICall(label string) {
	t.record(true, label)
}

// RecordCacheHit 記錄一次快取命中。
func (t *Tracker) RecordCacheHit(label string) {
	t.record(false, label)
}

func (t *Tracker) record(api bool, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if api {
		t.apiCalls++
	} else {
		t.cacheHits++
	}
	t.recent = append(t.recent, trackedEvent{at: now, api: api, label: label})
	t.pruneLocked(now)
}

// pruneLocked 丟棄視窗外的事件；事件依時間遞增寫入。
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.recent) && !t.recent[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		t.recent = append(t.recent[:0], t.recent[i:]...)
	}
}

// Stats 回傳累計與近期視窗內的統計。
func (t *Tracker) Stats() ApiStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())

	s := ApiStats{
		APICalls:  t.apiCalls,
		CacheHits: t.cacheHits,
		Total:     t.apiCalls + t.cacheHits,
		Window:    t.window,

		RecentAPICallsByOp: make(map[string]int),
	}
	if s.Total > 0 {
		s.HitRatePercent = math.Round(float64(s.CacheHits)/float64(s.Total)*10000) / 100
	}
	for _, e := range t.recent {
		if e.api {
			s.RecentAPICalls++
			s.RecentAPICallsByOp[e.label]++
		} else {
			s.RecentCacheHits++
		}
	}
	s.RecentRatePerMinute = math.Round(float64(s.RecentAPICalls)/t.window.Minutes()*100) / 100
	return s
}
