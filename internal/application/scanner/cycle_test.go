package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"

	alertapp "nifty-breakout/internal/application/alert"
	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/marketdata"
	"nifty-breakout/internal/domain/watchlist"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatchlist struct {
	list []watchlist.Symbol
	err  error
}

func (f fakeWatchlist) ListWatchlist(context.Context) ([]watchlist.Symbol, error) {
	return f.list, f.err
}

type memRepo struct {
	mu    sync.Mutex
	items map[string]alertDomain.Alert
}

func (m *memRepo) Get(_ context.Context, id string) (alertDomain.Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	return a, ok, nil
}

func (m *memRepo) Put(_ context.Context, a alertDomain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]alertDomain.Alert)
	}
	m.items[a.ID] = a
	return nil
}

func (m *memRepo) List(context.Context) ([]alertDomain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]alertDomain.Alert, 0, len(m.items))
	for _, a := range m.items {
		out = append(out, a)
	}
	return out, nil
}

type fakeNotifier struct {
	sent []alertDomain.Alert
	err  error
}

func (f *fakeNotifier) NotifyAlert(_ context.Context, a alertDomain.Alert) error {
	f.sent = append(f.sent, a)
	return f.err
}

type fakeRecorder struct {
	reports []CycleReport
}

func (f *fakeRecorder) RecordCycle(_ context.Context, r CycleReport) error {
	f.reports = append(f.reports, r)
	return nil
}

func newTestCycle(data *fakeData, baselines fakeBaselines, list WatchlistReader, repo *memRepo, n Notifier, r Recorder) (*Cycle, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := NewCycle(NewScanner(data, baselines, 4), data, list, alertapp.NewDeduplicator(repo), n, r, logger, CycleConfig{UseIntraday: true, Discovery: true})
	c.newID = func() string { return "cycle-1" }
	return c, hook
}

func TestCycle_RunCreatesAlertsOncePerDayForDiscovery(t *testing.T) {
	data := &fakeData{
		marketOpen: true,
		intraday:   map[string]*marketdata.Candle{"TCS": today("TCS", 120, 1500)},
		snapshot: &marketdata.Snapshot{FetchSuccess: true, Stocks: []marketdata.Quote{
			{Symbol: "TCS", DayHigh: 120, TotalTradedVolume: 1500},
			{Symbol: "INFY", Name: "Infosys", DayHigh: 130, TotalTradedVolume: 2000, LastPrice: 125, Change: 3},
		}},
	}
	baselines := fakeBaselines{
		"TCS":  {MaxHigh5d: 100, MaxVolume5d: 1000},
		"INFY": {MaxHigh5d: 100, MaxVolume5d: 1000},
	}
	repo := &memRepo{}
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	cycle, hook := newTestCycle(data, baselines, fakeWatchlist{list: []watchlist.Symbol{{Symbol: "TCS"}}}, repo, notifier, recorder)

	report, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cycle-1", report.ID)
	assert.True(t, report.MarketOpen)
	assert.True(t, report.SnapshotAvailable)
	assert.Equal(t, 1, report.Triggered)
	require.Len(t, report.Discoveries, 1)
	require.Len(t, report.Alerts, 2)
	assert.Len(t, notifier.sent, 2)
	require.Len(t, recorder.reports, 1)
	assert.Equal(t, "cycle-1", hook.LastEntry().Data["cycle_id"])

	_, ok := repo.items["INFY-nifty50-breakout-2024-12-02"]
	assert.True(t, ok)

	// same instant from the fake clock: watchlist identity collides too, so nothing new
	report, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Alerts)
	assert.Len(t, repo.items, 2)
}

func TestCycle_AuxiliaryFailuresDegrade(t *testing.T) {
	data := &fakeData{
		statusErr: errors.New("status down"),
		intraday:  map[string]*marketdata.Candle{"TCS": today("TCS", 120, 1500)},
		history:   map[string][]marketdata.Candle{"TCS": {*today("TCS", 120, 1500)}},
	}
	cycle, _ := newTestCycle(data, fakeBaselines{"TCS": {MaxHigh5d: 100, MaxVolume5d: 1000}}, fakeWatchlist{list: []watchlist.Symbol{{Symbol: "TCS"}}}, &memRepo{}, nil, nil)

	report, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.MarketOpen)
	assert.False(t, report.SnapshotAvailable)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "historical", string(report.Results[0].DataSource))
	assert.Len(t, report.Alerts, 1)
	assert.Empty(t, report.Discoveries)
}

func TestCycle_TotalUpstreamFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	cycle, hook := newTestCycle(&fakeData{}, fakeBaselines{}, fakeWatchlist{list: []watchlist.Symbol{{Symbol: "TCS"}, {Symbol: "INFY"}}}, &memRepo{}, nil, recorder)

	report, err := cycle.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, recorder.reports, 1)
	assert.NotEmpty(t, recorder.reports[0].Err)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	storeErr := errors.New("db down")
	cycle, _ = newTestCycle(&fakeData{}, fakeBaselines{}, fakeWatchlist{err: storeErr}, &memRepo{}, nil, nil)
	_, err = cycle.Run(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, storeErr)
}

func TestCycle_TypedNilCollaborators(t *testing.T) {
	var n *fakeNotifier
	var r *fakeRecorder
	data := &fakeData{marketOpen: true, intraday: map[string]*marketdata.Candle{"TCS": today("TCS", 120, 1500)}}
	cycle, _ := newTestCycle(data, fakeBaselines{"TCS": {MaxHigh5d: 100, MaxVolume5d: 1000}}, fakeWatchlist{list: []watchlist.Symbol{{Symbol: "TCS"}}}, &memRepo{}, n, r)

	report, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Alerts, 1)
}

func TestCycle_PreOpenIsNotUpstreamFailure(t *testing.T) {
	prev := marketdata.Candle{Symbol: "TCS", Date: tradingDay.AddDate(0, 0, -3), Open: 95, High: 100, Low: 90, Close: 98, Volume: 1000}
	data := &fakeData{history: map[string][]marketdata.Candle{"TCS": {prev}}}
	cycle, _ := newTestCycle(data, fakeBaselines{"TCS": {MaxHigh5d: 100, MaxVolume5d: 1000}}, fakeWatchlist{list: []watchlist.Symbol{{Symbol: "TCS"}}}, &memRepo{}, nil, nil)

	report, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Alerts)
}
