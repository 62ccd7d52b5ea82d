package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nifty-breakout/internal"
	alertapp "nifty-breakout/internal/application/alert"
	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/breakout"
	"nifty-breakout/internal/domain/marketdata"
	"nifty-breakout/internal/domain/watchlist"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUpstreamUnavailable 表示整個週期拿不到任何可用資料，應由排程端在下個週期重試。
var ErrUpstreamUnavailable = errors.New("upstream unavailable for scan cycle")

// WatchlistReader 讀取自選清單。
type WatchlistReader interface {
	ListWatchlist(ctx context.Context) ([]watchlist.Symbol, error)
}

// AlertWriter 為去重後寫入警報的入口。
type AlertWriter interface {
	AddAlert(ctx context.Context, a alertDomain.Alert) (bool, error)
}

// Notifier 推送新增的警報。
type Notifier interface {
	NotifyAlert(ctx context.Context, a alertDomain.Alert) error
}

// Recorder 保存每個週期的摘要。
type Recorder interface {
	RecordCycle(ctx context.Context, report CycleReport) error
}

// CycleConfig 控制單一掃描週期。
type CycleConfig struct {
	UseIntraday bool
	Discovery   bool
}

// CycleReport 為一個掃描週期的結果。
type CycleReport struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	TradingDate       time.Time
	MarketOpen        bool
	SnapshotAvailable bool
	SnapshotStale     bool
	Results           []breakout.ScanResult
	Discoveries       []breakout.Discovery
	Alerts            []alertDomain.Alert
	Triggered         int
	Skipped           int
	Err               string
}

// Cycle 串起一次完整的掃描：自選股、指數探索、警報與通知。
type Cycle struct {
	scanner   *Scanner
	data      MarketData
	watchlist WatchlistReader
	alerts    AlertWriter
	notifier  Notifier
	recorder  Recorder
	log       logrus.FieldLogger
	cfg       CycleConfig
	newID     func() string
}

// NewCycle 建立掃描週期；notifier、recorder 可為 nil。
func NewCycle(scanner *Scanner, data MarketData, list WatchlistReader, alerts AlertWriter, notifier Notifier, recorder Recorder, log logrus.FieldLogger, cfg CycleConfig) *Cycle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if internal.IsNil(notifier) {
		notifier = nil
	}
	if internal.IsNil(recorder) {
		recorder = nil
	}
	return &Cycle{
		scanner:   scanner,
		data:      data,
		watchlist: list,
		alerts:    alerts,
		notifier:  notifier,
		recorder:  recorder,
		log:       log,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

type snapshotOutcome struct {
	snap marketdata.Snapshot
	ok   bool
}

// Run 執行一個掃描週期。輔助資料（開盤狀態、快照）失敗只會降級，不會中斷主掃描。
func (c *Cycle) Run(ctx context.Context) (CycleReport, error) {
	report := CycleReport{
		ID:          c.newID(),
		StartedAt:   c.data.Now(),
		TradingDate: c.data.TradingDate(),
	}
	log := c.log.WithField("cycle_id", report.ID)

	statusCh := make(chan bool, 1)
	go func() {
		open, err := c.data.MarketStatus(ctx)
		if err != nil {
			log.WithError(err).Warn("market status unavailable, treating market as closed")
		}
		statusCh <- open
	}()
	snapCh := make(chan snapshotOutcome, 1)
	go func() {
		snap, err := c.data.GetNifty50Snapshot(ctx)
		if err != nil {
			log.WithError(err).Warn("nifty50 snapshot unavailable")
			snapCh <- snapshotOutcome{}
			return
		}
		snapCh <- snapshotOutcome{snap: snap, ok: true}
	}()

	list, err := c.watchlist.ListWatchlist(ctx)
	if err != nil {
		report.MarketOpen = <-statusCh
		<-snapCh
		return c.finish(ctx, log, report, fmt.Errorf("list watchlist: %w: %w", ErrUpstreamUnavailable, err))
	}

	report.MarketOpen = <-statusCh
	report.Results = c.scanner.ScanMultipleStocks(ctx, list, c.cfg.UseIntraday, report.MarketOpen)
	snap := <-snapCh
	report.SnapshotAvailable = snap.ok
	report.SnapshotStale = snap.ok && snap.snap.Stale

	unavailable := 0
	for _, r := range report.Results {
		switch {
		case r.Skipped:
			report.Skipped++
			if r.Reason != ReasonNoBaseline && r.Reason != ReasonNoTradingDayCandle {
				unavailable++
			}
		case r.Triggered:
			report.Triggered++
			c.addAlert(ctx, log, &report, alertapp.FromScanResult(r, c.data.Now()))
		}
	}

	if c.cfg.Discovery && snap.ok {
		report.Discoveries = c.scanner.Discover(ctx, snap.snap, list)
		for _, d := range report.Discoveries {
			if d.Breakout {
				c.addAlert(ctx, log, &report, alertapp.FromDiscovery(d, report.TradingDate, c.data.Now()))
			}
		}
	}

	if !snap.ok && len(report.Results) > 0 && unavailable == len(report.Results) {
		return c.finish(ctx, log, report, fmt.Errorf("all %d watchlist symbols failed: %w", unavailable, ErrUpstreamUnavailable))
	}
	return c.finish(ctx, log, report, nil)
}

func (c *Cycle) addAlert(ctx context.Context, log logrus.FieldLogger, report *CycleReport, a alertDomain.Alert) {
	entry := log.WithFields(logrus.Fields{"symbol": a.Symbol, "alert_id": a.ID, "type": a.Type})
	added, err := c.alerts.AddAlert(ctx, a)
	if err != nil {
		entry.WithError(err).Error("add alert failed")
		return
	}
	if !added {
		entry.Debug("alert already exists")
		return
	}
	report.Alerts = append(report.Alerts, a)
	entry.WithFields(logrus.Fields{
		"high_break_pct":   a.HighBreakPercent,
		"volume_break_pct": a.VolumeBreakPercent,
	}).Info("breakout alert added")

	if c.notifier != nil {
		if err := c.notifier.NotifyAlert(ctx, a); err != nil {
			entry.WithError(err).Warn("notify alert failed")
		}
	}
}

func (c *Cycle) finish(ctx context.Context, log logrus.FieldLogger, report CycleReport, cycleErr error) (CycleReport, error) {
	report.FinishedAt = c.data.Now()
	if cycleErr != nil {
		report.Err = cycleErr.Error()
	}
	if c.recorder != nil {
		if err := c.recorder.RecordCycle(ctx, report); err != nil {
			log.WithError(err).Warn("record cycle failed")
		}
	}

	fields := logrus.Fields{
		"symbols":     len(report.Results),
		"triggered":   report.Triggered,
		"skipped":     report.Skipped,
		"alerts":      len(report.Alerts),
		"discoveries": len(report.Discoveries),
		"market_open": report.MarketOpen,
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	if cycleErr != nil {
		log.WithFields(fields).WithError(cycleErr).Error("scan cycle failed")
		return report, cycleErr
	}
	log.WithFields(fields).Info("scan cycle completed")
	return report, nil
}
