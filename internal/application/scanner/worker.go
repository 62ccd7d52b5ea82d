package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nifty-breakout/internal/domain/marketdata"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner 執行一次掃描週期。
type Runner interface {
	Run(ctx context.Context) (CycleReport, error)
}

// WorkerConfig 控制排程。
type WorkerConfig struct {
	// Spec 為 cron 表示式，可帶 CRON_TZ= 前綴。
	Spec       string
	RunOnStart bool
	Calendar   *marketdata.Calendar
	Now        func() time.Time
}

// Worker 依 cron 排程執行掃描週期；休市日與上一輪未完成時略過。
type Worker struct {
	runner  Runner
	cron    *cron.Cron
	cfg     WorkerConfig
	log     logrus.FieldLogger
	entryID cron.EntryID
	cancel  context.CancelFunc

	// job 為排程與啟動時立即執行共用的包裝後工作，兩者同受 SkipIfStillRunning 約束。
	job     cron.Job
	started sync.WaitGroup
}

// NewWorker 建立背景排程。
func NewWorker(runner Runner, cfg WorkerConfig, log logrus.FieldLogger) *Worker {
	if cfg.Calendar == nil {
		cfg.Calendar = marketdata.DefaultCalendar()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cl := cronLogger{log: log}
	return &Worker{
		runner: runner,
		cfg:    cfg,
		log:    log,
		cron:   cron.New(cron.WithLogger(cl)),
	}
}

// Start 註冊排程並啟動；ctx 結束時正在跑的週期會被取消。
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{log: w.log}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { w.runOnce(ctx) }))
	id, err := w.cron.AddJob(w.cfg.Spec, job)
	if err != nil {
		cancel()
		return fmt.Errorf("register scan schedule %q: %w", w.cfg.Spec, err)
	}
	w.entryID = id
	w.cancel = cancel
	w.job = job
	w.cron.Start()
	w.log.WithField("spec", w.cfg.Spec).Info("scan worker started")

	if w.cfg.RunOnStart {
		w.started.Add(1)
		go func() {
			defer w.started.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop 停止排程並等待進行中的週期結束。
func (w *Worker) Stop() {
	done := w.cron.Stop()
	if w.cancel != nil {
		w.cancel()
	}
	<-done.Done()
	w.started.Wait()
	w.log.Info("scan worker stopped")
}

// Next 回傳下一次排程時間；尚未啟動時為零值。
func (w *Worker) Next() time.Time {
	if w.entryID == 0 {
		return time.Time{}
	}
	return w.cron.Entry(w.entryID).Next
}

func (w *Worker) runOnce(ctx context.Context) {
	now := w.cfg.Now()
	if !w.cfg.Calendar.IsTradingDay(now) {
		w.log.WithField("date", marketdata.DateKey(now)).Debug("not a trading day, skipping scan")
		return
	}
	report, err := w.runner.Run(ctx)
	if err != nil {
		// 下一個排程即為重試。
		w.log.WithError(err).WithField("cycle_id", report.ID).Warn("scheduled scan failed")
	}
}

// cronLogger 將 cron 內部日誌轉給 logrus。
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
