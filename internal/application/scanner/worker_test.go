package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"nifty-breakout/internal/domain/marketdata"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (CycleReport, error) {
	r.calls.Add(1)
	return CycleReport{ID: "c1"}, r.err
}

func TestWorker_SkipsHolidaysAndWeekends(t *testing.T) {
	cal, err := marketdata.NewCalendar([]string{"2024-12-25"})
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	for _, tc := range []struct {
		name string
		now  time.Time
		want int32
	}{
		{"weekday", time.Date(2024, 12, 24, 10, 0, 0, 0, marketdata.IST), 1},
		{"holiday", time.Date(2024, 12, 25, 10, 0, 0, 0, marketdata.IST), 0},
		{"saturday", time.Date(2024, 12, 28, 10, 0, 0, 0, marketdata.IST), 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			runner := &countingRunner{}
			w := NewWorker(runner, WorkerConfig{Spec: "@every 1h", Calendar: cal, Now: func() time.Time { return tc.now }}, logger)
			w.runOnce(context.Background())
			assert.Equal(t, tc.want, runner.calls.Load())
		})
	}
}

func TestWorker_FailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	runner := &countingRunner{err: ErrUpstreamUnavailable}
	monday := time.Date(2024, 12, 2, 10, 0, 0, 0, marketdata.IST)
	w := NewWorker(runner, WorkerConfig{Spec: "@every 1h", Now: func() time.Time { return monday }}, logger)

	w.runOnce(context.Background())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "c1", entry.Data["cycle_id"])
	err, _ := entry.Data[logrus.ErrorKey].(error)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestWorker_StartRejectsBadSchedule(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewWorker(&countingRunner{}, WorkerConfig{Spec: "not a cron"}, logger)
	assert.Error(t, w.Start(context.Background()))
}

func TestWorker_RunOnStartAndStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	runner := &countingRunner{}
	monday := time.Date(2024, 12, 2, 10, 0, 0, 0, marketdata.IST)
	w := NewWorker(runner, WorkerConfig{
		Spec:       "CRON_TZ=Asia/Kolkata */5 9-15 * * 1-5",
		RunOnStart: true,
		Now:        func() time.Time { return monday },
	}, logger)

	require.NoError(t, w.Start(context.Background()))
	assert.False(t, w.Next().IsZero())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)
	w.Stop()
}

type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(context.Context) (CycleReport, error) {
	if r.calls.Add(1) == 1 {
		close(r.started)
	}
	<-r.release
	return CycleReport{ID: "c1"}, nil
}

func TestWorker_StopWaitsForRunOnStart(t *testing.T) {
	logger, _ := test.NewNullLogger()
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	monday := time.Date(2024, 12, 2, 10, 0, 0, 0, marketdata.IST)
	w := NewWorker(runner, WorkerConfig{
		Spec:       "@every 1h",
		RunOnStart: true,
		Now:        func() time.Time { return monday },
	}, logger)

	require.NoError(t, w.Start(context.Background()))
	<-runner.started

	// 啟動時的週期仍在跑，排程觸發的同一工作必須略過。
	w.job.Run()
	assert.Equal(t, int32(1), runner.calls.Load())

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while the start-up cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
	assert.Equal(t, int32(1), runner.calls.Load())
}
