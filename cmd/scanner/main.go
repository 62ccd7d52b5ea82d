package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	alertapp "nifty-breakout/internal/application/alert"
	"nifty-breakout/internal/application/baseline"
	"nifty-breakout/internal/application/marketdata"
	"nifty-breakout/internal/application/scanner"
	mdDomain "nifty-breakout/internal/domain/marketdata"
	"nifty-breakout/internal/domain/watchlist"
	"nifty-breakout/internal/infra/memory"
	"nifty-breakout/internal/infrastructure/config"
	"nifty-breakout/internal/infrastructure/db"
	"nifty-breakout/internal/infrastructure/external"
	"nifty-breakout/internal/infrastructure/external/nse"
	"nifty-breakout/internal/infrastructure/external/yahoo"
	"nifty-breakout/internal/infrastructure/logging"
	"nifty-breakout/internal/infrastructure/notify"
	"nifty-breakout/internal/infrastructure/persistence/postgres"
	"nifty-breakout/internal/infrastructure/persistence/sqlite"
	httpapi "nifty-breakout/internal/interface/http"

	"github.com/sirupsen/logrus"
)

// store 為記憶體與 PostgreSQL 儲存共同提供的能力。
type store interface {
	alertapp.Repository
	httpapi.AlertStore
	httpapi.WatchlistStore
}

type cycleRecorder interface {
	scanner.Recorder
	httpapi.CycleHistory
	Close() error
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		logrus.Fatalf("CRITICAL: load config failed: %v", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("http_addr", cfg.HTTP.Addr).Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calendar, err := mdDomain.NewCalendar(cfg.Market.Holidays)
	if err != nil {
		logger.Fatalf("invalid market holidays: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.Connect(connectCtx, cfg.DB, logging.ForService(logger, "db"))
	cancel()
	var st store
	switch {
	case err != nil:
		logger.WithError(err).Warn("database connection failed, falling back to in-memory store")
		st = memory.NewStore()
	case pool == nil:
		logger.Info("no DB_DSN provided; running with in-memory store only")
		st = memory.NewStore()
	default:
		defer pool.Close()
		logger.Info("database connected successfully")
		st = postgres.NewRepo(pool)
	}
	seedWatchlist(ctx, st, cfg.Scan.SeedWatchlist, logger)

	rec := openRecorder(cfg.Recorder, logger)
	defer rec.Close()

	nseClient := nse.NewClient(nse.Config{
		BaseURL:           cfg.Upstream.NSEBaseURL,
		Timeout:           cfg.Upstream.Timeout,
		RetryCount:        cfg.Upstream.RetryCount,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	}, logging.ForService(logger, "nse"))
	yahooClient := yahoo.NewClient(yahoo.Config{
		BaseURL:           cfg.Upstream.YahooBaseURL,
		SymbolSuffix:      cfg.Upstream.SymbolSuffix,
		Timeout:           cfg.Upstream.Timeout,
		RetryCount:        cfg.Upstream.RetryCount,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	}, logging.ForService(logger, "yahoo"))

	market := marketdata.NewService(external.NewSource(nseClient, yahooClient), marketdata.Options{
		HistoricalTTL: cfg.Cache.HistoricalTTL,
		SnapshotTTL:   cfg.Cache.SnapshotTTL,
		HistoryDepth:  cfg.Cache.HistoryDepth,
		StatsWindow:   cfg.Cache.StatsWindow,
		Calendar:      calendar,
	})
	engine := baseline.NewEngine(market, baseline.Config{
		Lookback:     cfg.Scan.LookbackDays,
		UniverseSize: cfg.Scan.UniverseSize,
		Concurrency:  cfg.Scan.Concurrency,
	})
	sc := scanner.NewScanner(market, engine, cfg.Scan.Concurrency)

	var notifier scanner.Notifier
	if cfg.Notifier.Telegram.Enabled {
		notifier = notify.NewTelegramClient(cfg.Notifier.Telegram.Token, cfg.Notifier.Telegram.ChatID, "[Nifty Breakout]")
		logger.Info("telegram notifier enabled")
	}

	cycle := scanner.NewCycle(sc, market, st, alertapp.NewDeduplicator(st), notifier, rec,
		logging.ForService(logger, "scanner"),
		scanner.CycleConfig{UseIntraday: cfg.Scan.UseIntraday, Discovery: cfg.Scan.Discovery})

	worker := scanner.NewWorker(cycle, scanner.WorkerConfig{
		Spec:       cfg.Scan.Cron,
		RunOnStart: cfg.Scan.RunOnStart,
		Calendar:   calendar,
	}, logging.ForService(logger, "worker"))
	if err := worker.Start(ctx); err != nil {
		logger.Fatalf("start scan worker: %v", err)
	}
	logger.WithField("next_run", worker.Next()).Info("scan schedule registered")

	deps := httpapi.Deps{
		Market:    market,
		Baselines: engine,
		Alerts:    st,
		Watchlist: st,
		Runner:    cycle,
		Cycles:    rec,
		Log:       logging.ForService(logger, "http"),
	}
	if pool != nil {
		deps.DB = pool
	}
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: httpapi.NewServer(deps).Handler()}

	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	worker.Stop()
}

// seedWatchlist 只在自選清單為空時寫入預設代號。
func seedWatchlist(ctx context.Context, st store, symbols []string, logger logrus.FieldLogger) {
	if len(symbols) == 0 {
		return
	}
	existing, err := st.ListWatchlist(ctx)
	if err != nil {
		logger.WithError(err).Warn("read watchlist for seeding")
		return
	}
	if len(existing) > 0 {
		return
	}
	for _, sym := range symbols {
		if err := st.AddSymbol(ctx, watchlist.Symbol{Symbol: sym}); err != nil {
			logger.WithError(err).WithField("symbol", sym).Warn("seed watchlist")
		}
	}
	logger.WithField("count", len(symbols)).Info("watchlist seeded")
}

// openRecorder 開啟 SQLite 週期紀錄；未設定或開啟失敗時不保存。
func openRecorder(cfg config.RecorderConfig, logger logrus.FieldLogger) cycleRecorder {
	if cfg.SQLitePath == "" {
		return sqlite.NoopRecorder{}
	}
	rec, err := sqlite.NewRecorder(cfg.SQLitePath)
	if err != nil {
		logger.WithError(err).Warn("sqlite recorder unavailable, cycles will not be recorded")
		return sqlite.NoopRecorder{}
	}
	logger.WithField("path", cfg.SQLitePath).Info("sqlite recorder enabled")
	return rec
}
