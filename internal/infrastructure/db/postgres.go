package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nifty-breakout/internal/infrastructure/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

var retryWait = 2 * time.Second

// Connect 建立 PostgreSQL 連線池；若未設定 DSN 則回傳 nil（呼叫端改用記憶體儲存）。
// 連線失敗時依 ConnectAttempts 重試。
func Connect(ctx context.Context, cfg config.DBConfig, logger logrus.FieldLogger) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := open(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.WithError(err).WithField("attempt", i).Warn("postgres connect failed")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect postgres: %w", ctx.Err())
		case <-time.After(retryWait):
		}
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempts, lastErr)
}

func open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	pingCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
