package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"nifty-breakout/internal/application/scanner"
	"nifty-breakout/internal/domain/marketdata"

	_ "modernc.org/sqlite"
)

// CycleSummary 為已保存週期的摘要列。
type CycleSummary struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	TradingDate string
	MarketOpen  bool
	Symbols     int
	Triggered   int
	Skipped     int
	Alerts      int
	Err         string
}

// Recorder 將每個掃描週期及逐檔結果寫入 SQLite，供事後檢視。
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRecorder 開啟（或建立）SQLite 資料庫並建立資料表。
func NewRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 單一連線，避免 :memory: 在不同連線間各自獨立。
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_cycles (
			id           TEXT PRIMARY KEY,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			trading_date TEXT NOT NULL,
			market_open  INTEGER NOT NULL,
			snapshot_ok  INTEGER NOT NULL,
			symbols      INTEGER NOT NULL,
			triggered    INTEGER NOT NULL,
			skipped      INTEGER NOT NULL,
			alerts       INTEGER NOT NULL,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON scan_cycles(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id          TEXT NOT NULL,
			symbol            TEXT NOT NULL,
			today_high        REAL,
			today_volume      INTEGER,
			prev_max_high     REAL,
			prev_max_volume   INTEGER,
			high_break_pct    REAL,
			volume_break_pct  REAL,
			triggered         INTEGER NOT NULL,
			data_source       TEXT,
			skipped           INTEGER NOT NULL,
			reason            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_cycle ON scan_results(cycle_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle 以單一交易寫入週期摘要與逐檔結果。
func (r *Recorder) RecordCycle(ctx context.Context, rep scanner.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO scan_cycles
		(id, started_at, finished_at, trading_date, market_open, snapshot_ok, symbols, triggered, skipped, alerts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.StartedAt.UnixMilli(), rep.FinishedAt.UnixMilli(), marketdata.DateKey(rep.TradingDate),
		boolInt(rep.MarketOpen), boolInt(rep.SnapshotAvailable), len(rep.Results), rep.Triggered, rep.Skipped, len(rep.Alerts), rep.Err,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scan_results
		(cycle_id, symbol, today_high, today_volume, prev_max_high, prev_max_volume, high_break_pct, volume_break_pct, triggered, data_source, skipped, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()
	for _, res := range rep.Results {
		if _, err := stmt.ExecContext(ctx,
			rep.ID, res.Symbol, res.TodayHigh, res.TodayVolume, res.PrevMaxHigh, res.PrevMaxVolume,
			res.HighBreakPercent, res.VolumeBreakPercent, boolInt(res.Triggered), string(res.DataSource),
			boolInt(res.Skipped), res.Reason,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentCycles 由新到舊回傳最近的週期摘要。
func (r *Recorder) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, started_at, finished_at, trading_date, market_open, symbols, triggered, skipped, alerts, COALESCE(error, '')
		FROM scan_cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var (
			s                 CycleSummary
			started, finished int64
			open              int
		)
		if err := rows.Scan(&s.ID, &started, &finished, &s.TradingDate, &open, &s.Symbols, &s.Triggered, &s.Skipped, &s.Alerts, &s.Err); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started)
		s.FinishedAt = time.UnixMilli(finished)
		s.MarketOpen = open == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close 關閉資料庫。
func (r *Recorder) Close() error {
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NoopRecorder 在未設定 SQLite 路徑時使用。
type NoopRecorder struct{}

func (NoopRecorder) RecordCycle(context.Context, scanner.CycleReport) error { return nil }

func (NoopRecorder) RecentCycles(context.Context, int) ([]CycleSummary, error) { return nil, nil }

func (NoopRecorder) Close() error { return nil }
