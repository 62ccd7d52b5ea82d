package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/watchlist"
)

// Repo 提供 Postgres 資料存取，涵蓋警報與自選清單。
type Repo struct {
	db *sql.DB
}

// NewRepo 建立 Postgres 資料存取實例。
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const alertColumns = `id, symbol, name, alert_type, today_high, today_volume, prev_max_high, prev_max_volume,
       high_break_pct, volume_break_pct, today_close, today_change, triggered_at, is_read`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alertDomain.Alert, error) {
	var (
		a    alertDomain.Alert
		typ  string
		name sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.Symbol, &name, &typ,
		&a.TodayHigh, &a.TodayVolume, &a.PrevMaxHigh, &a.PrevMaxVolume,
		&a.HighBreakPercent, &a.VolumeBreakPercent, &a.TodayClose, &a.TodayChange,
		&a.TriggeredAt, &a.Read,
	); err != nil {
		return alertDomain.Alert{}, err
	}
	a.Name = name.String
	a.Type = alertDomain.Type(typ)
	return a, nil
}

// Get 依 ID 取得警報。
func (r *Repo) Get(ctx context.Context, id string) (alertDomain.Alert, bool, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1;`
	a, err := scanAlert(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return alertDomain.Alert{}, false, nil
	}
	if err != nil {
		return alertDomain.Alert{}, false, err
	}
	return a, true, nil
}

// Put 寫入警報；相同 ID 已存在時不覆寫並回傳 alert.ErrDuplicate。
func (r *Repo) Put(ctx context.Context, a alertDomain.Alert) error {
	const q = `
INSERT INTO alerts (id, symbol, name, alert_type, today_high, today_volume, prev_max_high, prev_max_volume,
                    high_break_pct, volume_break_pct, today_close, today_change, triggered_at, is_read)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO NOTHING;
`
	res, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.Symbol,
		nullIfEmpty(a.Name),
		string(a.Type),
		a.TodayHigh,
		a.TodayVolume,
		a.PrevMaxHigh,
		a.PrevMaxVolume,
		a.HighBreakPercent,
		a.VolumeBreakPercent,
		a.TodayClose,
		a.TodayChange,
		a.TriggeredAt,
		a.Read,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("put alert %s: %w", a.ID, alertDomain.ErrDuplicate)
	}
	return nil
}

// List 依觸發時間由新到舊回傳警報。
func (r *Repo) List(ctx context.Context) ([]alertDomain.Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts ORDER BY triggered_at DESC, id;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alertDomain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkRead 將警報標記為已讀。
func (r *Repo) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mark read %s: %w", id, alertDomain.ErrNotFound)
	}
	return nil
}

// UnreadCount 回傳未讀警報數。
func (r *Repo) UnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE is_read = FALSE;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AddSymbol 加入自選股；已存在時只更新名稱。
func (r *Repo) AddSymbol(ctx context.Context, sym watchlist.Symbol) error {
	sym = sym.Normalize()
	if sym.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	const q = `
INSERT INTO watchlist (symbol, name)
VALUES ($1, $2)
ON CONFLICT (symbol)
DO UPDATE SET name = COALESCE(EXCLUDED.name, watchlist.name);
`
	_, err := r.db.ExecContext(ctx, q, sym.Symbol, nullIfEmpty(sym.Name))
	return err
}

// RemoveSymbol 移除自選股。
func (r *Repo) RemoveSymbol(ctx context.Context, symbol string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = $1;`, strings.ToUpper(strings.TrimSpace(symbol)))
	return err
}

// ListWatchlist 依加入時間回傳自選清單。
func (r *Repo) ListWatchlist(ctx context.Context) ([]watchlist.Symbol, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, name, added_at FROM watchlist ORDER BY added_at, symbol;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []watchlist.Symbol
	for rows.Next() {
		var (
			s    watchlist.Symbol
			name sql.NullString
		)
		if err := rows.Scan(&s.Symbol, &name, &s.AddedAt); err != nil {
			return nil, err
		}
		s.Name = name.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
