package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"nifty-breakout/internal/infrastructure/config"
	"nifty-breakout/internal/infrastructure/logging"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("dir", "db/migrations", "path to migrations directory")
	flag.Parse()

	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		logrus.Fatalf("讀取組態失敗: %v", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if cfg.DB.DSN == "" {
		logger.Fatal("config.db.dsn 未設定，無法執行 migration")
	}

	files, err := migrationFiles(*migrationsPath)
	if err != nil {
		logger.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("連線資料庫失敗: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(context.Background(), db, files, logger); err != nil {
		logger.Fatal(err)
	}
	logger.Info("migration 完成")
}

// migrationFiles 回傳目錄下依檔名排序的 .sql 檔。
func migrationFiles(dir string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("解析 migrations 路徑失敗: %w", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		return nil, fmt.Errorf("migrations 目錄不存在: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(absDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("讀取 migrations 失敗: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("找不到任何 .sql migration 檔案於 %s", absDir)
	}
	sort.Strings(files)
	return files, nil
}

// applyMigrations 依序執行每個檔案；任一失敗即停止。
func applyMigrations(ctx context.Context, db *sql.DB, files []string, logger logrus.FieldLogger) error {
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("讀取檔案 %s 失敗: %w", f, err)
		}
		logger.WithField("file", filepath.Base(f)).Info("執行 migration")
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("執行 %s 失敗: %w", filepath.Base(f), err)
		}
	}
	return nil
}
