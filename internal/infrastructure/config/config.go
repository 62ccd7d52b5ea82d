package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 儲存掃描服務及外部相依的執行設定。
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Scan     ScanConfig     `yaml:"scan"`
	Market   MarketConfig   `yaml:"market"`
	Notifier NotifierConfig `yaml:"notifier"`
	Recorder RecorderConfig `yaml:"recorder"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DBConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxIdleTime     time.Duration `yaml:"max_idle_time"`
	ConnectAttempts int           `yaml:"connect_attempts"`
}

// UpstreamConfig 設定行情來源；NSE 提供快照與開盤狀態，Yahoo 提供日 K。
type UpstreamConfig struct {
	NSEBaseURL        string        `yaml:"nse_base_url"`
	YahooBaseURL      string        `yaml:"yahoo_base_url"`
	SymbolSuffix      string        `yaml:"symbol_suffix"`
	Timeout           time.Duration `yaml:"timeout"`
	RetryCount        int           `yaml:"retry_count"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type CacheConfig struct {
	HistoricalTTL time.Duration `yaml:"historical_ttl"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl"`
	HistoryDepth  int           `yaml:"history_depth"`
	StatsWindow   time.Duration `yaml:"stats_window"`
}

type ScanConfig struct {
	Cron          string   `yaml:"cron"`
	Concurrency   int      `yaml:"concurrency"`
	UseIntraday   bool     `yaml:"use_intraday"`
	LookbackDays  int      `yaml:"lookback_days"`
	UniverseSize  int      `yaml:"universe_size"`
	Discovery     bool     `yaml:"discovery"`
	SeedWatchlist []string `yaml:"seed_watchlist"`
	RunOnStart    bool     `yaml:"run_on_start"`
}

type MarketConfig struct {
	Holidays []string `yaml:"holidays"`
}

type NotifierConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type RecorderConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadFromFile 從 YAML 組態檔載入設定。
func LoadFromFile(path string) (Config, error) {
	// 嘗試載入 .env 檔案（如果存在）
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.DB.MaxIdleTime == 0 {
		cfg.DB.MaxIdleTime = 15 * time.Minute
	}
	if cfg.DB.ConnectAttempts == 0 {
		cfg.DB.ConnectAttempts = 3
	}
	if cfg.Upstream.NSEBaseURL == "" {
		cfg.Upstream.NSEBaseURL = "https://www.nseindia.com"
	}
	if cfg.Upstream.YahooBaseURL == "" {
		cfg.Upstream.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Upstream.SymbolSuffix == "" {
		cfg.Upstream.SymbolSuffix = ".NS"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 10 * time.Second
	}
	if cfg.Upstream.RequestsPerSecond == 0 {
		cfg.Upstream.RequestsPerSecond = 3
	}
	if cfg.Upstream.Burst == 0 {
		cfg.Upstream.Burst = 5
	}
	if cfg.Cache.HistoricalTTL == 0 {
		cfg.Cache.HistoricalTTL = 6 * time.Hour
	}
	if cfg.Cache.SnapshotTTL == 0 {
		cfg.Cache.SnapshotTTL = time.Minute
	}
	if cfg.Cache.HistoryDepth == 0 {
		cfg.Cache.HistoryDepth = 10
	}
	if cfg.Cache.StatsWindow == 0 {
		cfg.Cache.StatsWindow = time.Minute
	}
	if cfg.Scan.Cron == "" {
		// 週一至週五 09:15-15:30 IST 每五分鐘
		cfg.Scan.Cron = "CRON_TZ=Asia/Kolkata */5 9-15 * * 1-5"
	}
	if cfg.Scan.Concurrency == 0 {
		cfg.Scan.Concurrency = 8
	}
	if cfg.Scan.LookbackDays == 0 {
		cfg.Scan.LookbackDays = 5
	}
	if cfg.Scan.UniverseSize == 0 {
		cfg.Scan.UniverseSize = 50
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if val := os.Getenv("HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := os.Getenv("PORT"); val != "" {
		cfg.HTTP.Addr = ":" + val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DB.DSN = val
	}
	if val := os.Getenv("NSE_BASE_URL"); val != "" {
		cfg.Upstream.NSEBaseURL = val
	}
	if val := os.Getenv("YAHOO_BASE_URL"); val != "" {
		cfg.Upstream.YahooBaseURL = val
	}
	if val := os.Getenv("UPSTREAM_RPS"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Upstream.RequestsPerSecond = f
		}
	}
	if val := os.Getenv("SCAN_CRON"); val != "" {
		cfg.Scan.Cron = val
	}
	if val := os.Getenv("SCAN_USE_INTRADAY"); val != "" {
		cfg.Scan.UseIntraday = (val == "true")
	}
	if val := os.Getenv("SCAN_DISCOVERY"); val != "" {
		cfg.Scan.Discovery = (val == "true")
	}
	if val := os.Getenv("SCAN_RUN_ON_START"); val != "" {
		cfg.Scan.RunOnStart = (val == "true")
	}
	if val := os.Getenv("WATCHLIST"); val != "" {
		cfg.Scan.SeedWatchlist = strings.Split(val, ",")
	}
	if val := os.Getenv("MARKET_HOLIDAYS"); val != "" {
		cfg.Market.Holidays = strings.Split(val, ",")
	}
	if val := os.Getenv("TELEGRAM_TOKEN"); val != "" {
		cfg.Notifier.Telegram.Token = val
	}
	if val := os.Getenv("TELEGRAM_CHAT_ID"); val != "" {
		if id, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Notifier.Telegram.ChatID = id
		}
	}
	if val := os.Getenv("TELEGRAM_ENABLED"); val != "" {
		cfg.Notifier.Telegram.Enabled = (val == "true")
	}
	if val := os.Getenv("RECORDER_SQLITE_PATH"); val != "" {
		cfg.Recorder.SQLitePath = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	return cfg
}

// Validate 檢查無法運作的組合。
func (c Config) Validate() error {
	var errs []error
	if c.Cache.HistoryDepth < c.Scan.LookbackDays+1 || c.Cache.HistoryDepth > 365 {
		errs = append(errs, fmt.Errorf("cache.history_depth must be between lookback_days+1 and 365, got %d", c.Cache.HistoryDepth))
	}
	if c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("scan.concurrency must be >= 0"))
	}
	if c.Upstream.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("upstream.requests_per_second must be >= 0"))
	}
	if c.Notifier.Telegram.Enabled && (c.Notifier.Telegram.Token == "" || c.Notifier.Telegram.ChatID == 0) {
		errs = append(errs, fmt.Errorf("notifier.telegram requires token and chat_id when enabled"))
	}
	return errors.Join(errs...)
}
