// Package config loads service configuration from an optional feeledger file,
// FEELEDGER_* environment variables and the plain env names the service has
// always honoured (DATABASE_URL, LOG_LEVEL, LOG_FORMAT, DEV_SEED, REDIS_ADDR).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/spf13/viper"

	"github.com/tinoosan/feeledger/internal/ledger"
)

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Books     BooksConfig
	Posting   PostingConfig
	Reports   ReportsConfig
	Reconcile ReconcileConfig
	DevSeed   bool
}

type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig selects the Postgres store when URL is set.
type DatabaseConfig struct {
	URL     string
	Migrate bool
}

// RedisConfig enables the cross-process fee lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type BooksConfig struct {
	Currency string
}

// PostingConfig names, by ledger code, where fee receipts are posted.
type PostingConfig struct {
	CashLedger      string
	BankLedger      string
	FeeIncomeLedger string
	ModeLedgers     map[ledger.PaymentMode]string
}

type ReportsConfig struct {
	CacheTTL time.Duration
}

// ReconcileConfig runs ReconcileAll every Interval; zero disables it.
type ReconcileConfig struct {
	Interval time.Duration
}

// Load reads configuration. Priority (highest to lowest):
// 1. FEELEDGER_* environment variables (e.g. FEELEDGER_DATABASE_URL)
// 2. the unprefixed env names bound below
// 3. feeledger.{toml,yaml,json} in . or /etc/feeledger
// 4. built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("feeledger")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/feeledger")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"database.url": "DATABASE_URL",
		"log.level":    "LOG_LEVEL",
		"log.format":   "LOG_FORMAT",
		"dev.seed":     "DEV_SEED",
		"redis.addr":   "REDIS_ADDR",
	} {
		if err := v.BindEnv(key, "FEELEDGER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}
	setDefaults(v)

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Database: DatabaseConfig{
			URL:     strings.TrimSpace(v.GetString("database.url")),
			Migrate: v.GetBool("database.migrate"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		},
		Books: BooksConfig{Currency: strings.ToUpper(strings.TrimSpace(v.GetString("books.currency")))},
		Posting: PostingConfig{
			CashLedger:      v.GetString("posting.cash_ledger"),
			BankLedger:      v.GetString("posting.bank_ledger"),
			FeeIncomeLedger: v.GetString("posting.fee_income_ledger"),
			ModeLedgers:     map[ledger.PaymentMode]string{},
		},
		Reports:   ReportsConfig{CacheTTL: v.GetDuration("reports.cache_ttl")},
		Reconcile: ReconcileConfig{Interval: v.GetDuration("reconcile.interval")},
		DevSeed:   parseBool(v.GetString("dev.seed")),
	}
	for mode, code := range v.GetStringMapString("posting.mode_ledgers") {
		cfg.Posting.ModeLedgers[ledger.PaymentMode(strings.ToUpper(mode))] = code
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("books.currency", "USD")
	v.SetDefault("posting.cash_ledger", "cash")
	v.SetDefault("posting.bank_ledger", "bank")
	v.SetDefault("posting.fee_income_ledger", "student_fees")
	v.SetDefault("reports.cache_ttl", 0)
	v.SetDefault("reconcile.interval", 0)
}

// DEV_SEED has always accepted 1/true/yes.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if _, err := money.NewAmountFromMinorUnits(c.Books.Currency, 0); err != nil {
		return fmt.Errorf("books.currency %q is not an ISO 4217 code: %w", c.Books.Currency, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	for mode := range c.Posting.ModeLedgers {
		if !mode.Valid() {
			return fmt.Errorf("posting.mode_ledgers: unknown payment mode %q", mode)
		}
	}
	if c.Reports.CacheTTL < 0 || c.Reconcile.Interval < 0 {
		return fmt.Errorf("reports.cache_ttl and reconcile.interval must not be negative")
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive")
	}
	return nil
}

// LogLevel maps Log.Level to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Leveler {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger: JSON by default, text when configured.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	if c.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
