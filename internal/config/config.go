package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"fundscore/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Source    SourceConfig    `mapstructure:"source"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN              string        `mapstructure:"dsn"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ApplicationName  string        `mapstructure:"application_name"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrationsPath   string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs when categories are rescored.
type SchedulerConfig struct {
	Spec            string        `mapstructure:"spec"`
	Timezone        string        `mapstructure:"timezone"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	Categories      []string      `mapstructure:"categories"`
}

// ScoringConfig carries the analytics thresholds.
type ScoringConfig struct {
	MinDailyPoints         int     `mapstructure:"min_daily_points"`
	RiskFreeRate           float64 `mapstructure:"risk_free_rate"`
	LookbackMonths         int     `mapstructure:"lookback_months"`
	MinOverlapMonths       int     `mapstructure:"min_overlap_months"`
	MinRegimeMonths        int     `mapstructure:"min_regime_months"`
	MinPeers               int     `mapstructure:"min_peers"`
	Workers                int     `mapstructure:"workers"`
	PoliciesFile           string  `mapstructure:"policies_file"`
	BenchmarkOverridesFile string  `mapstructure:"benchmark_overrides_file"`
}

// SourceConfig selects where NAV and benchmark history come from.
type SourceConfig struct {
	Kind           string        `mapstructure:"kind"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines run notifications.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	OnSuccess bool           `mapstructure:"on_success"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FUNDSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv reads ./.env when present without overriding the real environment.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fundscore")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.spec", "30 2 * * *")
	v.SetDefault("scheduler.timezone", "Asia/Kolkata")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x66756e64))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.categories", []string{})

	v.SetDefault("scoring.min_daily_points", 250)
	v.SetDefault("scoring.risk_free_rate", 0.06)
	v.SetDefault("scoring.lookback_months", 36)
	v.SetDefault("scoring.min_overlap_months", 30)
	v.SetDefault("scoring.min_regime_months", 6)
	v.SetDefault("scoring.min_peers", 3)
	v.SetDefault("scoring.workers", 8)

	v.SetDefault("source.kind", "postgres")
	v.SetDefault("source.request_timeout", "15s")
	v.SetDefault("source.user_agent", "fundscore/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.on_success", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_rows", 5000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9108")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.application_name", "fundscore")
	v.SetDefault("database.statement_timeout", "60s")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("scheduler.spec %q is invalid: %w", c.Scheduler.Spec, err)
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("scheduler.timezone %q is invalid: %w", c.Scheduler.Timezone, err)
		}
	}
	if c.Scoring.MinDailyPoints <= 0 {
		return fmt.Errorf("scoring.min_daily_points must be greater than zero")
	}
	if c.Scoring.LookbackMonths <= 0 {
		return fmt.Errorf("scoring.lookback_months must be greater than zero")
	}
	if c.Scoring.MinOverlapMonths <= 0 || c.Scoring.MinOverlapMonths > c.Scoring.LookbackMonths {
		return fmt.Errorf("scoring.min_overlap_months must be between 1 and scoring.lookback_months")
	}
	if c.Scoring.MinRegimeMonths <= 0 {
		return fmt.Errorf("scoring.min_regime_months must be greater than zero")
	}
	if c.Scoring.MinPeers < 1 {
		return fmt.Errorf("scoring.min_peers must be at least 1")
	}
	if c.Scoring.Workers <= 0 {
		return fmt.Errorf("scoring.workers must be greater than zero")
	}
	switch c.Source.Kind {
	case "postgres":
	case "http":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required when source.kind is http")
		}
	default:
		return fmt.Errorf("source.kind %q is not supported", c.Source.Kind)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}

// ResolveWorkers returns either the CLI override or config default.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.Scoring.Workers
}

// Location returns the scheduler timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
