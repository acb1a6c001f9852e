// Package config loads whaleflow settings from defaults, an optional YAML file,
// a .env file and WHALEFLOW_* environment variables (highest precedence).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. WHALEFLOW_POSTGRES_DSN.
const EnvPrefix = "WHALEFLOW"

// Config is the full application configuration.
type Config struct {
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Price      PriceConfig      `mapstructure:"price"`
	FX         FXConfig         `mapstructure:"fx"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Composite  CompositeConfig  `mapstructure:"composite"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ClickhouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PriceConfig configures the external price provider client.
type PriceConfig struct {
	BaseURL       string            `mapstructure:"base_url"`
	APIKey        string            `mapstructure:"api_key"`
	RatePerSecond float64           `mapstructure:"rate_per_second"`
	Burst         int               `mapstructure:"burst"`
	CallDelay     time.Duration     `mapstructure:"call_delay"` // minimum gap between provider calls
	Timeout       time.Duration     `mapstructure:"timeout"`
	Symbols       map[string]string `mapstructure:"symbols"` // extra symbol -> provider id entries
	Source        string            `mapstructure:"source"`  // "provider" or "store"
	Archive       bool              `mapstructure:"archive"` // write fetched ticks to ClickHouse
	CacheTTL      time.Duration     `mapstructure:"cache_ttl"`
}

// FXConfig configures the USD -> GBP conversion rate lookup.
type FXConfig struct {
	URL          string        `mapstructure:"url"`
	FallbackRate float64       `mapstructure:"fallback_rate"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// BacktestConfig holds defaults for backtest invocations.
type BacktestConfig struct {
	WindowHours          int           `mapstructure:"window_hours"`
	Notional             float64       `mapstructure:"notional"`
	TakerFeeBps          float64       `mapstructure:"taker_fee_bps"`
	SlippageBps          float64       `mapstructure:"slippage_bps"`
	Deadline             time.Duration `mapstructure:"deadline"`
	AutoDetectLimit      int           `mapstructure:"auto_detect_limit"`
	AggregateParallelism int           `mapstructure:"aggregate_parallelism"`
}

type CompositeConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	Tokens        []string      `mapstructure:"tokens"`
	WindowHours   int           `mapstructure:"window_hours"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	UseMemory bool `mapstructure:"use_memory"`
}

// SetDefaults registers default values on v.
// Every key needs a default, even an empty one, so that Unmarshal sees env overrides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("clickhouse.dsn", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("price.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price.api_key", "")
	v.SetDefault("price.rate_per_second", 0.5)
	v.SetDefault("price.burst", 1)
	v.SetDefault("price.call_delay", 1200*time.Millisecond)
	v.SetDefault("price.timeout", 10*time.Second)
	v.SetDefault("price.source", "provider")
	v.SetDefault("price.archive", false)
	v.SetDefault("price.cache_ttl", 10*time.Minute)

	v.SetDefault("fx.url", "https://api.frankfurter.app/latest?from=GBP&to=USD")
	v.SetDefault("fx.fallback_rate", 1.27)
	v.SetDefault("fx.cache_ttl", time.Hour)
	v.SetDefault("fx.timeout", 5*time.Second)

	v.SetDefault("backtest.window_hours", 24)
	v.SetDefault("backtest.notional", 100.0)
	v.SetDefault("backtest.taker_fee_bps", 10.0)
	v.SetDefault("backtest.slippage_bps", 5.0)
	v.SetDefault("backtest.deadline", 60*time.Second)
	v.SetDefault("backtest.auto_detect_limit", 30)
	v.SetDefault("backtest.aggregate_parallelism", 8)

	v.SetDefault("composite.interval", 15*time.Minute)
	v.SetDefault("composite.source_timeout", 5*time.Second)
	v.SetDefault("composite.tokens", []string{})
	v.SetDefault("composite.window_hours", 48)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.use_memory", false)
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the .env file (if present), the optional config file, and the
// environment into a validated Config. Flags bound to v before calling Load
// take precedence over everything else.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if v == nil {
		v = New()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make every run fail.
func (c *Config) Validate() error {
	if c.Backtest.WindowHours <= 0 {
		return fmt.Errorf("backtest.window_hours must be positive, got %d", c.Backtest.WindowHours)
	}
	if c.Backtest.Notional <= 0 {
		return fmt.Errorf("backtest.notional must be positive, got %v", c.Backtest.Notional)
	}
	if c.Backtest.TakerFeeBps < 0 || c.Backtest.SlippageBps < 0 {
		return fmt.Errorf("backtest fee and slippage bps must be non-negative")
	}
	if c.FX.FallbackRate <= 0 {
		return fmt.Errorf("fx.fallback_rate must be positive, got %v", c.FX.FallbackRate)
	}
	// Provider calls are spaced by call_delay, so the spacing of a full
	// auto-detected token set must leave room inside the run deadline.
	if spacing := c.Price.CallDelay * time.Duration(max(c.Backtest.AutoDetectLimit-1, 0)); c.Backtest.Deadline > 0 && spacing >= c.Backtest.Deadline {
		return fmt.Errorf("price.call_delay %s x backtest.auto_detect_limit %d leaves no time inside backtest.deadline %s",
			c.Price.CallDelay, c.Backtest.AutoDetectLimit, c.Backtest.Deadline)
	}
	if c.Price.Source != "provider" && c.Price.Source != "store" {
		return fmt.Errorf("price.source must be provider or store, got %q", c.Price.Source)
	}
	if !c.Storage.UseMemory && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required unless storage.use_memory is set")
	}
	return nil
}
