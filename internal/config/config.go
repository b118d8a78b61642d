// Package config defines the top-level configuration for the resolver
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RESOLVER_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Engine   EngineConfig   `toml:"engine"`
	Resolver ResolverConfig `toml:"resolver"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settled
// market archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds price provider endpoints and the fixed-point scale
// applied to decimal feed prices.
type OracleConfig struct {
	BinanceBaseURL   string   `toml:"binance_base_url"`
	CoinGeckoBaseURL string   `toml:"coingecko_base_url"`
	Timeout          duration `toml:"timeout"`
	PriceScale       int64    `toml:"price_scale"`
}

// EngineConfig holds the numeric constants of the resolution, dispute,
// payout, and extension engines. All amounts are fixed-point integers in the
// smallest currency unit.
type EngineConfig struct {
	FeePercent              int64    `toml:"fee_percent"`
	MaxOutcomes             int      `toml:"max_outcomes"`
	HybridConsensusPercent  int      `toml:"hybrid_consensus_percent"`
	BaseDisputeThreshold    int64    `toml:"base_dispute_threshold"`
	MinDisputeStake         int64    `toml:"min_dispute_stake"`
	MaxDisputeThreshold     int64    `toml:"max_dispute_threshold"`
	LargeMarketThreshold    int64    `toml:"large_market_threshold"`
	HighActivityThreshold   int      `toml:"high_activity_threshold"`
	MinExtensionDays        int      `toml:"min_extension_days"`
	MaxExtensionDays        int      `toml:"max_extension_days"`
	MaxTotalExtensions      int      `toml:"max_total_extensions"`
	DefaultMaxExtensionDays int      `toml:"default_max_extension_days"`
	ExtensionFeePerDay      int64    `toml:"extension_fee_per_day"`
	DisputeExtension        duration `toml:"dispute_extension"`
	LockTTL                 duration `toml:"lock_ttl"`
}

// ResolverConfig holds parameters for the background resolver loop.
type ResolverConfig struct {
	Interval  duration `toml:"interval"`
	BatchSize int      `toml:"batch_size"`
}

// ArchiveConfig holds parameters for the settled-market archiver.
type ArchiveConfig struct {
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
	BatchSize     int      `toml:"batch_size"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool   `toml:"enabled"`
	Port            int    `toml:"port"`
	APIKey          string `toml:"api_key"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "resolver",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "resolver-archive",
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			BinanceBaseURL:   "https://api.binance.com",
			CoinGeckoBaseURL: "https://api.coingecko.com",
			Timeout:          duration{10 * time.Second},
			PriceScale:       1, // feeds already quoted in the smallest unit
		},
		Engine: EngineConfig{
			FeePercent:              2,
			MaxOutcomes:             10,
			HybridConsensusPercent:  70,
			BaseDisputeThreshold:    10_000_000,
			MinDisputeStake:         1_000_000,
			MaxDisputeThreshold:     100_000_000,
			LargeMarketThreshold:    1_000_000_000,
			HighActivityThreshold:   100,
			MinExtensionDays:        1,
			MaxExtensionDays:        30,
			MaxTotalExtensions:      3,
			DefaultMaxExtensionDays: 90,
			ExtensionFeePerDay:      1_000_000,
			DisputeExtension:        duration{24 * time.Hour},
			LockTTL:                 duration{30 * time.Second},
		},
		Resolver: ResolverConfig{
			Interval:  duration{time.Minute},
			BatchSize: 50,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
			BatchSize:     100,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			RateLimitPerMin: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "dispute_raised", "market_extended", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"resolver": true,
	"archive":  true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, resolver, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required for modes that archive.
	if c.Mode == "archive" || c.Mode == "full" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty for mode "+c.Mode)
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for mode "+c.Mode)
		}
	}

	// Oracle
	if c.Oracle.BinanceBaseURL == "" && c.Oracle.CoinGeckoBaseURL == "" {
		errs = append(errs, "oracle: at least one provider base URL must be set")
	}
	if c.Oracle.PriceScale <= 0 {
		errs = append(errs, "oracle: price_scale must be > 0")
	}

	// Engine
	if c.Engine.FeePercent < 0 || c.Engine.FeePercent > 100 {
		errs = append(errs, fmt.Sprintf("engine: fee_percent must be 0-100, got %d", c.Engine.FeePercent))
	}
	if c.Engine.MaxOutcomes < 2 {
		errs = append(errs, "engine: max_outcomes must be >= 2")
	}
	if c.Engine.HybridConsensusPercent <= 0 || c.Engine.HybridConsensusPercent >= 100 {
		errs = append(errs, "engine: hybrid_consensus_percent must be in (0, 100)")
	}
	if c.Engine.BaseDisputeThreshold <= 0 {
		errs = append(errs, "engine: base_dispute_threshold must be > 0")
	}
	if c.Engine.MinDisputeStake <= 0 {
		errs = append(errs, "engine: min_dispute_stake must be > 0")
	}
	if c.Engine.MaxDisputeThreshold < c.Engine.MinDisputeStake {
		errs = append(errs, "engine: max_dispute_threshold must be >= min_dispute_stake")
	}
	if c.Engine.MinExtensionDays < 1 {
		errs = append(errs, "engine: min_extension_days must be >= 1")
	}
	if c.Engine.MaxExtensionDays < c.Engine.MinExtensionDays {
		errs = append(errs, "engine: max_extension_days must be >= min_extension_days")
	}
	if c.Engine.MaxTotalExtensions < 1 {
		errs = append(errs, "engine: max_total_extensions must be >= 1")
	}
	if c.Engine.ExtensionFeePerDay < 0 {
		errs = append(errs, "engine: extension_fee_per_day must be >= 0")
	}
	if c.Engine.DisputeExtension.Duration <= 0 {
		errs = append(errs, "engine: dispute_extension must be > 0")
	}
	if c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be > 0")
	}

	// Resolver loop
	if c.Resolver.Interval.Duration <= 0 {
		errs = append(errs, "resolver: interval must be > 0")
	}
	if c.Resolver.BatchSize < 1 {
		errs = append(errs, "resolver: batch_size must be >= 1")
	}

	// Archive
	if c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive: retention_days must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
