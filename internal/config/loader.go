package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RESOLVER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RESOLVER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "RESOLVER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RESOLVER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RESOLVER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RESOLVER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RESOLVER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RESOLVER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RESOLVER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RESOLVER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RESOLVER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RESOLVER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RESOLVER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RESOLVER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RESOLVER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RESOLVER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RESOLVER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RESOLVER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "RESOLVER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RESOLVER_S3_REGION")
	setStr(&cfg.S3.Bucket, "RESOLVER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RESOLVER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RESOLVER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RESOLVER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RESOLVER_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setStr(&cfg.Oracle.BinanceBaseURL, "RESOLVER_ORACLE_BINANCE_BASE_URL")
	setStr(&cfg.Oracle.CoinGeckoBaseURL, "RESOLVER_ORACLE_COINGECKO_BASE_URL")
	setDuration(&cfg.Oracle.Timeout, "RESOLVER_ORACLE_TIMEOUT")
	setInt64(&cfg.Oracle.PriceScale, "RESOLVER_ORACLE_PRICE_SCALE")

	// ── Engine ──
	setInt64(&cfg.Engine.FeePercent, "RESOLVER_ENGINE_FEE_PERCENT")
	setInt(&cfg.Engine.MaxOutcomes, "RESOLVER_ENGINE_MAX_OUTCOMES")
	setInt(&cfg.Engine.HybridConsensusPercent, "RESOLVER_ENGINE_HYBRID_CONSENSUS_PERCENT")
	setInt64(&cfg.Engine.BaseDisputeThreshold, "RESOLVER_ENGINE_BASE_DISPUTE_THRESHOLD")
	setInt64(&cfg.Engine.MinDisputeStake, "RESOLVER_ENGINE_MIN_DISPUTE_STAKE")
	setInt64(&cfg.Engine.MaxDisputeThreshold, "RESOLVER_ENGINE_MAX_DISPUTE_THRESHOLD")
	setInt64(&cfg.Engine.LargeMarketThreshold, "RESOLVER_ENGINE_LARGE_MARKET_THRESHOLD")
	setInt(&cfg.Engine.HighActivityThreshold, "RESOLVER_ENGINE_HIGH_ACTIVITY_THRESHOLD")
	setInt(&cfg.Engine.MinExtensionDays, "RESOLVER_ENGINE_MIN_EXTENSION_DAYS")
	setInt(&cfg.Engine.MaxExtensionDays, "RESOLVER_ENGINE_MAX_EXTENSION_DAYS")
	setInt(&cfg.Engine.MaxTotalExtensions, "RESOLVER_ENGINE_MAX_TOTAL_EXTENSIONS")
	setInt(&cfg.Engine.DefaultMaxExtensionDays, "RESOLVER_ENGINE_DEFAULT_MAX_EXTENSION_DAYS")
	setInt64(&cfg.Engine.ExtensionFeePerDay, "RESOLVER_ENGINE_EXTENSION_FEE_PER_DAY")
	setDuration(&cfg.Engine.DisputeExtension, "RESOLVER_ENGINE_DISPUTE_EXTENSION")
	setDuration(&cfg.Engine.LockTTL, "RESOLVER_ENGINE_LOCK_TTL")

	// ── Resolver loop ──
	setDuration(&cfg.Resolver.Interval, "RESOLVER_RESOLVER_INTERVAL")
	setInt(&cfg.Resolver.BatchSize, "RESOLVER_RESOLVER_BATCH_SIZE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "RESOLVER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "RESOLVER_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchSize, "RESOLVER_ARCHIVE_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RESOLVER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RESOLVER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "RESOLVER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "RESOLVER_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RESOLVER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RESOLVER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RESOLVER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RESOLVER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RESOLVER_MODE")
	setStr(&cfg.LogLevel, "RESOLVER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
