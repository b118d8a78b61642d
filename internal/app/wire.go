package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/hybridmarkets/resolver/internal/blob/s3"
	"github.com/hybridmarkets/resolver/internal/cache/redis"
	"github.com/hybridmarkets/resolver/internal/config"
	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/funds"
	"github.com/hybridmarkets/resolver/internal/notify"
	"github.com/hybridmarkets/resolver/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore      domain.MarketStore
	BetStore         domain.BetStore
	ResolutionStore  domain.ResolutionStore
	ThresholdHistory domain.ThresholdHistoryStore
	ExtensionStore   domain.ExtensionStore
	AuditStore       domain.AuditStore

	// Funds ledger
	Funds domain.FundsTransferrer

	// Caches and coordination
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (archive/full modes only)
	BlobWriter *s3blob.Writer
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that archive settled markets to object
// storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.ResolutionStore = postgres.NewResolutionStore(pool)
	deps.ThresholdHistory = postgres.NewThresholdHistoryStore(pool)
	deps.ExtensionStore = postgres.NewExtensionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)
	deps.Funds = funds.NewLedger(pool, logger)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.MarketStore,
			deps.BetStore,
			deps.ResolutionStore,
			deps.ThresholdHistory,
			deps.ExtensionStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
