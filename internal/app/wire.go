package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	s3blob "github.com/jakeharveyy/tipengine/internal/blob/s3"
	"github.com/jakeharveyy/tipengine/internal/cache/redis"
	"github.com/jakeharveyy/tipengine/internal/config"
	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/metrics"
	"github.com/jakeharveyy/tipengine/internal/notify"
	"github.com/jakeharveyy/tipengine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Clients, kept for health checks.
	PG    *postgres.Client
	Redis *redis.Client

	// Stores
	Users       domain.UserStore
	Rounds      domain.RoundStore
	Matches     domain.MatchStore
	Bets        domain.BetStore
	Ledger      domain.LedgerStore
	Predictions domain.PredictionStore

	// Caches
	Odds    domain.OddsCache
	Limiter domain.RateLimiter
	Locks   domain.LockManager
	Bus     domain.SignalBus
	Marks   domain.Watermarks

	// Blob storage, nil unless the archive is enabled for this mode.
	Archiver domain.Archiver

	// Outbound
	Events   *notify.EventPublisher
	Notifier *notify.Notifier

	Metrics *metrics.Metrics
}

// runsJobs returns true for modes that run the background pipeline.
func runsJobs(mode string) bool {
	switch strings.ToLower(mode) {
	case "jobs", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.Users = postgres.NewUserStore(pool)
	deps.Rounds = postgres.NewRoundStore(pool)
	deps.Matches = postgres.NewMatchStore(pool)
	deps.Bets = postgres.NewBetStore(pool)
	deps.Ledger = postgres.NewLedgerStore(pool)
	deps.Predictions = postgres.NewPredictionStore(pool)

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

	deps.Redis = redisClient
	deps.Odds = redis.NewOddsCache(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)
	deps.Marks = redis.NewWatermarks(redisClient)

	// --- S3 exports (only when the archive will actually run) ---
	if cfg.Archive.Enabled && runsJobs(cfg.Mode) {
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

		deps.Archiver = s3blob.NewExporter(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Bets,
			deps.Ledger,
			cfg.Archive.Prefix,
		)
	}

	// --- Outbound events ---
	// The redis signal bus is always on; Kafka is additive.
	var writer *kafka.Writer
	if cfg.Notify.KafkaEnabled {
		writer = notify.NewKafkaWriter(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
	}
	deps.Events = notify.NewEventPublisher(deps.Bus, writer, logger).
		WithSinkCounter(deps.Metrics.EventsSent)
	closers = append(closers, func() { _ = deps.Events.Close() })

	var senders []notify.Sender
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger).
		WithSinkCounter(deps.Metrics.EventsSent)

	return deps, cleanup, nil
}
