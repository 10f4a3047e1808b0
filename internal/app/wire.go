package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/auctioneer/internal/blob/s3"
	"github.com/alanyoungcy/auctioneer/internal/cache/local"
	"github.com/alanyoungcy/auctioneer/internal/cache/redis"
	"github.com/alanyoungcy/auctioneer/internal/config"
	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/engine/memory"
	"github.com/alanyoungcy/auctioneer/internal/forward"
	"github.com/alanyoungcy/auctioneer/internal/metrics"
	"github.com/alanyoungcy/auctioneer/internal/notify"
	"github.com/alanyoungcy/auctioneer/internal/platform/escrow"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/service"
	memstore "github.com/alanyoungcy/auctioneer/internal/store/memory"
	"github.com/alanyoungcy/auctioneer/internal/store/postgres"
)

const localNonceCapacity = 100_000

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Scheme derive.Scheme

	// Engine
	Engine   forward.Engine
	Registry domain.Registry
	// MemoryEngine is set when the base engine runs in process.
	MemoryEngine *memory.Engine

	// Stores
	ListingStore    domain.ListingStore
	DelegationStore domain.DelegationStore
	AuditStore      domain.AuditStore

	// Caches
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	Nonces      domain.NonceStore

	// Archiver is nil unless archiving is configured.
	Archiver domain.Archiver

	Metrics    *metrics.Metrics
	Notifier   *notify.EventNotifier
	Auctioneer *service.Auctioneer

	// Checks feed the health endpoint.
	Checks map[string]handler.Pinger
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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Derivation ---
	program, err := domain.ParseAddress(cfg.Auctioneer.ProgramID)
	if err != nil {
		return fail(fmt.Errorf("wire: program_id: %w", err))
	}
	engineProgram, err := domain.ParseAddress(cfg.Auctioneer.EngineProgramID)
	if err != nil {
		return fail(fmt.Errorf("wire: engine_program_id: %w", err))
	}
	deps.Scheme = derive.NewScheme(program, engineProgram,
		derive.WithMaxAttempts(cfg.Auctioneer.MaxNonceAttempts))

	deps.Metrics = metrics.New()

	// --- Base engine ---
	switch cfg.Engine.Mode {
	case "remote":
		client, err := remoteEngine(cfg)
		if err != nil {
			return fail(err)
		}
		deps.Engine, deps.Registry = client, client
	default:
		eng := memory.New(deps.Scheme)
		deps.MemoryEngine = eng
		deps.Engine, deps.Registry = eng, eng
	}

	// --- Stores and caches ---
	var archiveStore s3blob.ListingArchiveStore
	if cfg.Store.Backend == "postgres" {
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		listings := postgres.NewListingStore(pool)
		deps.ListingStore, archiveStore = listings, listings
		deps.DelegationStore = postgres.NewDelegationStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient

		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Prefix:     cfg.Redis.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Nonces = redis.NewNonceStore(redisClient)
		deps.Checks["redis"] = redisClient
	} else {
		listings := memstore.NewListingStore()
		deps.ListingStore, archiveStore = listings, listings
		deps.DelegationStore = memstore.NewDelegationStore()
		deps.AuditStore = memstore.NewAuditStore()

		nonces, err := local.NewNonceStore(localNonceCapacity)
		if err != nil {
			return fail(fmt.Errorf("wire: nonce store: %w", err))
		}
		deps.LockManager = local.NewLockManager()
		deps.SignalBus = local.NewSignalBus()
		deps.RateLimiter = local.NewRateLimiter()
		deps.Nonces = nonces
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled || cfg.Mode == "archive" {
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
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewListingArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			archiveStore,
			deps.AuditStore,
		)
		deps.Checks["s3"] = handler.PingFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewEventNotifier(
		notify.NewNotifier(senders, cfg.Notify.Events, logger),
		cfg.Notify.Decimals,
	)

	// --- Service ---
	deps.Auctioneer = service.New(
		deps.Scheme,
		deps.Registry,
		forward.New(deps.Engine, deps.Metrics, logger),
		deps.ListingStore,
		deps.DelegationStore,
		deps.AuditStore,
		deps.LockManager,
		deps.SignalBus,
		logger,
	).
		WithRecorder(deps.Metrics).
		WithNotifier(deps.Notifier).
		WithLockTTL(cfg.Auctioneer.LockTTL.Duration)

	return deps, cleanup, nil
}

// remoteEngine builds the HTTP engine client with the operator's key.
func remoteEngine(cfg *config.Config) (*escrow.Client, error) {
	operator, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Operator.PrivateKey,
		EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
		KeyPassword:      cfg.Operator.KeyPassword,
	}, cfg.Auctioneer.ChainID)
	if err != nil {
		return nil, fmt.Errorf("wire: operator key: %w", err)
	}

	var auth *crypto.HMACAuth
	if cfg.Engine.ApiKey != "" {
		auth = &crypto.HMACAuth{
			Key:        cfg.Engine.ApiKey,
			Secret:     cfg.Engine.ApiSecret,
			Passphrase: cfg.Engine.ApiPassphrase,
		}
	}

	client, err := escrow.New(escrow.Config{
		BaseURL:   cfg.Engine.BaseURL,
		Timeout:   cfg.Engine.Timeout.Duration,
		HMAC:      auth,
		Operator:  operator,
		CacheSize: cfg.Engine.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: engine client: %w", err)
	}
	return client, nil
}
