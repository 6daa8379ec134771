package app

import (
	"context"
	"fmt"
	"time"

	"github.com/molbhav/molbhav/internal/botdetect"
	"github.com/molbhav/molbhav/internal/catalog"
	"github.com/molbhav/molbhav/internal/circuitbreaker"
	"github.com/molbhav/molbhav/internal/coupon"
	"github.com/molbhav/molbhav/internal/dialogue"
	"github.com/molbhav/molbhav/internal/eventfeed"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/internal/quote"
	"github.com/molbhav/molbhav/internal/reaper"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/cache"
	"github.com/molbhav/molbhav/pkg/config"
	"github.com/molbhav/molbhav/pkg/healthprobe"
	"github.com/molbhav/molbhav/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	catalogCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	hot, err := setupHotStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup hot store: %w", err)
	}

	durable, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	catalogService, err := catalog.New(&catalog.Config{
		Store:  durable,
		Cache:  catalogCache,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup catalog: %w", err)
	}

	couponService, err := coupon.New(&coupon.Config{
		Store:  durable,
		Cache:  catalogCache,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup coupons: %w", err)
	}

	generator, breaker, err := setupDialogue(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup dialogue: %w", err)
	}

	quotes, err := quote.New(&quote.Config{
		SigningKey: cfg.QuoteSigningKey,
		TTL:        cfg.QuoteTTL,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup quotes: %w", err)
	}

	feed := eventfeed.New(logger)

	negotiations, err := negotiation.NewService(&negotiation.Config{
		Machine:        negotiation.NewMachine(cfg.ZOPAEpsilonPct, botdetect.New(cfg.MinResponseDelay)),
		Hot:            hot,
		Durable:        durable,
		Catalog:        catalogService,
		Coupons:        couponService,
		Dialogue:       generator,
		Quotes:         quotes,
		Feed:           feed,
		Logger:         logger,
		SessionTTL:     cfg.SessionTTL,
		Cooldown:       cfg.MinResponseDelay,
		LockLease:      cfg.LockLease,
		DurableTimeout: cfg.DurableTimeout,
		StartRateLimit: int64(cfg.StartRatePerMin),
		DefaultBeta:    cfg.DefaultBeta,
		DefaultAlpha:   cfg.DefaultAlpha,
		MaxRounds:      cfg.DefaultMaxRounds,
		QuoteTTL:       int(cfg.QuoteTTL / time.Second),
		Production:     cfg.IsProduction(),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup negotiation service: %w", err)
	}

	sessionReaper, err := reaperFor(cfg, hot, durable, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup reaper: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:               cfg.HTTPPort,
		Logger:             logger,
		HealthChecker:      healthChecker,
		Negotiations:       negotiations,
		Catalog:            catalogService,
		Hot:                hot,
		Durable:            durable,
		Breaker:            breaker,
		Feed:               feed,
		AdminKey:           cfg.APIAdminKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	registerProbes(healthChecker, hot, durable)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		negotiations:  negotiations,
		reaper:        sessionReaper,
		feed:          feed,
		hot:           hot,
		durable:       durable,
		catalogCache:  catalogCache,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (products + coupon lists)
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupHotStore selects Redis when REDIS_URL is set; otherwise the session
// tier runs in process memory, which is fine for a single instance.
func setupHotStore(cfg *config.Config, logger *zap.Logger) (hotstore.Store, error) {
	if cfg.RedisURL == "" {
		logger.Info("hot-store-memory-mode")
		return hotstore.NewMemoryStore(logger), nil
	}

	store, err := hotstore.NewRedisStore(&hotstore.RedisConfig{
		URL:     cfg.RedisURL,
		Timeout: cfg.HotStoreTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}

	return store, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Timeout:  cfg.DurableTimeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// setupDialogue wires the LLM client behind a failure-rate breaker. Without
// LLM_BASE_URL the generator renders templates only and no breaker exists.
func setupDialogue(cfg *config.Config, logger *zap.Logger) (*dialogue.Generator, *circuitbreaker.FailureRateBreaker, error) {
	if cfg.LLMBaseURL == "" {
		logger.Info("dialogue-template-only-mode")

		generator, err := dialogue.New(&dialogue.Config{
			Production: cfg.IsProduction(),
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create generator: %w", err)
		}

		return generator, nil, nil
	}

	llm, err := dialogue.NewLLMClient(&dialogue.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create llm client: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("create breaker: %w", err)
	}

	generator, err := dialogue.New(&dialogue.Config{
		LLM:        llm,
		Breaker:    breaker,
		Production: cfg.IsProduction(),
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create generator: %w", err)
	}

	return generator, breaker, nil
}

func reaperFor(cfg *config.Config, hot hotstore.Store, durable storage.Storage, logger *zap.Logger) (*reaper.Reaper, error) {
	return reaper.New(&reaper.Config{
		Hot:      hot,
		Durable:  durable,
		Interval: cfg.ReaperInterval,
		Logger:   logger,
	})
}

func registerProbes(hc *healthprobe.HealthChecker, hot hotstore.Store, durable storage.Storage) {
	hc.RegisterProbe("hotstore", func(ctx context.Context) error {
		return hot.Ping(ctx)
	})
	hc.RegisterProbe("storage", func(ctx context.Context) error {
		return durable.Ping(ctx)
	})
}
