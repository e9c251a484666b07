package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/account-ledger/internal/config"
	"github.com/boddenberg/account-ledger/internal/handler"
	"github.com/boddenberg/account-ledger/internal/infra/cache"
	"github.com/boddenberg/account-ledger/internal/infra/events"
	"github.com/boddenberg/account-ledger/internal/infra/memory"
	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/infra/postgres"
	"github.com/boddenberg/account-ledger/internal/infra/resilience"
	"github.com/boddenberg/account-ledger/internal/port"
	"github.com/boddenberg/account-ledger/internal/service"

	"go.uber.org/zap"
)

const serviceName = "account-ledger"

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, serviceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("timezone", cfg.Timezone),
		zap.Bool("events_enabled", cfg.RedisAddr != ""),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("idempotency_ttl", cfg.IdempotencyTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, serviceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// --- Store ---
	var store port.LedgerStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	case config.BackendPostgres:
		db, err := postgres.Open(startCtx, postgres.Options{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLife,
		})
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()

		if cfg.DBAutoMigrate {
			if err := postgres.Migrate(startCtx, db, logger); err != nil {
				logger.Fatal("failed to migrate database", zap.Error(err))
			}
		}
		store = postgres.NewStore(db, resilience.NewBulkhead(cfg.MaxConcurrency), cfg.DBQueryTimeout, logger)
		logger.Info("using postgres store")
	default:
		logger.Fatal("unknown store backend", zap.String("store_backend", cfg.StoreBackend))
	}

	// --- Events ---
	var publisher port.EventPublisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		rdb, err := events.NewRedisClient(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		cb := resilience.NewCircuitBreaker("redis-events", logger)
		publisher = events.NewRedisPublisher(rdb, cfg.EventsChannel, cb, resilienceCfg, logger)
		logger.Info("movement events enabled", zap.String("channel", cfg.EventsChannel))
	} else {
		logger.Warn("REDIS_ADDR not set, movement events are discarded")
	}

	// --- Idempotency cache ---
	idempotency := cache.New[*handler.CachedResponse](cfg.IdempotencyTTL)
	defer idempotency.Close()

	// --- Services ---
	ledgerSvc := service.NewLedgerService(store, publisher, metrics, logger,
		service.WithLocation(cfg.Location()),
	)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, metrics, logger, handler.RouterConfig{
		Idempotency:        idempotency,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
