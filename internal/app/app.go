// Package app wires configuration, storage, the billing gateway, and the
// HTTP transport into a runnable service.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/auth"
	"github.com/jia-app/billingservice/internal/billing/gateway"
	"github.com/jia-app/billingservice/internal/billing/repo/postgres"
	"github.com/jia-app/billingservice/internal/billing/usecase"
	"github.com/jia-app/billingservice/internal/cache"
	"github.com/jia-app/billingservice/internal/config"
	"github.com/jia-app/billingservice/internal/db"
	"github.com/jia-app/billingservice/internal/events"
	"github.com/jia-app/billingservice/internal/log"
	"github.com/jia-app/billingservice/internal/tracing"
	transport "github.com/jia-app/billingservice/internal/transport/http"
	"github.com/jia-app/billingservice/migrations"
)

// App represents the application
type App struct {
	config      *config.Config
	logger      *zap.Logger
	dbPool      *db.Pool
	redisCache  *cache.Cache
	publisher   events.Publisher
	server      *transport.Server
	stopTracing func()
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := log.Init(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.L(ctx)

	logger.Info("Initializing billing service",
		zap.String("app_name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port))

	app := &App{config: cfg, logger: logger}

	if cfg.Tracing.Enabled {
		stop, err := tracing.Init(tracing.Config{
			ServiceName:    cfg.App.Name,
			Environment:    cfg.App.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRatio:  cfg.Tracing.SamplingRatio,
		}, logger)
		if err != nil {
			logger.Warn("Tracing initialization failed, continuing without tracing", zap.Error(err))
		} else {
			app.stopTracing = stop
		}
	}

	poolCfg := db.DefaultConfig(cfg.Database.GetDSN())
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := db.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.dbPool = pool

	if err := migrations.Up(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := postgres.NewStoreWithPool(pool.Pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Redis is optional; without it the catalog listing just skips the
	// read-through cache.
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewCache(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis initialization failed, continuing without cache",
				zap.Error(err),
				zap.String("redis_addr", cfg.Redis.GetRedisAddr()))
		} else {
			app.redisCache = redisCache
		}
	}

	app.publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn("Kafka initialization failed, continuing without event publishing", zap.Error(err))
		} else {
			app.publisher = publisher
		}
	}

	gw, err := gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize billing gateway: %w", err)
	}

	var sessions *auth.JWTValidator
	if cfg.Auth.JWTPublicKey != "" {
		sessions, err = auth.NewJWTValidator(cfg.Auth.JWTPublicKey)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize session validator: %w", err)
		}
	} else {
		logger.Warn("No session public key configured, viewer-scoped endpoints are disabled")
	}

	resolver := usecase.NewCustomerResolver(store.Users(), gw)
	checkout := usecase.NewCheckout(resolver, store.Prices(), gw)
	catalog := usecase.NewCatalog(store.Products(), store.Prices(), store.Subscriptions(), app.redisCache)
	synchronizer := usecase.NewSynchronizer(store, gw, app.redisCache, app.publisher)

	app.server = transport.NewServer(transport.Config{
		Port:     cfg.Server.Port,
		Insecure: cfg.App.IsDevelopment(),
	}, catalog, checkout, synchronizer, gw, sessions)

	return app, nil
}

// Run starts the application and blocks until the server stops.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting billing service")
	return a.server.Serve(ctx)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down billing service")

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
	if a.stopTracing != nil {
		a.stopTracing()
	}

	a.logger.Info("Shutdown complete")
	log.Sync()
	return nil
}
