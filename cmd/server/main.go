// Package main provides the API server entry point for the QR routing hub.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qr-hub/internal/api"
	"github.com/qr-hub/internal/auth"
	"github.com/qr-hub/internal/config"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/ratelimit"
	"github.com/qr-hub/internal/service"
	"github.com/qr-hub/internal/storage"
)

// backends holds the stores selected by configuration
type backends struct {
	records   storage.QRStore
	events    storage.EventLog
	planStore storage.UserPlanStore
	users     storage.UserStore

	database service.Pinger
	cache    service.Pinger

	slugCache *storage.SlugCache
	meter     ratelimit.ScanMeter

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	fmt.Println("QR Hub API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":        cfg.Logging.Level,
		"format":       cfg.Logging.Format,
		"storeBackend": cfg.Store.Backend,
		"eventBackend": cfg.Store.EventBackend,
	}).Info("Structured logging initialized")

	b, err := openBackends(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer b.close()

	tokens, err := auth.NewTokenManager(cfg.Integrations.Auth)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token manager")
	}
	if tokens.Ephemeral() {
		logger.Warn("AUTH_JWT_SECRET is not set; using an ephemeral secret, sessions will not survive a restart")
	}

	// Initialize services
	logger.Info("Initializing services...")

	planService := service.NewPlanService(b.planStore, b.records, b.meter)
	qrService := service.NewQRService(b.records, planService, b.slugCache, service.QRServiceConfig{
		BaseURL:         cfg.Server.BaseURL,
		SlugMaxAttempts: cfg.Store.SlugMaxAttempts,
	})
	resolver := service.NewResolver(b.records, b.slugCache, planService)
	eventService := service.NewEventService(b.records, b.events)
	authService := service.NewAuthService(b.users, planService, tokens)

	var gateway service.PaymentGateway
	if cfg.Integrations.Stripe.Configured() {
		gateway = service.NewStripeGateway(cfg.Integrations.Stripe)
	} else {
		logger.Warn("STRIPE_SECRET_KEY is not set; checkout is disabled")
	}
	checkoutService := service.NewCheckoutService(cfg.Integrations.Stripe, cfg.Server.BaseURL, gateway, eventService, planService)
	statusService := service.NewStatusService(cfg, !tokens.Ephemeral(), b.database, b.cache)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		BaseURL:            cfg.Server.BaseURL,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		RequestsPerSecond:  cfg.RateLimit.RequestsPerSecond,
		Burst:              cfg.RateLimit.Burst,
		NFTContractAddress: cfg.Integrations.Web3.NFTContractAddress,
		ChainID:            cfg.Integrations.Web3.ChainID,
	}

	server := api.NewServer(serverConfig, api.Services{
		QR:       qrService,
		Resolver: resolver,
		Events:   eventService,
		Plans:    planService,
		Auth:     authService,
		Checkout: checkoutService,
		Status:   statusService,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"baseUrl": cfg.Server.BaseURL,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// openBackends connects the configured stores. Redis is optional: when it cannot be
// reached the server runs without the slug cache and meters scans in process.
func openBackends(cfg *config.Config, logger *logging.Logger) (*backends, error) {
	b := &backends{}

	var postgres *storage.PostgresDB
	if cfg.Store.UsesPostgres() {
		logger.Info("Connecting to Postgres...")
		db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		postgres = db
		b.database = db
		b.closers = append(b.closers, db.Close)
	}

	if cfg.Store.Backend == config.BackendPostgres {
		b.records = storage.NewQRRepository(postgres)
		b.planStore = storage.NewUserPlanRepository(postgres)
		b.users = storage.NewUserRepository(postgres)
	} else {
		logger.Warn("STORE_BACKEND=memory: records are lost on restart (demo mode)")
		b.records = storage.NewMemoryQRStore()
		b.planStore = storage.NewMemoryUserPlanStore()
		b.users = storage.NewMemoryUserStore()
	}

	switch cfg.Store.EventBackend {
	case config.BackendPostgres:
		b.events = storage.NewEventRepository(postgres)
	case config.BackendClickHouse:
		logger.Info("Connecting to ClickHouse...")
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		b.closers = append(b.closers, func() {
			if err := clickhouse.Close(); err != nil {
				logger.WithError(err).Warn("Error closing ClickHouse connection")
			}
		})
		b.events = storage.NewClickHouseEventRepository(clickhouse)
		if b.database == nil {
			b.database = clickhouse
		}
	default:
		b.events = storage.NewMemoryEventLog()
	}

	b.meter = ratelimit.NewLocalScanMeter()
	if !cfg.Cache.Enabled {
		return b, nil
	}

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable; continuing without slug cache")
		return b, nil
	}
	b.closers = append(b.closers, func() {
		if err := redis.Close(); err != nil {
			logger.WithError(err).Warn("Error closing Redis connection")
		}
	})
	b.cache = redis
	b.slugCache = storage.NewSlugCache(storage.NewCacheService(redis, cfg.Cache.TTL))

	meter, err := ratelimit.NewRedisScanMeter(redis.Client())
	if err != nil {
		logger.WithError(err).Warn("Redis scan meter unavailable; counting scans in process")
		return b, nil
	}
	b.meter = meter
	logger.Info("Redis slug cache and scan meter enabled")

	return b, nil
}
