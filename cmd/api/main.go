package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/delivery"
	"storefront/internal/handler"
	"storefront/internal/model"
	"storefront/internal/notification"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool and schema
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := repository.NewOutboxRepository(pool, logger)
	roleRepo := repository.NewRoleRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, catalogue reads go straight to the database")
		} else {
			defer client.Close()
			productRepo = repository.NewCachedProductRepository(productRepo, cache.NewRedisCache(client, config.ServiceName), cfg.Redis.TTL, logger)
		}
	}

	for _, userID := range cfg.Auth.AdminUserIDs {
		if err := roleRepo.Grant(ctx, userID, model.RoleAdmin); err != nil {
			return fmt.Errorf("failed to grant admin role to %s: %w", userID, err)
		}
	}

	// Initialize coupon store and synchronise definitions
	couponStore := coupon.NewStore(pool, logger)
	if _, err := coupon.Sync(ctx, newCouponLoader(ctx, cfg, logger), cfg.Coupons.Files, couponStore, logger); err != nil {
		return fmt.Errorf("failed to synchronise coupons: %w", err)
	}

	// Initialize delivery estimator
	estimator, err := delivery.Load(cfg.Delivery.ZonesFile)
	if err != nil {
		return fmt.Errorf("failed to load delivery zones: %w", err)
	}

	// Initialize payment provider
	verifier, err := payment.NewSignatureVerifier(cfg.Payment.KeySecret)
	if err != nil {
		return fmt.Errorf("failed to initialize signature verifier: %w", err)
	}
	provider, err := payment.NewRazorpayProvider(payment.RazorpayConfig{
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	// Initialize notifications
	var dispatcher notification.Dispatcher = notification.NewLogDispatcher(logger)
	if cfg.AMQP.Enabled {
		publisher, err := notification.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize notification publisher: %w", err)
		}
		defer publisher.Close()
		dispatcher = publisher
	}

	// Initialize side-effect relay
	relay := service.NewSideEffectRelay(service.RelayDeps{
		Orders:     orderRepo,
		Outbox:     outboxRepo,
		Coupons:    couponStore,
		Dispatcher: dispatcher,
		Builder:    notification.NewBuilder(cfg.Notification.Locale),
	}, service.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		Lease:        cfg.Outbox.Lease,
	}, logger)

	// Initialize services
	orderService := service.NewOrderService(service.OrderServiceDeps{
		Orders:            orderRepo,
		Outbox:            outboxRepo,
		Verifier:          verifier,
		Provider:          provider,
		Coupons:           couponStore,
		Delivery:          estimator,
		Relay:             relay,
		Currency:          cfg.Payment.Currency,
		KeyID:             cfg.Payment.KeyID,
		EnrichmentTimeout: cfg.Payment.EnrichmentTimeout,
	}, logger)
	lifecycleService := service.NewLifecycleService(service.LifecycleServiceDeps{
		Orders:   orderRepo,
		Outbox:   outboxRepo,
		Delivery: estimator,
		Relay:    relay,
	}, logger)
	reorderService := service.NewReorderService(orderRepo, productRepo, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Payment: handler.NewPaymentHandler(orderService, logger),
		Order:   handler.NewOrderHandler(lifecycleService, reorderService, logger),
		Admin:   handler.NewAdminHandler(orderService, lifecycleService, relay, logger),
	}, router.Auth{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		Roles:  roleRepo,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the relay; pending tasks from a previous run are picked up on the first tick
	relayCtx, stopRelay := context.WithCancel(ctx)
	var relayDone sync.WaitGroup
	relayDone.Add(1)
	go func() {
		defer relayDone.Done()
		relay.Run(relayCtx)
	}()
	relay.Kick()

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		stopRelay()
		relayDone.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Attempt graceful shutdown, then stop the relay once in-flight requests are done
		err := server.Shutdown(shutdownCtx)
		stopRelay()
		relayDone.Wait()

		if err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newCouponLoader prefers S3 when enabled and falls back to the local file system.
func newCouponLoader(ctx context.Context, cfg *config.Config, logger zerolog.Logger) coupon.Loader {
	fileLoader := coupon.NewFileLoader(logger)

	if !cfg.S3.Enabled {
		logger.Info().Msg("using local file system for coupon files (S3 disabled)")
		return fileLoader
	}

	s3Loader, err := coupon.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader
	}

	return coupon.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, true, logger)
}
