package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-svc/badge"
	"marketplace-svc/cache"
	"marketplace-svc/checkout"
	"marketplace-svc/config"
	"marketplace-svc/confirmation"
	"marketplace-svc/database"
	"marketplace-svc/grpcserver"
	"marketplace-svc/handlers"
	"marketplace-svc/kafka"
	"marketplace-svc/ledger"
	"marketplace-svc/memstore"
	"marketplace-svc/middleware"
	"marketplace-svc/notification"
	"marketplace-svc/orders"
	"marketplace-svc/premium"
	"marketplace-svc/reconcile"
	"marketplace-svc/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// store is everything the services need from persistence. Both the postgres
// repository and the in-memory store satisfy it.
type store interface {
	checkout.CartStore
	checkout.Catalog
	checkout.OwnershipValidator
	checkout.OrderStore
	ledger.PaymentStore
	ledger.OrderMirror
	confirmation.SubscriptionStore
	confirmation.ProfileStore
	badge.CertificationStore
	badge.CategoryStore
	badge.SubscriptionStore
	orders.Store
	reconcile.OrderScanner
}

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("marketplace-service", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	var st store
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		st = memstore.New()
	} else {
		db, err := database.InitDB(cfg.DB, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		if err := database.RunMigrations(db, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		st = repository.New(db)
	}

	// Redis backs the product cache and checkout idempotency keys. Without it
	// the service reads the store directly and ignores Idempotency-Key.
	var catalog checkout.Catalog = st
	var idempotency handlers.IdempotencyStore
	rdb, err := cache.InitRedis(cfg.Redis.Addr(), cfg.Redis.Password, logger)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		defer rdb.Close()
		catalog = cache.NewCatalogCache(st, rdb, cfg.ProductCacheTTL, logger)
		idempotency = cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
	}

	var notifier notification.Notifier = notification.Nop{}
	producer, err := kafka.InitProducer(cfg.Kafka.Broker, logger)
	if err != nil {
		logger.Warn("Kafka producer unavailable, events will not be published", zap.Error(err))
	} else {
		defer producer.Close()
		notifier = notification.NewKafkaNotifier(producer, cfg.Kafka.EventsTopic, logger)
	}

	payments := ledger.New(st, st, cfg.PaymentProvider, logger)
	badges := badge.NewRule(st, st, st, badge.Policy{PremiumGrantsBadge: cfg.PremiumGrantsBadge})

	checkoutSvc := checkout.NewService(checkout.Deps{
		Carts:    st,
		Catalog:  catalog,
		Owners:   st,
		Orders:   st,
		Payments: payments,
		Notifier: notifier,
	}, cfg.DefaultCurrency, logger)
	confirmSvc := confirmation.NewService(payments, st, st, badges, notifier, cfg.PremiumTerm, logger)
	orderSvc := orders.NewService(st, notifier, logger)
	premiumSvc := premium.NewService(st, payments, cfg.PremiumPrice, cfg.DefaultCurrency, logger)
	reconciler := reconcile.New(st, payments, cfg.ReconcileInterval, cfg.PendingPaymentTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Kafka consumer in background
	consumer, err := kafka.InitConsumer(cfg.Kafka.Broker, logger)
	if err != nil {
		logger.Warn("Kafka consumer unavailable, confirmations arrive by webhook only", zap.Error(err))
	} else {
		defer consumer.Close()
		confirmations := kafka.NewConfirmationConsumer(confirmSvc, logger)
		go func() {
			if err := confirmations.Start(ctx, consumer, cfg.Kafka.ConfirmationsTopic); err != nil {
				logger.Error("Kafka consumer error", zap.Error(err))
			}
		}()
	}

	go reconciler.Run(ctx)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("marketplace-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/metrics", middleware.PrometheusHandler())
	handlers.RegisterRoutes(router, handlers.Handlers{
		Checkout: handlers.NewCheckoutHandler(checkoutSvc, idempotency, logger),
		Orders:   handlers.NewOrderHandler(orderSvc, logger),
		Payments: handlers.NewPaymentHandler(confirmSvc, payments, premiumSvc, logger),
	}, []byte(cfg.JWTSecret))

	restSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Marketplace Service REST API started", zap.String("addr", cfg.HTTPAddr))

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcSrv := grpcserver.New(logger)
	go func() {
		if err := grpcSrv.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	}

	grpcSrv.Stop()

	logger.Info("Servers exited")
}
