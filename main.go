package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kinder-payment-svc/admin"
	"kinder-payment-svc/analytics"
	"kinder-payment-svc/cache"
	"kinder-payment-svc/config"
	"kinder-payment-svc/database"
	"kinder-payment-svc/gateway"
	"kinder-payment-svc/handlers"
	"kinder-payment-svc/kafka"
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/notification"
	"kinder-payment-svc/store"
	"kinder-payment-svc/usecase"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize data store
	var dataStore store.Store
	switch cfg.StoreDriver {
	case "memory":
		dataStore = store.NewMemoryStore()
		logger.Warn("Using in-memory store, data is lost on restart")
	default:
		db, err := database.InitDB(cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		dataStore = store.NewPostgresStore(db)
	}

	// Initialize OpenTelemetry
	if cfg.TracingEnabled {
		shutdown, err := middleware.InitTracing(cfg.ServiceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer shutdown()
	}

	// Initialize Kafka producer
	var events kafka.EventPublisher = kafka.NopPublisher{}
	if cfg.EventsEnabled {
		producer, err := kafka.InitProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		events = publisher
	}

	// Initialize analytics cache
	var dashboardCache analytics.DashboardCache
	if cfg.CacheEnabled {
		rdb, err := cache.InitRedis(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, analytics will not be cached", zap.Error(err))
		} else {
			defer rdb.Close()
			dashboardCache = cache.NewAnalyticsCache(rdb, cfg.CacheTTL)
		}
	}

	notifier := notification.NewDispatcher(dataStore, dataStore, logger)
	gw := gateway.New(cfg.Gateway, gateway.Deps{
		Store:     dataStore,
		Directory: dataStore,
		Notifier:  notifier,
		Events:    events,
		Logger:    logger,
	})
	payments := usecase.NewPayments(gw, dataStore, events, logger)
	engine := analytics.NewEngine(dataStore, analytics.NewRandomJitter(uint64(time.Now().UnixNano())), logger)
	dashboards := analytics.NewDashboards(engine, dashboardCache, logger)
	adminService := admin.NewService(dataStore, payments, notifier, dashboards, cfg.BulkConcurrency, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Kafka consumer in background
	if cfg.EventsEnabled {
		consumer := kafka.NewConsumer(cfg.Kafka, logger)
		defer consumer.Close()
		go consumer.Start(ctx, dashboards.HandlePaymentEvent)
	}

	go runRefresher(ctx, cfg.RefreshInterval, adminService, dashboards, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	handlers.RegisterRoutes(router, []byte(cfg.JWTSecret),
		handlers.NewPaymentHandler(payments, gw, dataStore, logger),
		handlers.NewNotificationHandler(notifier, logger),
		handlers.NewAdminHandler(adminService, logger),
	)

	// Start REST server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Payment Service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// runRefresher marks overdue payments and rewarms the dashboard on every tick
// until ctx is done.
func runRefresher(ctx context.Context, interval time.Duration, adminService *admin.Service, dashboards *analytics.Dashboards, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := adminService.SweepOverdue(ctx, now); err != nil {
				logger.Warn("Overdue sweep failed", zap.Error(err))
			}
			dashboards.Refresh(ctx)
		}
	}
}
