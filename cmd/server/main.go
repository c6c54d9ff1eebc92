package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	financeapp "github.com/tourdesk/backoffice/internal/application/finance"
	"github.com/tourdesk/backoffice/internal/infrastructure/cache"
	"github.com/tourdesk/backoffice/internal/infrastructure/config"
	"github.com/tourdesk/backoffice/internal/infrastructure/event"
	"github.com/tourdesk/backoffice/internal/infrastructure/logger"
	"github.com/tourdesk/backoffice/internal/infrastructure/persistence"
	"github.com/tourdesk/backoffice/internal/infrastructure/telemetry"
	"github.com/tourdesk/backoffice/internal/interfaces/http/handler"
	"github.com/tourdesk/backoffice/internal/interfaces/http/middleware"
	"github.com/tourdesk/backoffice/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry: traces and metrics, then the optional OTLP log bridge
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down log export", zap.Error(err))
		}
	}()
	log = logProvider.Bridge(log, cfg.Telemetry.ServiceName, zapcore.InfoLevel)

	log.Info("Starting tour back office",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		LogFullSQL: cfg.App.Env == "development",
	}, log); err != nil {
		log.Warn("Failed to enable database tracing", zap.Error(err))
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	tourRepo := persistence.NewGormTourRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	receiptRepo := persistence.NewGormReceiptRepository(db.DB)
	requestRepo := persistence.NewGormPaymentRequestRepository(db.DB)
	disbursementRepo := persistence.NewGormDisbursementOrderRepository(db.DB)

	// Entity locks serialize recalculations per order, tour and disbursement
	locker, closeLocker := cache.NewEntityLocker(ctx, cfg.Redis, cfg.Settlement.LockTTL, log)
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewSettlementMetrics(provider.Meter("settlement"))
	if err != nil {
		log.Fatal("Failed to create settlement metrics", zap.Error(err))
	}

	eventBus := event.NewInMemoryEventBus(log)

	// Application services
	reconciler := financeapp.NewReceiptReconciler(orderRepo, receiptRepo, locker, metrics, log)
	ledger := financeapp.NewPaymentRequestLedger(requestRepo, disbursementRepo, log,
		financeapp.WithLedgerLocker(locker),
	)
	batcher := financeapp.NewDisbursementBatcher(disbursementRepo, requestRepo, log,
		financeapp.WithSchedule(cfg.Settlement.Location(), cfg.Settlement.CutoffHour),
		financeapp.WithBatcherLocker(locker),
		financeapp.WithBatcherPublisher(eventBus),
		financeapp.WithBatcherMetrics(metrics),
	)
	workflow := financeapp.NewConfirmationWorkflow(disbursementRepo, requestRepo, log,
		financeapp.WithWorkflowLocker(locker),
		financeapp.WithWorkflowPublisher(eventBus),
		financeapp.WithWorkflowMetrics(metrics),
	)
	receiptService := financeapp.NewReceiptService(receiptRepo, orderRepo, reconciler, eventBus, log)
	aggregator := financeapp.NewTourAggregator(tourRepo, orderRepo, receiptRepo, requestRepo, reconciler, log,
		financeapp.WithAggregatorLocker(locker),
		financeapp.WithAggregatorMetrics(metrics),
	)

	// Confirmed disbursements (and optionally receipts) refresh tour totals
	refresher := financeapp.NewTourFinancialsRefresher(aggregator, orderRepo, requestRepo,
		cfg.Settlement.RefreshTourOnReceipt, log)
	eventBus.Subscribe(refresher)
	log.Info("Event handlers registered", zap.Strings("tour_refresh_events", refresher.EventTypes()))

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: recover first, then correlate, trace, measure, and guard
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanAnnotator())
	engine.Use(middleware.HTTPMetrics(provider.Meter("http.server")))
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	handler.NewSystemHandler(cfg.App.Name, version, sqlDB).RegisterRoutes(engine)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	financeRoutes := handler.FinanceRoutes(handler.FinanceHandlers{
		PaymentRequests: handler.NewPaymentRequestHandler(ledger),
		Disbursements:   handler.NewDisbursementHandler(batcher, workflow),
		Receipts:        handler.NewReceiptHandler(receiptService, reconciler),
		Tours:           handler.NewTourHandler(aggregator),
	})
	r.Register(financeRoutes)
	r.Setup()
	log.Info("Routes registered", zap.Int("finance_routes", len(financeRoutes.Routes())))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
