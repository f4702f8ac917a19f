package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/storage"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"
)

const serviceName = "storefront"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	images, err := storage.NewS3ImageStore(startupCtx, cfg.Storage, storage.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize image storage", zap.Error(err))
	}
	if err := images.EnsureBucket(startupCtx); err != nil {
		logger.Warn("Image bucket check failed", zap.Error(err))
	}
	startupCancel()

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrderEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	runner := service.NewRunner(cfg.Database.Timeout, cfg.Database.MaxRetries)
	identityService := service.NewIdentityService(db, redisClient, runner, cfg.Redis.EventSeenTTL, cfg.Server.AdminEmail)
	catalogService := service.NewCatalogService(db, images, runner)
	cartService := service.NewCartService(db, runner)
	orderService := service.NewOrderService(db, redisClient, eventPublisher, runner, cfg.Redis.IdempotencyTTL)
	reviewService := service.NewReviewService(db, runner)
	accountService := service.NewAccountService(db, runner)
	dashboardService := service.NewDashboardService(db, runner)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	identityConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicIdentityEvents, cfg.Kafka.ConsumerGroup, cfg.Kafka.MaxRedeliveries)
	identityWorker := worker.NewIdentityWorker(identityConsumer, identityService)
	go func() {
		if err := identityWorker.Start(workerCtx); err != nil {
			logger.Error("Identity worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Identity:  identityService,
		Catalog:   catalogService,
		Carts:     cartService,
		Orders:    orderService,
		Reviews:   reviewService,
		Accounts:  accountService,
		Dashboard: dashboardService,
		Readiness: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
		WebhookSecret: cfg.Server.WebhookSecret,
	}, serviceName)
	if cfg.Server.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is not set, identity webhook deliveries will be rejected")
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := identityWorker.Stop(); err != nil {
		logger.Error("Error stopping identity worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
