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

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/assets"
	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type eventPublisher interface {
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")

	// prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	tp, err := util.InitTracer("shop-service", cfg.Observ.JaegerEndpoint)
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

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Schema applied")
	}

	assetStore, staticOpts, err := newAssetStore(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize asset store", zap.Error(err))
	}

	var (
		priceCache  service.PriceCache
		redisClient *redisclient.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PriceTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		priceCache = redisClient
		logger.Info("Redis connected")
	}

	var publisher eventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized")
	}

	pagination := service.Pagination{
		DefaultLimit: cfg.Business.DefaultPageSize,
		MaxLimit:     cfg.Business.MaxPageSize,
	}
	productService := service.NewProductService(db, assetStore, publisher, pagination)
	orderService := service.NewOrderService(
		db,
		service.NewCatalogPriceResolver(db, priceCache),
		publisher,
		service.OrderServiceConfig{
			StrictTransitions: cfg.Business.StrictStatusTransitions,
			Pagination:        pagination,
		},
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var catalogWorker *worker.CatalogWorker
	if cfg.Kafka.Enabled && redisClient != nil {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		catalogWorker = worker.NewCatalogWorker(consumer, redisClient)
		go func() {
			if err := catalogWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Catalog worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Business.ReconcileInterval > 0 {
		reconcileWorker := worker.NewReconcileWorker(productService, cfg.Business.ReconcileInterval)
		go func() {
			_ = reconcileWorker.Start(workerCtx)
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(productService, orderService, db, staticOpts)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
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
	if catalogWorker != nil {
		_ = catalogWorker.Stop()
	}

	logger.Info("Server exited")
}

// newAssetStore builds the configured image backend. Local storage is also
// served over HTTP under the static prefix.
func newAssetStore(cfg config.StorageConfig) (assets.Store, api.Options, error) {
	switch cfg.Backend {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, api.Options{}, fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
		s, err := assets.NewS3Store(assets.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			PublicURL: cfg.S3PublicURL,
			Endpoint:  cfg.S3Endpoint,
			MaxBytes:  cfg.MaxUploadBytes,
		})
		if err != nil {
			return nil, api.Options{}, err
		}
		return s, api.Options{}, nil
	case "local", "":
		s, err := assets.NewLocalStore(cfg.UploadDir, cfg.StaticURLPrefix, cfg.MaxUploadBytes)
		if err != nil {
			return nil, api.Options{}, err
		}
		return s, api.Options{StaticPrefix: cfg.StaticURLPrefix, StaticDir: s.Root()}, nil
	default:
		return nil, api.Options{}, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
