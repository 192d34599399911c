package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/handlers"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (cache invalidation will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repositories
	jobsRepo := repository.NewImportJobsRepository(db)
	catalogRepo := repository.NewCatalogRepository(db, redisClient, logger)

	// Initialize object store only if a bucket is configured
	imageFetchTimeout := time.Duration(cfg.ImageFetchTimeoutSeconds) * time.Second
	var objectStore storage.ObjectStoreInterface
	if cfg.S3Bucket != "" {
		storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Store, err := storage.NewS3ObjectStore(storeCtx, cfg.S3Bucket, cfg.S3Region, imageFetchTimeout, logger)
		storeCancel()
		if err != nil {
			log.Printf("WARNING: Failed to initialize object store: %v (continuing without image re-hosting)", err)
		} else {
			objectStore = s3Store
			log.Println("✓ Object store initialized")
		}
	} else {
		log.Println("S3_BUCKET not set, images keep their source URLs and backups are skipped")
	}

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Initialize pipeline services
	parser := services.NewWorkbookParser()
	validator := services.NewRowValidator(catalogRepo, logger)
	assetImporter := services.NewAssetImporter(objectStore, imageFetchTimeout, logger)
	committer := services.NewRowCommitter(catalogRepo, logger)

	var publisher services.ImportEventPublisher
	if eventsPublisher != nil {
		publisher = eventsPublisher
	}
	orchestrator := services.NewImportOrchestrator(
		parser, validator, assetImporter, committer,
		jobsRepo, catalogRepo, publisher, logger,
	)

	// Initialize handlers
	importHandler := handlers.NewImportHandler(
		jobsRepo, orchestrator,
		services.NewTemplateBuilder(), services.NewErrorReporter(),
		objectStore,
		cfg.MaxUploadSizeMB, cfg.DefaultPageSize, cfg.MaxPageSize,
		logger,
	)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.DevelopmentAuthMiddleware())
	api.Use(middleware.TenantMiddleware())

	catalog := api.Group("/catalog")
	{
		catalog.POST("/import", importHandler.ImportCatalog)
		catalog.GET("/import/template", importHandler.GetImportTemplate)
		catalog.GET("/import/jobs", importHandler.ListJobs)
		catalog.GET("/import/jobs/:id", importHandler.GetJob)
		catalog.GET("/import/jobs/:id/errors/report", importHandler.DownloadErrorReport)
		catalog.DELETE("/import/jobs/:id", importHandler.DeleteJob)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog import service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down catalog-import-service...")
	log.Println("Catalog import service stopped")
}
