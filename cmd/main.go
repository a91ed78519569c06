package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wiki-knowledge-platform/internal/ai"
	"wiki-knowledge-platform/internal/config"
	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/internal/queue"
	"wiki-knowledge-platform/internal/store"
	"wiki-knowledge-platform/internal/telemetry"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/middleware"
	"wiki-knowledge-platform/routes"
	"wiki-knowledge-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("wiki-knowledge-platform")
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbedModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Redis unavailable, cache and rate limiting disabled: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Repositories and services.
	wikiRepo := store.NewWikiRepo(db)
	documentRepo := store.NewDocumentRepo(db)
	taskRepo := store.NewTaskRepo(db)
	chunkRepo := store.NewChunkRepo(db)
	fileStore, err := store.NewLocalFileStore(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to init file storage:", err)
	}
	vectorStore := vector.NewMongoStore(db)

	var searchCache services.SearchCache
	if cfg.SearchCacheEnabled && redisClient != nil {
		searchCache = services.NewRedisSearchCache(redisClient, time.Duration(cfg.SearchCacheTTLSeconds)*time.Second)
	}

	orchestrator := services.NewDefaultOrchestrator(
		geminiClient, cfg.QuestionCount, cfg.KeywordTopK, cfg.SubParagraphMaxLen, cfg.AggregationThreshold,
	)
	taskManager := services.NewTaskManager(
		wikiRepo, documentRepo, taskRepo, chunkRepo, vectorStore,
		queue.NewPublisher(asynqClient), fileStore,
		services.ChunkingParams{
			MaxTokensPerChunk: cfg.MaxTokensPerChunk,
			OverlapTokens:     cfg.OverlapTokens,
			TokenizerSpec:     cfg.TokenizerSpec,
		},
	)
	retrievalEngine := services.NewRetrievalEngine(
		wikiRepo, documentRepo, chunkRepo, vectorStore, geminiClient, searchCache,
	)

	// Background sweeper for tasks orphaned by worker crashes.
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := services.NewTaskSweeper(
		taskRepo, wikiRepo, cfg.ProcessingTimeoutMinutes,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
	)
	go sweeper.Start(sweepCtx)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	if redisClient != nil {
		router.Use(middleware.RateLimit(redisClient, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupWikiRoutes(router, wikiRepo)
	routes.SetupDocumentRoutes(router, wikiRepo, documentRepo, fileStore, taskManager)
	routes.SetupSearchRoutes(router, retrievalEngine)
	routes.SetupPreprocessRoutes(router, orchestrator)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
