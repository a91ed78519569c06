package main

import (
	"context"
	"log"

	"wiki-knowledge-platform/internal/ai"
	"wiki-knowledge-platform/internal/config"
	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/internal/queue"
	"wiki-knowledge-platform/internal/store"
	"wiki-knowledge-platform/internal/telemetry"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("wiki-knowledge-worker")
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.DBName)

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbedModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	wikiRepo := store.NewWikiRepo(db)
	documentRepo := store.NewDocumentRepo(db)
	taskRepo := store.NewTaskRepo(db)
	chunkRepo := store.NewChunkRepo(db)
	vectorStore := vector.NewMongoStore(db)

	orchestrator := services.NewDefaultOrchestrator(
		geminiClient, cfg.QuestionCount, cfg.KeywordTopK, cfg.SubParagraphMaxLen, cfg.AggregationThreshold,
	)
	processor := queue.NewEmbedProcessor(
		wikiRepo, documentRepo, taskRepo, chunkRepo, vectorStore, geminiClient, orchestrator,
	)

	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskEmbedProcess, processor.ProcessEmbedTask)

	log.Printf("Starting worker: concurrency=%d redis=%s", cfg.WorkerConcurrency, cfg.RedisURL)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
