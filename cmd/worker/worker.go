package main

import (
	"context"
	"log"
	"time"

	"health-records-platform/internal/ai"
	"health-records-platform/internal/config"
	"health-records-platform/internal/database"
	"health-records-platform/internal/logger"
	"health-records-platform/internal/queue"
	"health-records-platform/internal/rag"
	"health-records-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	reportStore := database.NewMongoReportStore(db)
	indexStore := rag.NewIndexStore(database.NewMongoIndexStorage(db), cfg.IndexCacheSize)

	chunker := &rag.Chunker{
		Size:     cfg.MaxChunkSize,
		Overlap:  cfg.ChunkOverlap,
		Lookback: cfg.ChunkLookback,
	}

	processor := services.NewReportProcessor(
		reportStore,
		services.NewPDFExtractor(),
		chunker,
		embedder,
		indexStore,
		services.NewMedicalExtractor(geminiClient),
	)

	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	handler := queue.NewTaskHandler(processor)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessReport, handler.HandleReportProcess)

	logger.Info("worker starting",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6) default(3) low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
