package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"health-records-platform/internal/ai"
	"health-records-platform/internal/config"
	"health-records-platform/internal/database"
	"health-records-platform/internal/logger"
	"health-records-platform/internal/rag"
	"health-records-platform/internal/telemetry"
	"health-records-platform/middleware"
	"health-records-platform/models"
	"health-records-platform/routes"
	"health-records-platform/services"

	"github.com/gin-gonic/gin"
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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	var metrics *telemetry.Metrics
	if cfg.TelemetryEnabled {
		shutdownTracer, err := telemetry.InitTracer("health-records-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
		metrics, err = telemetry.InitMetrics()
		if err != nil {
			logger.Warn("metrics disabled", "error", err)
		}
	}

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

	indexStorage := database.NewMongoIndexStorage(db)
	consentSource := database.NewMongoConsentSource(db)
	historyStorage := database.NewMongoHistoryStorage(db)
	reportStore := database.NewMongoReportStore(db)

	indexStore := rag.NewIndexStore(indexStorage, cfg.IndexCacheSize)
	gate := rag.NewConsentGate(consentSource)
	composer := rag.NewAnswerComposer(geminiClient)
	history := rag.NewHistoryLog(historyStorage)
	engine := rag.NewRetrievalEngine(gate, indexStore, embedder, composer, history, logger.Logger)
	engine.TopK = cfg.RetrievalTopK
	engine.MinQuestionLen = cfg.MinQuestionLen

	exporter := services.NewExportService(historyStorage)
	auditor := models.NewAuditLogger(db)

	queueClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer queueClient.Close()

	sweep := services.NewReindexSweep(reportStore, queueClient, cfg.ReindexSweepCron)
	if err := sweep.Start(); err != nil {
		logger.Warn("reindex sweep not started", "error", err)
	}
	defer sweep.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.TelemetryEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
		if metrics != nil {
			router.Use(middleware.MetricsMiddleware(metrics))
		}
	}
	router.Use(middleware.AuditMiddleware(auditor))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	auth := middleware.NewAuthMiddleware(cfg)
	roles := middleware.NewRoleMiddleware()

	api := router.Group("/api")
	api.Use(auth.RequireAuth())
	// rate limiting keys on the actor id, so it runs after authentication
	api.Use(middleware.RateLimitMiddleware(rdb, cfg))

	chat := api.Group("/chat")
	chat.Use(roles.CareGuard())
	{
		chat.POST("/ask", routes.AskQuestion(engine, reportStore, db))
		chat.GET("/history/:report_id", routes.GetQueryHistory(gate, history))
		chat.GET("/history/:report_id/export", routes.ExportQueryHistory(gate, exporter))
	}

	reports := api.Group("/reports")
	{
		reports.POST("", roles.PatientGuard(), routes.UploadReport(cfg, reportStore, queueClient))
		reports.GET("", roles.PatientGuard(), routes.ListMyReports(reportStore))
		reports.GET("/:report_id", roles.CareGuard(), routes.GetReport(reportStore, gate))
		reports.DELETE("/:report_id", roles.PatientGuard(), routes.DeleteReport(reportStore, indexStore))
		reports.POST("/:report_id/reprocess", roles.CareGuard(), routes.ReprocessReport(reportStore, queueClient))
		reports.POST("/:report_id/flag-reindex", roles.AdminGuard(), routes.FlagReindex(reportStore))
	}

	quota := api.Group("/quota")
	{
		quota.GET("", routes.GetMyQuota(db))
		quota.PUT("/:actor_id", roles.AdminGuard(), routes.SetActorQuota(db))
	}

	consents := api.Group("/consents")
	consents.Use(roles.PatientGuard())
	{
		consents.POST("", routes.CreateConsent(db))
		consents.GET("", routes.ListMyConsents(db))
		consents.POST("/:consent_id/revoke", routes.RevokeConsent(db))
	}

	assignments := api.Group("/assignments")
	{
		assignments.POST("", roles.AdminGuard(), routes.CreateAssignment(db))
		assignments.GET("", roles.RequireRole("doctor", "admin"), routes.ListAssignments(db))
	}

	audit := api.Group("/audit")
	audit.Use(roles.AdminGuard())
	{
		audit.GET("", routes.QueryAuditLogs(auditor))
		audit.GET("/verify/:actor_id", routes.VerifyAuditChain(auditor))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
