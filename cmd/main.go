package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mediscan-backend/internal/ai"
	"mediscan-backend/internal/analysis"
	"mediscan-backend/internal/chat"
	"mediscan-backend/internal/chunker"
	"mediscan-backend/internal/config"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/session"
	"mediscan-backend/internal/telemetry"
	"mediscan-backend/internal/vectorindex"
	"mediscan-backend/middleware"
	"mediscan-backend/routes"
	"mediscan-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("mediscan-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	client, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer client.Close()

	// A failed embedder probe disables retrieval for the process
	// lifetime; upload and analysis still work off the full report text.
	var embedder vectorindex.Embedder
	if geminiEmbedder, err := ai.NewGeminiEmbedder(context.Background(), client, cfg.EmbeddingModel); err != nil {
		logger.Warn("Embedding provider unavailable, retrieval disabled", "error", err)
	} else {
		embedder = geminiEmbedder
	}

	store := session.NewStore(cfg)
	scheduler := session.StartJanitor(store, cfg)
	defer scheduler.Stop()

	docService := services.NewDocumentService(
		services.NewPDFExtractor(),
		chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize),
		embedder,
		store,
	)
	analyzer := analysis.NewAnalyzer(client, cfg.AnalysisModel, cfg.AnalysisTopK)
	orchestrator := chat.NewOrchestrator(client, cfg.ChatModel, cfg.ChatTopK)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.MaxMultipartMemory = cfg.MaxFileSize

	routes.SetupDocumentRoutes(router, cfg, store, docService)
	routes.SetupAnalysisRoutes(router, store, docService, analyzer)
	routes.SetupChatRoutes(router, store, docService, orchestrator)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
