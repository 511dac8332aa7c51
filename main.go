package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedbackd/internal/blob"
	"feedbackd/internal/config"
	"feedbackd/internal/feedback"
	"feedbackd/internal/handlers"
	"feedbackd/internal/inference"
	slackintake "feedbackd/internal/integrations/slack"
	"feedbackd/internal/jobs"
	"feedbackd/internal/logging"
	"feedbackd/internal/middleware"
	"feedbackd/internal/pipeline"
	"feedbackd/internal/search"
	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
	"feedbackd/internal/workflow"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logging.SetupLogger()

	slog.Info("Starting feedbackd", slog.String("version", "1.0.0"))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open database connection", "error", err)
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		slog.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		slog.Error("Failed to create vector extension", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStoreWithDB(db)
	if err != nil {
		slog.Error("Failed to initialize feedback store", "error", err)
		os.Exit(1)
	}

	index, err := vector.NewPgvectorIndex(db, cfg.EmbeddingDimensions)
	if err != nil {
		slog.Error("Failed to initialize vector index", "error", err)
		os.Exit(1)
	}

	checkpoints, err := workflow.NewPostgresCheckpointStore(db)
	if err != nil {
		slog.Error("Failed to initialize checkpoint store", "error", err)
		os.Exit(1)
	}

	blobs, err := blob.OpenBadgerStore(cfg.BlobPath, false)
	if err != nil {
		slog.Error("Failed to open blob store", "error", err, "path", cfg.BlobPath)
		os.Exit(1)
	}

	provider := inference.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)

	engine := workflow.NewEngine(checkpoints)
	pipe := pipeline.New(engine, store, blobs, index, provider)
	service := feedback.NewService(store, blobs, pipe)
	searchEngine := search.NewEngine(provider, index, store)

	backfill := jobs.NewVectorBackfillProcessor(store, index, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go backfill.Start(ctx)

	feedbackHandler := handlers.NewFeedbackHandler(service)
	searchHandler := handlers.NewSearchHandler(searchEngine)
	webhookHandler := handlers.NewWebhookHandler(cfg.WebhookSecret, service)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.MetricsMiddleware)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/feedback", feedbackHandler.HandleSubmit).Methods("POST")
	apiRouter.HandleFunc("/feedback", feedbackHandler.HandleList).Methods("GET")
	apiRouter.HandleFunc("/feedback/{id}", feedbackHandler.HandleGet).Methods("GET")
	apiRouter.HandleFunc("/search", searchHandler.HandleSearch).Methods("GET")
	apiRouter.HandleFunc("/health", feedbackHandler.HandleHealth).Methods("GET")

	if cfg.WebhookSecret != "" {
		webhookRouter := router.PathPrefix("/webhook").Subrouter()
		webhookRouter.HandleFunc("/feedback", webhookHandler.HandleWebhook).Methods("POST")
	}

	if cfg.SlackEnabled() {
		slackHandler := slackintake.NewHandler(cfg.SlackBotToken, service)
		router.HandleFunc("/slack/actions", slackHandler.HandleMessageAction).Methods("POST")
	}

	router.HandleFunc("/health", feedbackHandler.HandleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Server starting", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	cancel()
	backfill.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := blobs.Close(); err != nil {
		slog.Error("Failed to close blob store", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("Failed to close feedback store", "error", err)
	}

	slog.Info("Server exited gracefully")
}
