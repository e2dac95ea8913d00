package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reviewloop/reviewloop/internal/ai"
	"github.com/reviewloop/reviewloop/internal/archive"
	"github.com/reviewloop/reviewloop/internal/config"
	"github.com/reviewloop/reviewloop/internal/notifications"
	"github.com/reviewloop/reviewloop/internal/platforms"
	"github.com/reviewloop/reviewloop/internal/reconciler"
	"github.com/reviewloop/reviewloop/internal/responder"
	"github.com/reviewloop/reviewloop/internal/scheduler"
	"github.com/reviewloop/reviewloop/internal/store"
	"github.com/reviewloop/reviewloop/internal/syncer"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting review pipeline")

	// Initialize the review store
	reviewStore, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}
	defer reviewStore.Close()

	// Raw payload archival is optional
	var archiver archive.Archiver
	if cfg.StorageAccount != "" {
		archiver, err = archive.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive: %v", err)
		}
	}

	// AI gateway: Gemini is the cheaper primary, OpenAI the fallback. Keys
	// are read per call so rotation needs no restart.
	gateway := ai.NewGateway(
		ai.NewGeminiBackend(func() string { return os.Getenv("GEMINI_API_KEY") }, cfg.GeminiModel),
		ai.NewOpenAIBackend(func() string { return os.Getenv("OPENAI_API_KEY") }, cfg.OpenAIModel),
	)
	classifier := ai.NewClassifier(gateway)

	clients := platforms.NewRegistry(
		platforms.NewGoogleClient(),
		platforms.NewZaloClient(),
		platforms.NewDirectClient(),
	)

	notifier := notifications.NewService(cfg)
	replyService := responder.NewService(reviewStore, gateway)
	syncService := syncer.NewService(reviewStore, classifier, replyService, clients, archiver)
	reconcileService := reconciler.NewService(reviewStore, replyService, clients, notifier)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, syncService, reconcileService, reviewStore)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/reconcile", reconcileHandler(reconcileService)).Methods("POST")
	router.HandleFunc("/sync/{connectionID}", syncHandler(syncService, reviewStore)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

// reconcileHandler runs one reconciliation and returns its summary. The
// operation is idempotent, so overlapping triggers are safe.
func reconcileHandler(service *reconciler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := service.Run(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// syncHandler runs one sync for the connection in the path and returns the
// {synced,new,updated} counts.
func syncHandler(service *syncer.Service, reviewStore *store.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connectionID := mux.Vars(r)["connectionID"]

		conn, err := reviewStore.GetConnection(r.Context(), connectionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		if conn == nil {
			writeJSONError(w, http.StatusNotFound, fmt.Errorf("connection %s not found", connectionID))
			return
		}

		result, err := service.SyncConnection(r.Context(), conn)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
