package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/theaipetcompany/memory-management-sub000/internal/api"
	"github.com/theaipetcompany/memory-management-sub000/internal/api/ws"
	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/embedding"
	"github.com/theaipetcompany/memory-management-sub000/internal/memory"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
	"github.com/theaipetcompany/memory-management-sub000/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting face memory API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background(), cfg.Embedding.Dim); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Provider client (embeddings for the openai backend, job cancel)
	providerClient := provider.NewClient(cfg.Provider)

	// Embedding backend
	if cfg.Embedding.Provider == "local" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Error("init onnx runtime", "error", err)
			os.Exit(1)
		}
		defer ort.DestroyEnvironment()
	}
	embedder, err := embedding.New(cfg.Embedding, providerClient)
	if err != nil {
		slog.Error("init embedder", "error", err)
		os.Exit(1)
	}

	engine := memory.NewEngine(db)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume memory events and fan them out over WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.MemoryEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:       string(event.Type),
			EntryID:    event.EntryID,
			EntryName:  event.EntryName,
			Similarity: event.Similarity,
			JobID:      event.JobID,
			JobStatus:  string(event.JobStatus),
			OccurredAt: event.OccurredAt.Format(time.RFC3339),
		})

		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Server.APIKey,
		DB:            db,
		MinIO:         minioStore,
		Producer:      producer,
		Hub:           hub,
		Engine:        engine,
		Embedder:      embedder,
		Provider:      providerClient,
		Recognition:   cfg.Recognition,
		EmbeddingDim:  cfg.Embedding.Dim,
		FineTuneModel: cfg.Provider.FineTuneModel,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
