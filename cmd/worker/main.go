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
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/jobs"
	"github.com/theaipetcompany/memory-management-sub000/internal/models"
	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
	"github.com/theaipetcompany/memory-management-sub000/internal/queue"
	"github.com/theaipetcompany/memory-management-sub000/internal/storage"
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

	slog.Info("starting fine-tune worker",
		"concurrency", cfg.Worker.Concurrency,
		"poll_interval", cfg.Worker.PollInterval,
	)

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
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	providerClient := provider.NewClient(cfg.Provider)
	runner := jobs.NewRunner(db, minioStore, producer, providerClient, cfg.Dataset.SystemPrompt)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming fine-tune tasks
	err = consumer.ConsumeTasks(ctx, "finetune-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.FineTuneTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal fine-tune task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := runner.ProcessTask(ctx, task); err != nil {
			if meta, merr := msg.Metadata(); merr == nil && meta.NumDelivered >= queue.TaskMaxDeliver {
				// Last delivery; park the job instead of losing the error.
				runner.FailJob(ctx, task.JobID, err)
				return nil
			}
			return fmt.Errorf("process task %s: %w", task.JobID, err)
		}

		return nil
	}, cfg.Worker.Concurrency)
	if err != nil {
		slog.Error("start task consumer", "error", err)
		os.Exit(1)
	}

	// Poll the provider for jobs in flight
	go runner.PollLoop(ctx, cfg.Worker.PollInterval)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.TaskQueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
