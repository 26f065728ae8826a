// Worker entry point: consumes extraction jobs from the Redis queue, runs
// the PDF extraction pipeline and persists run records.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docstream/pdfextract-worker/internal/config"
	"github.com/docstream/pdfextract-worker/internal/processor"
	"github.com/docstream/pdfextract-worker/internal/queue"
	"github.com/docstream/pdfextract-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("pdfextract worker starting...")
	log.Printf("Configuration loaded: Redis=%s, OutputDir=%s, Workers=%d",
		cfg.RedisURL, cfg.OutputBaseDir, cfg.WorkerConcurrency)

	proc := processor.NewProcessor()
	proc.AddRecorder(storage.NewJSONLStore(cfg.OutputBaseDir))

	// PostgreSQL is optional; without it runs are only recorded in runs.jsonl.
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pgStore.Close()
		proc.AddRecorder(pgStore)
		log.Printf("PostgreSQL run recording enabled")
	}

	events, err := queue.NewPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis for events: %v", err)
	}
	defer events.Close()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		QueueName: "pdfextract",
		Config:    cfg,
		Runner:    proc,
		Events:    events,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}
	log.Printf("Queue consumer started with concurrency=%d", cfg.WorkerConcurrency)
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	log.Printf("Shutdown complete")
}
