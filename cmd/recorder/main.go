package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/queue"
	"github.com/bkaraca/airalert/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Recorder Service...")
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Kafka consumer
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "recorder-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer created (registering with broker...)")

	// Create history writer (batch size: 100, flush interval: 5 seconds)
	historyWriter := queue.NewHistoryWriter(consumer, db, 100, 5*time.Second)
	ctx := context.Background()
	if err := historyWriter.Start(ctx); err != nil {
		log.Fatalf("Failed to start history writer: %v", err)
	}
	fmt.Println("History writer started")

	fmt.Println("\n✓ Recorder Service is running")
	fmt.Println("✓ Consuming reading updates and writing history to PostgreSQL")
	fmt.Println("✓ Batch size: 100 messages | Flush interval: 5 seconds")
	fmt.Println("✓ Press Ctrl+C to stop")
	fmt.Println("\nWaiting for messages...")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	historyWriter.Stop()
	fmt.Println("Recorder Service stopped")
}
