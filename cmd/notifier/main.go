package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
	"github.com/bkaraca/airalert/internal/notify"
	"github.com/bkaraca/airalert/internal/queue"
	"github.com/bkaraca/airalert/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Notifier Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Create push client (logs and skips sends if not configured)
	pushClient := notify.NewPushClient(nil, cfg.Push.Endpoint, cfg.Push.ProjectID, cfg.Push.AuthToken)
	if cfg.Push.ProjectID == "" || cfg.Push.AuthToken == "" {
		fmt.Println("Note: push delivery not configured (notifications will be logged only)")
	}

	// Create dispatcher
	dispatcher := notify.NewDispatcher(db, pushClient)

	// Create consumer for notification requests
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, "notifier-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	ctx := context.Background()

	fmt.Println("\n✓ Notifier Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Start consuming notification requests
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			// Decode notification request
			req, err := events.DecodeNotificationRequest(msg.Value)
			if err != nil {
				log.Printf("Failed to decode notification: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			// Deliver notification
			if err := dispatcher.Deliver(ctx, req); err != nil {
				log.Printf("Failed to deliver notification: %v\n", err)
				// Don't commit on error - retry
				continue
			}

			// Commit offset
			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
