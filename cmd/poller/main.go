package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bkaraca/airalert/internal/aggregation"
	"github.com/bkaraca/airalert/internal/aqi"
	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/geocode"
	"github.com/bkaraca/airalert/internal/queue"
	"github.com/bkaraca/airalert/internal/readings"
	"github.com/bkaraca/airalert/internal/sweep"
	"github.com/bkaraca/airalert/internal/timer"
	"github.com/bkaraca/airalert/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Poller Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Ensure topics exist (best effort; they may already be there)
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, cfg.Kafka.NumPartitions, 1); err != nil {
		log.Printf("Topic %s: %v", cfg.Kafka.TopicReadings, err)
	}
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.NumPartitions, 1); err != nil {
		log.Printf("Topic %s: %v", cfg.Kafka.TopicNotifications, err)
	}

	// Create producers
	readingsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer readingsProducer.Close()
	notificationsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer notificationsProducer.Close()
	fmt.Println("Kafka producers initialized")

	// Create the per-user pipeline collaborators
	resolver := geocode.NewResolver(nil, cfg.Geocode.BaseURL, cfg.Geocode.Locale)
	feedClient := aqi.NewClient(nil, cfg.Feed.BaseURL, cfg.Feed.Token, cfg.Feed.RequestsPerMinute)
	fetcher := aqi.NewFetcher(feedClient, cfg.Feed.FallbackCities)
	stateManager := readings.NewStateManager(redisClient)

	sweeper := sweep.NewSweeper(sweep.SweeperConfig{
		Store:           db,
		Geocoder:        resolver,
		Fetcher:         fetcher,
		State:           stateManager,
		Readings:        readingsProducer,
		Notifications:   notificationsProducer,
		QueryMode:       cfg.Feed.QueryMode,
		Workers:         cfg.Poll.Workers,
		PipelineTimeout: cfg.Poll.PipelineTimeout,
	})

	// Create scheduler
	scheduler := timer.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()
	fmt.Println("Scheduler started")

	// Run the first sweep immediately, then on the poll interval
	go sweeper.Run(ctx)
	scheduleSweep(ctx, scheduler, sweeper, cfg.Poll.Interval)

	// Schedule the daily reading summary
	dailyAgg := aggregation.NewDailyAggregator(db)
	scheduleDailySummary(scheduler, dailyAgg, cfg.Summary.DailyTime)

	fmt.Println("\n✓ Poller Service is running")
	fmt.Printf("✓ Sweep interval: %s | Workers: %d | Query mode: %s\n",
		cfg.Poll.Interval, cfg.Poll.Workers, cfg.Feed.QueryMode)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}

func scheduleSweep(ctx context.Context, s *timer.Scheduler, sweeper *sweep.Sweeper, interval time.Duration) {
	taskID := "air-quality-sweep"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun := time.Now().Add(interval)
		fmt.Printf("Next sweep scheduled for: %s\n", nextRun.Format("2006-01-02 15:04:05"))

		callback := func() {
			sweeper.Run(ctx)

			// Schedule next run
			scheduleNext()
		}

		if err := s.Schedule(taskID, nextRun, callback); err != nil {
			log.Printf("Failed to schedule sweep: %v", err)
		}
	}

	scheduleNext()
}

func scheduleDailySummary(s *timer.Scheduler, agg *aggregation.DailyAggregator, timeOfDay string) {
	taskID := "daily-reading-summary"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun, err := agg.CalculateNextRunTime(timeOfDay)
		if err != nil {
			log.Fatalf("Failed to calculate daily summary time: %v", err)
		}
		fmt.Printf("Next daily summary scheduled for: %s\n", nextRun.Format("2006-01-02 15:04:05"))

		callback := func() {
			if err := agg.AggregatePreviousDay(); err != nil {
				log.Printf("Daily summary failed: %v\n", err)
			}

			// Schedule next run
			scheduleNext()
		}

		if err := s.Schedule(taskID, nextRun, callback); err != nil {
			log.Printf("Failed to schedule daily summary: %v", err)
		}
	}

	scheduleNext()
}
