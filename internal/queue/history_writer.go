package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
)

// updateConsumer is the slice of Consumer the history writer needs.
type updateConsumer interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// historyStore persists reading history rows.
type historyStore interface {
	InsertReadingHistory(h *database.ReadingHistory) error
}

// HistoryWriter consumes reading updates from Kafka and batch-appends
// them to the reading history table.
type HistoryWriter struct {
	consumer      updateConsumer
	db            historyStore
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewHistoryWriter creates a new history writer
func NewHistoryWriter(consumer updateConsumer, db historyStore, batchSize int, flushInterval time.Duration) *HistoryWriter {
	return &HistoryWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database
func (hw *HistoryWriter) Start(ctx context.Context) error {
	ctx, hw.cancel = context.WithCancel(ctx)

	msgChan := make(chan kafka.Message, 10)
	hw.wg.Add(2)
	go hw.consume(ctx, msgChan)
	go hw.run(ctx, msgChan)
	return nil
}

// Stop stops the history writer gracefully, waiting for both the consume
// and flush loops to exit.
func (hw *HistoryWriter) Stop() {
	close(hw.stopCh)
	hw.cancel()
	hw.wg.Wait()
}

func (hw *HistoryWriter) consume(ctx context.Context, msgChan chan<- kafka.Message) {
	defer hw.wg.Done()

	for {
		msg, err := hw.consumer.Consume(ctx)
		if err != nil {
			select {
			case <-hw.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			fmt.Printf("Consumer error: %v\n", err)
			continue
		}

		select {
		case msgChan <- msg:
		case <-hw.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (hw *HistoryWriter) run(ctx context.Context, msgChan <-chan kafka.Message) {
	defer hw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(hw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hw.stopCh:
			// Flush remaining batch before stopping
			if len(batch) > 0 {
				hw.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				fmt.Printf("Flush interval reached (%d updates), flushing...\n", len(batch))
				hw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)

			if len(batch) >= hw.batchSize {
				fmt.Printf("Batch full (%d updates), flushing...\n", len(batch))
				hw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (hw *HistoryWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	successCount := 0
	for _, msg := range batch {
		if err := hw.processMessage(msg); err != nil {
			fmt.Printf("Failed to process reading update: %v\n", err)
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := hw.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed batch of %d reading updates to history\n", successCount)
}

func (hw *HistoryWriter) processMessage(msg kafka.Message) error {
	update, err := events.DecodeReadingUpdate(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode reading update: %w", err)
	}

	history := &database.ReadingHistory{
		LocationQuery: update.LocationQuery,
		LocationName:  update.LocationName,
		AQI:           update.NewAQI,
		Approximate:   update.Approximate,
		CapturedAt:    update.CapturedAt,
	}

	if err := hw.db.InsertReadingHistory(history); err != nil {
		return fmt.Errorf("failed to insert reading history: %w", err)
	}

	return nil
}
