package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smukkama/energy-monitor/internal/database"
	"github.com/smukkama/energy-monitor/internal/protocol"
)

// BatchWriter consumes readings from Kafka and batch-writes them to the
// database
type BatchWriter struct {
	consumer      *Consumer
	db            *database.DB
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer *Consumer, db *database.DB, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := bw.consumer.Consume(ctx)
			if err != nil {
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			msgChan <- msg
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			// Flush remaining batch before stopping
			if len(batch) > 0 {
				bw.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			// Periodic flush
			if len(batch) > 0 {
				fmt.Printf("Flush interval reached (%d messages), flushing...\n", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)

			// Flush if batch is full
			if len(batch) >= bw.batchSize {
				fmt.Printf("Batch full (%d messages), flushing...\n", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	successCount := 0
	for _, msg := range batch {
		if err := bw.processMessage(msg); err != nil {
			fmt.Printf("Failed to process message: %v\n", err)
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := bw.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed batch of %d readings to database\n", successCount)
}

func (bw *BatchWriter) processMessage(msg kafka.Message) error {
	readingMsg, err := protocol.DecodeReadingMessage(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	data := readingMsg.Data

	// Ensure the device exists so the reading has a registry entry to
	// hang off; unknown devices get a minimal record.
	device, err := bw.db.GetDevice(data.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	seenAt := readingMsg.ReceivedAt
	if device == nil {
		newDevice := &database.Device{
			ID:              data.DeviceID,
			Name:            data.DeviceID,
			PowerMonitoring: true,
			IsOn:            true,
			LastSeen:        &seenAt,
		}
		if err := bw.db.UpsertDevice(newDevice); err != nil {
			return fmt.Errorf("failed to create device: %w", err)
		}
	} else {
		if err := bw.db.TouchDevice(data.DeviceID, seenAt); err != nil {
			return fmt.Errorf("failed to touch device: %w", err)
		}
	}

	reading := &database.EnergyReading{
		DeviceID:   data.DeviceID,
		Timestamp:  data.Timestamp,
		Watts:      data.Watts,
		KWh:        data.KWh,
		Cost:       data.Cost,
		ReceivedAt: readingMsg.ReceivedAt,
	}

	if err := bw.db.InsertReading(reading); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}
