package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/smukkama/energy-monitor/internal/alerting"
	"github.com/smukkama/energy-monitor/internal/database"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/internal/queue"
	"github.com/smukkama/energy-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Alerting Service...")

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

	// Create state manager
	stateManager := alerting.NewStateManager(redisClient)

	// Create alert producer (for notifications)
	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()
	fmt.Println("Alert notification producer initialized")

	// Create evaluator
	evaluator := alerting.NewEvaluator(db, stateManager, alertProducer)

	// Create consumer for readings
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "alerting-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	fmt.Println("\n✓ Alerting Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Start consuming and evaluating
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			// Decode reading message
			readingMsg, err := protocol.DecodeReadingMessage(msg.Value)
			if err != nil {
				log.Printf("Failed to decode message: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			// Evaluate reading
			if err := evaluator.EvaluateReading(ctx, readingMsg); err != nil {
				log.Printf("Failed to evaluate reading: %v\n", err)
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
