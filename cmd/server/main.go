package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/energy-monitor/internal/database"
	"github.com/smukkama/energy-monitor/internal/device"
	"github.com/smukkama/energy-monitor/internal/httpapi"
	"github.com/smukkama/energy-monitor/internal/queue"
	"github.com/smukkama/energy-monitor/pkg/config"
)

const maxDevices = 1000

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Energy Monitor Server...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Kafka topics
	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicReadings,
		cfg.Kafka.NumPartitions,
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicAlerts,
		1, // single partition for alerts
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Create Kafka producer for the readings topic
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer producer.Close()
	fmt.Println("Kafka producer initialized")

	// Create device registry, seeded from the database
	registry := device.NewRegistry(maxDevices)
	seedRegistry(registry, db)
	fmt.Printf("Device registry initialized (%d devices)\n", registry.Count())

	// Create HTTP API server
	server := httpapi.NewServer(&cfg.HTTPServer, cfg.Energy, db, producer, registry)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Print statistics periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := registry.Stats()
			fmt.Printf("\n--- Server Statistics ---\n")
			fmt.Printf("Registered Devices: %d / %d\n", stats.TotalDevices, stats.MaxDevices)
			fmt.Printf("Unique Locations: %d\n", stats.UniqueLocations)
			fmt.Printf("------------------------\n\n")
		}
	}()

	fmt.Println("\n✓ Energy Monitor Server is running")
	fmt.Printf("✓ HTTP API listening on port %d\n", cfg.HTTPServer.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown failed: %v", err)
	}
}

// seedRegistry loads known devices from the database, falling back to a
// default simulated household when none are registered yet.
func seedRegistry(registry *device.Registry, db *database.DB) {
	devices, err := db.ListDevices()
	if err != nil {
		log.Printf("Failed to load devices from database: %v", err)
	}

	for _, d := range devices {
		if err := registry.Register(d.ID, d.Name, d.Location, d.Type, d.PowerMonitoring); err != nil {
			log.Printf("Failed to register device %s: %v", d.ID, err)
		}
	}

	if registry.Count() > 0 {
		return
	}

	defaults := []struct {
		id, name, location string
		powerMonitoring    bool
	}{
		{"plug-office-desk", "Desk Plug", "Office", true},
		{"plug-kitchen-kettle", "Kettle", "Kitchen", true},
		{"plug-living-tv", "TV Strip", "Living Room", true},
		{"plug-bedroom-strip", "LDNIO Strip", "Bedroom", false},
	}
	for _, d := range defaults {
		if err := registry.Register(d.id, d.name, d.location, "smart-plug", d.powerMonitoring); err != nil {
			log.Printf("Failed to register default device %s: %v", d.id, err)
		}
	}
}
