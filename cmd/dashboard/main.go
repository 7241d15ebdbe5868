package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smukkama/energy-monitor/internal/analytics"
	"github.com/smukkama/energy-monitor/internal/dashboard"
	"github.com/smukkama/energy-monitor/internal/export"
	"github.com/smukkama/energy-monitor/internal/history"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Energy Dashboard...")

	plugClient := plug.NewClient(&cfg.Plug)
	historyClient := history.NewClient(&cfg.Plug)

	// Connect to Redis for daily snapshots. The dashboard degrades to
	// fresh-start rollovers when Redis is unreachable.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snapshots *analytics.SnapshotStore
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("Note: Redis unavailable, daily snapshots disabled: %v\n", err)
	} else {
		snapshots = analytics.NewSnapshotStore(redisClient)
		fmt.Println("Connected to Redis")
	}

	// Pick the device to monitor
	device, err := pickDevice(ctx, plugClient, cfg.Plug.DefaultDeviceID)
	if err != nil {
		log.Fatalf("Failed to select a device: %v", err)
	}
	fmt.Printf("Monitoring device: %s (%s)\n", device.Name, device.ID)
	if !device.PowerMonitoring {
		fmt.Println("Note: device has no power monitoring, live watts will read 0")
	}

	// Resume today's accumulation from the last snapshot, if any
	var snap *analytics.DailySnapshot
	if snapshots != nil {
		snap, err = snapshots.Load(ctx, device.ID)
		if err != nil {
			fmt.Printf("Note: failed to load daily snapshot, starting fresh: %v\n", err)
		}
	}

	session := dashboard.NewSession(cfg.Energy, device, snap, time.Now())

	monitor := dashboard.NewMonitor(session, plugClient, historyClient, snapshotSaver(snapshots), cfg.Dashboard)
	go monitor.Run(ctx)

	// Render a status line every poll interval
	go func() {
		ticker := time.NewTicker(cfg.Dashboard.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printStatus(session)
			}
		}
	}()

	fmt.Println("\n✓ Energy Dashboard is running")
	fmt.Printf("✓ Polling every %s\n", cfg.Dashboard.PollInterval)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Checkpoint the day state so a restart resumes where we left off
	if snapshots != nil {
		day := session.Today()
		if err := snapshots.Save(shutdownCtx, device.ID, &day, time.Now()); err != nil {
			log.Printf("Failed to save final snapshot: %v", err)
		}
	}

	exportLastDay(shutdownCtx, historyClient, device)
	fmt.Println("Energy Dashboard stopped")
}

// pickDevice selects the configured default device, falling back to the
// first device the upstream catalog lists.
func pickDevice(ctx context.Context, client *plug.Client, defaultID string) (plug.Device, error) {
	devices, err := client.ListDevices(ctx)
	if err != nil {
		return plug.Device{}, err
	}
	if len(devices) == 0 {
		return plug.Device{}, fmt.Errorf("no devices available")
	}

	if defaultID != "" {
		for _, d := range devices {
			if d.ID == defaultID {
				return d, nil
			}
		}
		fmt.Printf("Note: device %s not found, using %s\n", defaultID, devices[0].ID)
	}

	return devices[0], nil
}

func printStatus(session *dashboard.Session) {
	ins := session.Insights()
	hist := session.History()

	watts := 0.0
	if n := len(hist.Watts); n > 0 {
		watts = hist.Watts[n-1]
	}

	fmt.Printf("[%s] %s | %.1f W | today %.4f kWh | score %d (%s) | %s\n",
		time.Now().Format("15:04:05"), session.Status(), watts,
		session.CumulativeKWh(), ins.EfficiencyScore, ins.Tier, ins.Classification)

	for _, tip := range ins.Tips {
		fmt.Printf("  tip: %s\n", tip)
	}
	if ins.DayOverDay.HasBaseline {
		fmt.Printf("  vs yesterday: %+.1f%%\n", ins.DayOverDay.ChangePct)
	}
}

// exportLastDay writes the last 24 hours of history to JSON and CSV files
// next to the binary. Export failures are logged, never fatal.
func exportLastDay(ctx context.Context, q dashboard.HistoryQuerier, device plug.Device) {
	now := time.Now()
	view := dashboard.FetchHistoricalView(ctx, q, device, now.Add(-24*time.Hour), now, now.Location())
	if len(view.Readings) == 0 {
		return
	}

	doc := export.BuildDocument(view, now)
	base := fmt.Sprintf("energy-export-%s", strings.ReplaceAll(device.ID, "/", "-"))

	jsonFile, err := os.Create(base + ".json")
	if err != nil {
		log.Printf("Failed to create JSON export: %v", err)
	} else {
		defer jsonFile.Close()
		if err := export.WriteJSON(jsonFile, doc); err != nil {
			log.Printf("Failed to write JSON export: %v", err)
		} else {
			fmt.Printf("Exported %s.json (%d readings)\n", base, len(doc.Readings))
		}
	}

	csvFile, err := os.Create(base + ".csv")
	if err != nil {
		log.Printf("Failed to create CSV export: %v", err)
		return
	}
	defer csvFile.Close()
	if err := export.WriteCSV(csvFile, doc); err != nil {
		log.Printf("Failed to write CSV export: %v", err)
		return
	}
	fmt.Printf("Exported %s.csv (%d readings)\n", base, len(doc.Readings))
}

// snapshotSaver adapts a possibly-nil store to the monitor's interface.
// A nil interface value disables checkpointing inside the monitor.
func snapshotSaver(s *analytics.SnapshotStore) dashboard.SnapshotSaver {
	if s == nil {
		return nil
	}
	return s
}
