package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/config"
	"github.com/fentz26/pacer/internal/controlplane"
	"github.com/fentz26/pacer/internal/notify"
	"github.com/fentz26/pacer/internal/scheduler"
	"github.com/fentz26/pacer/internal/store"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the pacer daemon",
	Long:  `Starts the pacer daemon which serves the HTTP API and runs the decay, goal and urgency jobs on their cron schedules.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.Database.Driver {
	case store.DriverPostgres:
		return store.Open(store.DriverPostgres, cfg.Database.DSN)
	default:
		return store.New(cfg.Database.Path)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting pacer daemon...")

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Database.Driver = store.DriverSQLite
		cfg.Database.Path = dbPath
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize store
	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	relay, err := notify.NewRelay(cfg.RelayOptions())
	if err != nil {
		s.Close()
		return err
	}
	log.Printf("Urgency relay: %s", relay.Name())

	// Create service and server
	service := controlplane.NewService(s, clock.System{}, loc, controlplane.Options{
		Window:      cfg.Window(),
		DailyTarget: cfg.Work.DailyTarget,
		WorkDays:    cfg.Work.WorkDays,
		Decay:       cfg.DecayThresholds(),
		Urgency:     cfg.UrgencyThresholds(),
		Relay:       relay,
	})
	server := controlplane.NewServer(service, cfg.Server.Listen)

	// Create and start scheduler
	schedulerCfg := scheduler.DefaultConfig()
	schedulerCfg.Location = loc
	sched := scheduler.New(schedulerCfg)
	if cfg.Schedule.Enabled {
		if err := registerJobs(sched, service, cfg.Schedule); err != nil {
			s.Close()
			return err
		}
	}

	// Wire scheduler to server for /jobs endpoint
	server.SetScheduler(sched)

	sched.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			sched.Stop()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping scheduler...")
	sched.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// registerJobs binds the periodic engine operations to their cron specs.
// An empty spec disables that job.
func registerJobs(sched *scheduler.Scheduler, service *controlplane.Service, sc config.ScheduleConfig) error {
	jobs := []struct {
		name string
		spec string
		fn   scheduler.JobFunc
	}{
		{scheduler.JobDecay, sc.Decay, func(ctx context.Context) (string, error) {
			result, err := service.RunAutoDecay(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("archived %d, failed %d", len(result.Archived), len(result.Failed)), nil
		}},
		{scheduler.JobGoals, sc.Goals, func(ctx context.Context) (string, error) {
			record, err := service.UpdateDailyGoal(ctx, "")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %d/%d points, pressure %d", record.Date, record.EarnedPoints, record.TargetPoints, record.PressureLevel), nil
		}},
		{scheduler.JobUrgency, sc.Urgency, func(ctx context.Context) (string, error) {
			result, err := service.CheckAndNotify(ctx, nil)
			if err != nil {
				return "", err
			}
			if result.Sent {
				return fmt.Sprintf("sent %s nudge via %s", result.Tier, result.Relay), nil
			}
			return result.Reason, nil
		}},
	}

	for _, j := range jobs {
		if err := sched.Register(j.name, j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s job: %w", j.name, err)
		}
	}
	return nil
}
