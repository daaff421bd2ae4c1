package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolwatch/cascade"
	"github.com/jonwraymond/toolwatch/config"
	"github.com/jonwraymond/toolwatch/monitor"
	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/probe"
	"github.com/jonwraymond/toolwatch/record"
	"github.com/jonwraymond/toolwatch/target"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring daemon",
		RunE:  runServe,
	}

	cmd.Flags().StringP("config", "c", "toolwatch.yaml", "Path to the configuration file")
	cmd.Flags().Duration("shutdown-timeout", 15*time.Second, "Graceful shutdown budget")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return fmt.Errorf("observability setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = observer.Shutdown(shutdownCtx)
	}()

	logger := observer.Logger()
	metrics, err := observe.NewMetrics(observer.Meter())
	if err != nil {
		return fmt.Errorf("metrics setup: %w", err)
	}
	tracer := observe.NewTracer(observer.Tracer())

	store, incidents, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer incidents.Close()

	history, err := record.NewHistory()
	if err != nil {
		return err
	}

	graph := target.NewGraph(cfg.BuildEdges())
	detector, err := cascade.NewDetector(cascade.DetectorConfig{
		Graph:  graph,
		Store:  incidents,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	mon, err := monitor.New(monitor.Config{
		Checkers:  newCheckerRegistry(),
		Store:     store,
		History:   history,
		Detector:  detector,
		Incidents: incidents,
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    tracer,
	})
	if err != nil {
		return err
	}

	for _, t := range cfg.BuildTargets() {
		if err := mon.Register(t); err != nil {
			return fmt.Errorf("register target %q: %w", t.ID, err)
		}
	}

	if err := mon.Start(ctx); err != nil {
		return err
	}

	sweeper, err := monitor.NewSweeper(monitor.SweeperConfig{
		Store:             store,
		Incidents:         incidents,
		Schedule:          cfg.Retention.Schedule,
		BucketRetention:   cfg.Retention.Buckets.Std(),
		IncidentRetention: cfg.Retention.Incidents.Std(),
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	sweeper.Start()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      monitor.NewMux(mon),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "query API listening",
			observe.Field{Key: "addr", Value: cfg.HTTP.Addr},
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		logger.Error(ctx, "query API failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sweeper.Stop()
	_ = server.Shutdown(shutdownCtx)
	if err := mon.Stop(shutdownCtx); err != nil && !errors.Is(err, monitor.ErrNotRunning) {
		return err
	}
	return nil
}

// newCheckerRegistry wires the built-in probe executors. The generic
// HTTP checker doubles as the fallback for unmatched kinds.
func newCheckerRegistry() *probe.Registry {
	reg := probe.NewRegistry(probe.NewHTTPChecker())
	reg.Register(probe.NewRateLimitChecker())
	reg.Register(probe.NewQueueDepthChecker())
	reg.Register(probe.NewIdentityChecker())
	return reg
}

func openStores(cfg *config.File) (record.Store, cascade.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		store, err := record.NewSQLiteStore(record.SQLiteStoreConfig{DSN: cfg.Store.DSN})
		if err != nil {
			return nil, nil, err
		}
		incidents, err := cascade.NewSQLiteStore(cascade.SQLiteStoreConfig{DSN: cfg.Store.DSN})
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, incidents, nil
	default:
		return record.NewMemoryStore(), cascade.NewMemoryStore(), nil
	}
}
