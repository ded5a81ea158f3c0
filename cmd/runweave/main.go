// cmd/runweave/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fawad-mazhar/runweave/internal/api/routes"
	"github.com/fawad-mazhar/runweave/internal/config"
	"github.com/fawad-mazhar/runweave/internal/executor"
	"github.com/fawad-mazhar/runweave/internal/queue"
	"github.com/fawad-mazhar/runweave/internal/scheduler"
	"github.com/fawad-mazhar/runweave/internal/storage/leveldb"
	"github.com/fawad-mazhar/runweave/internal/storage/postgres"
	"github.com/hashicorp/go-hclog"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "runweave",
		Level: hclog.LevelFromString(os.Getenv("RUNWEAVE_LOG_LEVEL")),
	})

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Local run store, always on
	store, err := leveldb.NewClient(cfg.LevelDB, 7*24*time.Hour)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Postgres archive, optional
	var archive *postgres.Client
	if cfg.Postgres.URL != "" {
		archive, err = postgres.NewClient(cfg.Postgres)
		if err != nil {
			logger.Error("failed to connect to run archive", "error", err)
			os.Exit(1)
		}
		defer archive.Close()
	}

	// NATS event stream, optional
	var events scheduler.EventSink
	if cfg.NATS.URL != "" {
		nc, err := queue.NewNATS(cfg.NATS)
		if err != nil {
			logger.Error("failed to connect to event stream", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		events = nc
	}

	exec := executor.New(executor.Config{
		SamplingInterval: cfg.Engine.SamplingInterval.Std(),
		TerminationGrace: cfg.Engine.TerminationGrace.Std(),
		DefaultRetry:     cfg.Engine.DefaultRetry,
	}, logger)

	var recorder scheduler.RunRecorder = store
	if archive != nil {
		recorder = scheduler.MultiRecorder(store, archive)
	}

	sched := scheduler.New(exec, recorder, events, scheduler.Config{
		MaxParallel: cfg.Engine.MaxParallel,
	}, logger)

	service := scheduler.NewService(sched, logger)
	for i := range cfg.Workflows {
		if err := service.Register(&cfg.Workflows[i]); err != nil {
			logger.Error("failed to register workflow", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("registered workflows", "count", len(cfg.Workflows))

	// HTTP API
	router := routes.SetupRouter(service, store, archive)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownTimeout := time.Duration(cfg.Engine.ShutdownTimeout) * time.Second

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}

	if err := service.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("error during service shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}
