package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/terra-clan/template-marketplace/internal/api"
	"github.com/terra-clan/template-marketplace/internal/config"
	"github.com/terra-clan/template-marketplace/internal/feed"
	"github.com/terra-clan/template-marketplace/internal/metrics"
	"github.com/terra-clan/template-marketplace/internal/models"
	"github.com/terra-clan/template-marketplace/internal/templates"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting template-marketplace",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"templates_dir", cfg.Templates.Dir,
	)

	if cfg.Metrics.Enabled {
		metrics.Init(prometheus.DefaultRegisterer)
	}

	// Load templates
	loader := templates.NewLoader()
	loader.Subscribe(func(snapshot []*models.Record) {
		metrics.SetCatalogSize(len(snapshot))
	})

	if _, err := loader.LoadFromDir(cfg.Templates.Dir); err != nil {
		slog.Error("failed to load templates", "dir", cfg.Templates.Dir, "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *templates.Watcher
	if cfg.Templates.Watch {
		watcher, err = templates.NewWatcher(loader, cfg.Templates.Dir, cfg.Templates.Debounce)
		if err != nil {
			slog.Error("failed to create template watcher", "error", err)
			os.Exit(1)
		}
		watcher.Start(ctx)
	}

	hub := api.NewHub(loader.Get, 32)

	if cfg.Feed.Enabled {
		simulator := feed.NewSimulator(loader, cfg.Feed.Interval, cfg.Feed.Seed)
		simulator.AddSink(func(feed.Event) { metrics.RecordFeedEvent() })
		simulator.AddSink(hub.Publish)
		simulator.Start(ctx)
	}

	// Setup HTTP server
	server := api.NewServer(cfg, loader, hub)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()
	hub.Close()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if watcher != nil {
		<-watcher.Done()
	}

	slog.Info("template-marketplace stopped")
}
