package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/subreddit-relay/internal/app"
	"github.com/blackmichael/subreddit-relay/internal/config"
	"github.com/blackmichael/subreddit-relay/internal/httpserver"
	"github.com/blackmichael/subreddit-relay/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("RELAY_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("opened seen store", "postgres", cfg.Storage.IsPostgres())

	transport, err := app.NewTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("create telegram client: %w", err)
	}

	m := metrics.New()
	relay, err := app.NewRelayService(cfg, store, transport, m, logger)
	if err != nil {
		return fmt.Errorf("create relay service: %w", err)
	}

	// Start the relay in the background
	source := app.NewSource(cfg, store, logger)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx, source); err != nil && ctx.Err() == nil {
			logger.Error("relay exited with error", "error", err)
		}
	}()

	// Start background seen-store cleanup
	if cfg.Storage.SeenRetention > 0 {
		go relay.StartCleanupJob(ctx, cfg.Storage.CleanupInterval, cfg.Storage.SeenRetention)
	}

	// Start the HTTP server
	server := httpserver.NewServer(cfg.Port, relay, m.Registry, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("relay started",
		"port", cfg.Port,
		"feed_mode", cfg.Feed.Mode,
		"subreddits", cfg.Reddit.Subreddits,
		"flairs", cfg.DesiredFlairs,
		"allow_all_flairs", cfg.AllowAllFlairs,
	)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn("relay did not stop before shutdown timeout")
	}

	return nil
}
