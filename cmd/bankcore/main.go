package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Fantasim/bsvbank/internal/channel"
	"github.com/Fantasim/bsvbank/internal/config"
	"github.com/Fantasim/bsvbank/internal/indexer"
	"github.com/Fantasim/bsvbank/internal/logging"
	"github.com/Fantasim/bsvbank/internal/monitor"
	"github.com/Fantasim/bsvbank/internal/opsapi"
	"github.com/Fantasim/bsvbank/internal/spv"
	"github.com/Fantasim/bsvbank/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("bankcore exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting bankcore",
		"version", version,
		"network", cfg.Network,
		"dbPath", cfg.DBPath,
		"indexerBaseURL", cfg.IndexerBaseURL,
		"minConfirmations", cfg.MinConfirmations,
	)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations applied", "path", cfg.DBPath)

	networkPath := cfg.NetworkPath()
	mainnet := cfg.IsMainnet()
	idxClient := indexer.New(cfg.IndexerBaseURL, networkPath, nil)
	verifier := spv.New(db, idxClient, cfg.MinConfirmations)

	bus := monitor.NewEventBus()
	mon := monitor.New(db, idxClient, verifier, bus, cfg.MinConfirmations, time.Duration(cfg.PollIntervalSecs)*time.Second)
	if err := mon.LoadFromStore(); err != nil {
		return fmt.Errorf("failed to seed watched addresses: %w", err)
	}

	channels := channel.New(db, mainnet, cfg.DefaultFeePerByte)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		mon.Run(rootCtx)
	}()
	go func() {
		defer background.Done()
		runTimeoutSweep(rootCtx, channels)
	}()

	deps := &opsapi.Dependencies{
		Store:     db,
		Monitor:   mon,
		Channels:  channels,
		Version:   version,
		StartedAt: time.Now(),
	}
	router := opsapi.NewRouter(deps)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("ops HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		slog.Error("ops HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops HTTP server shutdown error", "error", err)
	}

	stop() // ensure rootCtx is cancelled even on a server-initiated shutdown
	drained := make(chan struct{})
	go func() {
		background.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		slog.Info("poll loop and sweep ticker drained cleanly")
	case <-time.After(config.ShutdownTimeout):
		slog.Warn("shutdown timed out waiting for background loops", "timeout", config.ShutdownTimeout)
	}

	slog.Info("bankcore stopped")
	return nil
}

// runTimeoutSweep periodically advances disputed channels whose response
// window has elapsed, independent of the confirmation poll cycle.
func runTimeoutSweep(ctx context.Context, channels *channel.Manager) {
	ticker := time.NewTicker(config.AverageBlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := channels.TimeoutSweep()
			if err != nil {
				slog.Warn("timeout sweep failed", "error", err)
				continue
			}
			if len(swept) > 0 {
				slog.Info("timeout sweep advanced disputed channels", "count", len(swept), "channels", swept)
			}
		}
	}
}
