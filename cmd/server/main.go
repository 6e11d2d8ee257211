// Command server is the Judowatch monitoring service.
//
// Usage:
//
//	judowatch-server
//	API_PORT=8080 judowatch-server

// @title Judowatch Operator API
// @version 1.0.0
// @description Operator trigger surface for the judo tournament monitors: cache refreshes, forced ATM/PTM/OTA runs, admin-alert state.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/tbialecki/judowatch/internal/api"
	"github.com/tbialecki/judowatch/internal/cascade"
	"github.com/tbialecki/judowatch/internal/config"
	"github.com/tbialecki/judowatch/internal/db"
	"github.com/tbialecki/judowatch/internal/fetch"
	"github.com/tbialecki/judowatch/internal/monitor"
	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/ota"
	"github.com/tbialecki/judowatch/internal/scheduler"
	"github.com/tbialecki/judowatch/internal/shiai"
	"github.com/tbialecki/judowatch/internal/store"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Scraping stack
	client := fetch.NewClient(cfg, logger)
	scraper := shiai.NewScraper(client, cfg.CardCacheTTL, logger)

	// Snapshot stores and notification sinks
	tournaments := store.NewTournamentStore(pool.Pool, cfg.SnapshotDir, logger)
	competitors := store.NewCompetitorStore(pool.Pool, cfg.SnapshotDir, logger)
	settings := store.NewSettingsStore(pool.Pool, cfg.SnapshotDir, logger)
	sink := notify.NewSink(pool.Pool, cfg.SnapshotDir, logger)
	admin := notify.NewAdminNotifier(cfg.AdminNotificationURL, cfg.SnapshotDir, cfg.AdminRetention, logger)

	// Monitors and the live match analyzer
	atm := monitor.NewATM(tournaments, scraper, admin, cfg.ATMRetry, logger)
	ptm := monitor.NewPTM(tournaments, scraper, admin, cfg.WatchURLs, cfg.AdminRetention, logger)
	analyzer := ota.NewAnalyzer(tournaments, competitors, settings, scraper, sink, logger)

	// Schedulers and the cache cascade coordinator. The coordinator owns the
	// main tick composition, so it is built after the schedulers but the main
	// scheduler's job closes over it.
	var coord *cascade.Coordinator
	mainSched := scheduler.New("main", cfg.MainInterval, func(ctx context.Context) error {
		return coord.MainTick(ctx)
	}, logger)
	activeSched := scheduler.New("active", cfg.ActiveInterval, analyzer.Run, logger)
	coord = cascade.New(tournaments, competitors, settings, sink, mainSched, activeSched, atm, ptm, logger)

	// Create router
	router := api.NewRouter(pool.Pool, coord, atm, ptm, analyzer, admin, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Judowatch",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Bootstrap: load every snapshot and bring the schedulers up. Failure
	// here is not fatal; an operator refresh can repair a cold start.
	go func() {
		if err := coord.RefreshAll(ctx); err != nil {
			logger.Error("Bootstrap cache refresh failed", "error", err)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	mainSched.Stop()
	activeSched.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
