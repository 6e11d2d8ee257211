// Command judoctl is the Judowatch operations CLI. It runs the monitors and
// cache refreshes once, directly against the database, without the server.
//
// Usage:
//
//	judoctl refresh
//	judoctl atm --force
//	judoctl ptm --force
//	judoctl ota
//	judoctl clear-admin
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbialecki/judowatch/internal/cascade"
	"github.com/tbialecki/judowatch/internal/config"
	"github.com/tbialecki/judowatch/internal/db"
	"github.com/tbialecki/judowatch/internal/fetch"
	"github.com/tbialecki/judowatch/internal/monitor"
	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/ota"
	"github.com/tbialecki/judowatch/internal/shiai"
	"github.com/tbialecki/judowatch/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "judoctl",
		Short: "Judowatch operations CLI",
	}

	root.AddCommand(refreshCmd())
	root.AddCommand(atmCmd())
	root.AddCommand(ptmCmd())
	root.AddCommand(otaCmd())
	root.AddCommand(clearAdminCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Shared wiring
// --------------------------------------------------------------------------

// app bundles the dependency graph every command needs.
type app struct {
	cfg      *config.Config
	pool     *db.Pool
	admin    *notify.AdminNotifier
	atm      *monitor.ATM
	ptm      *monitor.PTM
	analyzer *ota.Analyzer
	coord    *cascade.Coordinator
}

// noopRunner satisfies the coordinator's scheduler dependency; one-shot CLI
// runs never start timers.
type noopRunner struct{}

func (noopRunner) Start()        {}
func (noopRunner) Stop()         {}
func (noopRunner) Running() bool { return false }

// runApp wires the full dependency graph, runs fn, and tears down.
func runApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()

	client := fetch.NewClient(cfg, logger)
	scraper := shiai.NewScraper(client, cfg.CardCacheTTL, logger)

	tournaments := store.NewTournamentStore(pool.Pool, cfg.SnapshotDir, logger)
	competitors := store.NewCompetitorStore(pool.Pool, cfg.SnapshotDir, logger)
	settings := store.NewSettingsStore(pool.Pool, cfg.SnapshotDir, logger)
	sink := notify.NewSink(pool.Pool, cfg.SnapshotDir, logger)
	admin := notify.NewAdminNotifier(cfg.AdminNotificationURL, cfg.SnapshotDir, cfg.AdminRetention, logger)

	a := &app{
		cfg:      cfg,
		pool:     pool,
		admin:    admin,
		atm:      monitor.NewATM(tournaments, scraper, admin, cfg.ATMRetry, logger),
		ptm:      monitor.NewPTM(tournaments, scraper, admin, cfg.WatchURLs, cfg.AdminRetention, logger),
		analyzer: ota.NewAnalyzer(tournaments, competitors, settings, scraper, sink, logger),
	}
	a.coord = cascade.New(tournaments, competitors, settings, sink,
		noopRunner{}, noopRunner{}, a.atm, a.ptm, logger)

	if err := fn(ctx, a); err != nil {
		logger.Error("Command failed", "error", err)
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh all snapshot caches from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app) error {
				return a.coord.RefreshAll(ctx)
			})
		},
	}
}

func atmCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "atm",
		Short: "Run the available tournaments monitor once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app) error {
				return a.atm.Run(ctx, force)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "probe every ended tournament regardless of time windows")
	return cmd
}

func ptmCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "ptm",
		Short: "Run the potential tournaments monitor once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app) error {
				return a.ptm.Run(ctx, force)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "probe every candidate URL regardless of time windows")
	return cmd
}

func otaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ota",
		Short: "Run the live match analyzer once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app) error {
				return a.analyzer.Run(ctx)
			})
		},
	}
}

func clearAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-admin",
		Short: "Clear the admin-alert de-duplication state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app) error {
				return a.admin.Clear()
			})
		},
	}
}
