// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tbialecki/judowatch/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the snapshot stores
// and the notification sink use. Prepared statements eliminate parse
// overhead on the high-frequency OTA write path.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Tournaments: the ground-truth collection, public only
		"public_tournaments": `
			SELECT id, locales, timezone, name, state, start_date, end_date,
			       html_results, videos, created_at, updated_at
			FROM tournaments
			WHERE state = 'public'
			ORDER BY start_date DESC, end_date DESC, created_at`,

		// Tracked competitors: documents keyed <user>_<tournament>
		"competitors_by_tournaments": `
			SELECT id, user_id, tournament_id, your_competitors
			FROM your_competitors
			WHERE tournament_id = ANY($1)`,
		"competitors_doc": `
			SELECT id, user_id, tournament_id, your_competitors
			FROM your_competitors
			WHERE id = $1`,

		// User settings
		"user_settings_by_ids": `
			SELECT user_id, match_notification_moment
			FROM user_settings
			WHERE user_id = ANY($1)`,

		// Match notifications: per-(user,tournament) jsonb documents
		"notifications_by_tournaments": `
			SELECT user_id, tournament_id, notifications
			FROM tournament_notifications
			WHERE tournament_id = ANY($1)`,
		"merge_notifications": `
			INSERT INTO tournament_notifications (id, user_id, tournament_id, notifications, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE
			SET notifications = tournament_notifications.notifications || EXCLUDED.notifications,
			    updated_at = NOW()`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
