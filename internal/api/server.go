// Package api wires the chi router exposing the operator trigger surface.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tbialecki/judowatch/internal/api/handler"
	"github.com/tbialecki/judowatch/internal/cascade"
	"github.com/tbialecki/judowatch/internal/config"
	"github.com/tbialecki/judowatch/internal/notify"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(pool *pgxpool.Pool, coord *cascade.Coordinator, atm, ptm cascade.Monitor, matcher handler.Matcher, admin *notify.AdminNotifier, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, coord, atm, ptm, matcher, admin, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// Cache refreshes (awaited)
	r.Route("/refresh", func(r chi.Router) {
		r.Post("/", h.Refresh)
		r.Post("/your_competitors", h.RefreshCompetitors)
		r.Post("/user_settings", h.RefreshUserSettings)
		r.Post("/notifications", h.RefreshNotifications)
	})

	// Forced monitor runs (fire-and-forget)
	r.Post("/atm", h.ForceATM)
	r.Post("/ptm", h.ForcePTM)
	r.Post("/ota", h.ForceOTA)

	// Admin alert dedup state
	r.Post("/clear/admin_nots", h.ClearAdminNotifications)

	return r
}
