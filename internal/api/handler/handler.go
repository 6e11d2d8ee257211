// Package handler provides HTTP handlers for the operator endpoints: cache
// refreshes, forced monitor runs and health checks. Cache refreshes are
// awaited; forced monitor runs are fire-and-forget.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tbialecki/judowatch/internal/api/respond"
	"github.com/tbialecki/judowatch/internal/cascade"
	"github.com/tbialecki/judowatch/internal/notify"
)

// Matcher runs one OTA pass.
type Matcher interface {
	Run(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool    *pgxpool.Pool
	coord   *cascade.Coordinator
	atm     cascade.Monitor
	ptm     cascade.Monitor
	matcher Matcher
	admin   *notify.AdminNotifier
	logger  *slog.Logger
	started time.Time
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, coord *cascade.Coordinator, atm, ptm cascade.Monitor, matcher Matcher, admin *notify.AdminNotifier, logger *slog.Logger) *Handler {
	return &Handler{
		pool:    pool,
		coord:   coord,
		atm:     atm,
		ptm:     ptm,
		matcher: matcher,
		admin:   admin,
		logger:  logger,
		started: time.Now().UTC(),
	}
}

// Root serves service info at /.
// @Summary Service root info
// @Description Returns service name, status, and start time.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Judowatch",
		"status":  "running",
		"started": h.started.Format(time.RFC3339),
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Refresh reloads every snapshot, cascading from tournaments.
// @Summary Full cache refresh
// @Description Refreshes tournaments, then competitors, notifications and settings for the active set.
// @Tags refresh
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} respond.ErrorResponse
// @Router /refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.RefreshAll(r.Context()); err != nil {
		h.logger.Error("Cache refresh failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "refreshed"})
}

// RefreshCompetitors reloads tracked competitors, optionally one document.
// @Summary Refresh tracked competitors
// @Description Reloads tracked competitors for active tournaments, or a single user_tournament document via ?id=.
// @Tags refresh
// @Produce json
// @Param id query string false "user_tournament document id"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /refresh/your_competitors [post]
func (h *Handler) RefreshCompetitors(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("id")
	if err := h.coord.RefreshCompetitors(r.Context(), docID); err != nil {
		h.logger.Error("Competitor refresh failed", "doc_id", docID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "refreshed"})
}

// RefreshUserSettings reloads user settings, optionally one user.
// @Summary Refresh user settings
// @Description Reloads settings for users with tracked competitors, or a single user via ?id=.
// @Tags refresh
// @Produce json
// @Param id query string false "user id"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} respond.ErrorResponse
// @Router /refresh/user_settings [post]
func (h *Handler) RefreshUserSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("id")
	if err := h.coord.RefreshUserSettings(r.Context(), userID); err != nil {
		h.logger.Error("Settings refresh failed", "user_id", userID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "refreshed"})
}

// RefreshNotifications rebuilds the sent-notification snapshot.
// @Summary Refresh sent notifications
// @Description Rebuilds the sent-notification snapshot for active tournaments.
// @Tags refresh
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} respond.ErrorResponse
// @Router /refresh/notifications [post]
func (h *Handler) RefreshNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.RefreshNotifications(r.Context()); err != nil {
		h.logger.Error("Notification refresh failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "refreshed"})
}

// ForceATM triggers a forced ATM run without awaiting it.
// @Summary Force ATM run
// @Description Probes every ended tournament regardless of time windows. Returns immediately.
// @Tags monitors
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Router /atm [post]
func (h *Handler) ForceATM(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.atm.Run(context.Background(), true); err != nil {
			h.logger.Error("Forced ATM run failed", "error", err)
		}
	}()
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{"status": "triggered"})
}

// ForcePTM triggers a forced PTM run without awaiting it.
// @Summary Force PTM run
// @Description Probes every unbound candidate URL regardless of time windows. Returns immediately.
// @Tags monitors
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Router /ptm [post]
func (h *Handler) ForcePTM(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.ptm.Run(context.Background(), true); err != nil {
			h.logger.Error("Forced PTM run failed", "error", err)
		}
	}()
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{"status": "triggered"})
}

// ForceOTA triggers one OTA pass without awaiting it.
// @Summary Force OTA run
// @Description Runs one live match analysis pass. Returns immediately.
// @Tags monitors
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Router /ota [post]
func (h *Handler) ForceOTA(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.matcher.Run(context.Background()); err != nil {
			h.logger.Error("Forced OTA run failed", "error", err)
		}
	}()
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{"status": "triggered"})
}

// ClearAdminNotifications drops the admin-alert dedup set.
// @Summary Clear admin alert dedup state
// @Description Removes the retained admin-alert set so suppressed alerts can fire again.
// @Tags monitors
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} respond.ErrorResponse
// @Router /clear/admin_nots [post]
func (h *Handler) ClearAdminNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Clear(); err != nil {
		h.logger.Error("Failed to clear admin notifications", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "CLEAR_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "cleared"})
}
