package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AdminNotification is an operational alert for the curation team.
type AdminNotification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// TournamentNotAvailable builds the alert raised when a known tournament's
// results page stops responding.
func TournamentNotAvailable(tournamentID, name, resultsURL string) AdminNotification {
	return AdminNotification{
		Title: "Tournament not available",
		Body:  fmt.Sprintf("Tournament %s is not available. URL: %s", name, resultsURL),
		URL:   "tournaments/" + tournamentID,
	}
}

// NewTournamentFound builds the alert raised when a candidate URL turns
// into a live results page.
func NewTournamentFound(url string) AdminNotification {
	return AdminNotification{
		Title: "New tournament",
		Body:  fmt.Sprintf("New tournament is available. URL: %s", url),
		URL:   url,
	}
}

type retainedFile struct {
	Notifications []AdminNotification `json:"notifications"`
	Timestamp     time.Time           `json:"timestamp"`
}

// AdminNotifier delivers admin alerts to the configured endpoint,
// suppressing exact (title, body, url) repeats within the retention window.
// The retained set is pruned on every read.
type AdminNotifier struct {
	endpoint  string
	path      string
	retention time.Duration
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewAdminNotifier creates a notifier keeping its retained set under dir.
// An empty endpoint disables delivery; dedup bookkeeping still happens so
// behavior is identical once an endpoint is configured.
func NewAdminNotifier(endpoint, dir string, retention time.Duration, logger *slog.Logger) *AdminNotifier {
	return &AdminNotifier{
		endpoint:  endpoint,
		path:      filepath.Join(dir, "admin_notifications.json"),
		retention: retention,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers the alert unless an equal one was sent within the
// retention window. Delivery failure is logged, not retried.
func (a *AdminNotifier) Send(ctx context.Context, note AdminNotification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	retained, err := a.readRetained()
	if err != nil {
		return err
	}

	for i := range retained {
		if retained[i].Title == note.Title && retained[i].Body == note.Body && retained[i].URL == note.URL {
			a.logger.Debug("admin notification already sent", "title", note.Title)
			return nil
		}
	}

	if note.Timestamp.IsZero() {
		note.Timestamp = a.now().UTC()
	}

	a.deliver(ctx, note)

	retained = append(retained, note)
	return a.writeRetained(retained)
}

// Clear drops the retained dedup set.
func (a *AdminNotifier) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear admin notifications: %w", err)
	}
	return nil
}

func (a *AdminNotifier) deliver(ctx context.Context, note AdminNotification) {
	if a.endpoint == "" {
		a.logger.Info("Admin notification (endpoint not configured)",
			"title", note.Title, "body", note.Body)
		return
	}

	payload, err := json.Marshal(note)
	if err != nil {
		a.logger.Error("Failed to encode admin notification", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		a.logger.Error("Failed to build admin notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("Failed to send admin notification", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		a.logger.Info("Sent admin notification", "title", note.Title)
	} else {
		a.logger.Error("Failed to send admin notification", "status", resp.Status)
	}
}

func (a *AdminNotifier) readRetained() ([]AdminNotification, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []AdminNotification{}, nil
		}
		return nil, fmt.Errorf("read admin notifications: %w", err)
	}

	var f retainedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse admin notifications: %w", err)
	}

	// Expire entries older than the retention window.
	cutoff := a.now().Add(-a.retention)
	kept := f.Notifications[:0]
	for _, n := range f.Notifications {
		if n.Timestamp.After(cutoff) {
			kept = append(kept, n)
		}
	}
	return kept, nil
}

func (a *AdminNotifier) writeRetained(list []AdminNotification) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create admin notifications dir: %w", err)
	}

	data, err := json.MarshalIndent(retainedFile{
		Notifications: list,
		Timestamp:     a.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal admin notifications: %w", err)
	}

	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return fmt.Errorf("write admin notifications: %w", err)
	}
	return nil
}
