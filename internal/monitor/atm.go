// Package monitor implements the two availability monitors: ATM probes the
// results pages of finished tournaments, PTM probes candidate URLs that are
// not bound to any known tournament yet. Both fold every probe failure into
// an unavailable result and raise admin alerts on state changes.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tbialecki/judowatch/internal/config"
	"github.com/tbialecki/judowatch/internal/fetch"
	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/store"
)

// Prober classifies a base URL as a live results page.
type Prober interface {
	Analyze(ctx context.Context, baseURL string, policy fetch.Policy) bool
	AnalyzeURL(ctx context.Context, baseURL string) bool
}

// ATM is the Available Tournaments Monitor. It runs hourly (driven by the
// main scheduler) over finished tournaments with a results page and decides
// per tournament, from the time since its end, whether now is the moment to
// probe:
//
//   - more than 90 days after the end: weekly, on the end date's weekday at
//     hour 0
//   - 7 to 90 days: daily at hour 0
//   - within 7 days: every run
type ATM struct {
	tournaments *store.TournamentStore
	prober      Prober
	admin       *notify.AdminNotifier
	ladder      []config.RetryStep
	logger      *slog.Logger

	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

// NewATM creates the monitor with the given probe escalation ladder.
func NewATM(tournaments *store.TournamentStore, prober Prober, admin *notify.AdminNotifier, ladder []config.RetryStep, logger *slog.Logger) *ATM {
	return &ATM{
		tournaments: tournaments,
		prober:      prober,
		admin:       admin,
		ladder:      ladder,
		logger:      logger,
		Now:         time.Now,
		Sleep:       sleepCtx,
	}
}

// Run probes every eligible tournament concurrently and returns once all
// probes settled. With force set, the time windowing is dropped and every
// ended tournament (no grace day) is probed.
func (m *ATM) Run(ctx context.Context, force bool) error {
	m.logger.Info("ATM started", "forced", force)

	now := m.Now()
	tournaments, err := m.tournaments.Get()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := range tournaments {
		t := &tournaments[i]
		if !m.eligible(t, now, force) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.probe(ctx, t)
		}()
	}
	wg.Wait()

	m.logger.Info("ATM finished")
	return nil
}

func (m *ATM) eligible(t *store.Tournament, now time.Time, force bool) bool {
	if t.HTMLResults == nil {
		return false
	}
	if force {
		return t.Ended(now)
	}
	if !t.Finished(now) {
		return false
	}
	return m.inWindow(t, now)
}

func (m *ATM) inWindow(t *store.Tournament, now time.Time) bool {
	end := t.End()
	days := now.Sub(end).Hours() / 24

	switch {
	case days > 90:
		return now.Weekday() == end.Weekday() && now.Hour() == 0
	case days > 7:
		return now.Hour() == 0
	default:
		return true
	}
}

// probe walks the escalation ladder until one attempt succeeds. Persistent
// failure raises an admin alert; an external curation process decides
// whether to mark the tournament outdated.
func (m *ATM) probe(ctx context.Context, t *store.Tournament) {
	available := false
	for _, step := range m.ladder {
		if step.Pause > 0 && !m.Sleep(ctx, step.Pause) {
			return
		}
		if m.prober.Analyze(ctx, t.HTMLResults.URL, fetch.ParsePolicy(step.Policy)) {
			available = true
			break
		}
	}

	if available {
		m.logger.Info("Tournament is available", "tournament_id", t.ID)
		return
	}

	m.logger.Info("Tournament is not available, should be marked as outdated",
		"tournament_id", t.ID)
	note := notify.TournamentNotAvailable(t.ID, t.DisplayName(), t.HTMLResults.URL)
	if err := m.admin.Send(ctx, note); err != nil {
		m.logger.Error("Failed to record admin alert", "tournament_id", t.ID, "error", err)
	}
}

// sleepCtx waits for d, returning false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
