package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/store"
)

// PTM is the Potential Tournaments Monitor. It runs every ten minutes over
// the configured watch URLs, skipping those already bound to a tournament's
// results page, and alerts the curation team when one starts serving a live
// results page. Tournaments mostly go live on weekends, so the probing
// windows are:
//
//   - weekend, hours 7-15: every run
//   - weekend, hours 15-23: once per hour (first run of the hour)
//   - otherwise: once per day at hour 0 (first run of the hour)
type PTM struct {
	tournaments *store.TournamentStore
	prober      Prober
	admin       *notify.AdminNotifier
	urls        []string
	retention   time.Duration
	logger      *slog.Logger

	Now func() time.Time

	mu      sync.Mutex
	alerted map[string]time.Time
}

// NewPTM creates the monitor over the given candidate URLs.
func NewPTM(tournaments *store.TournamentStore, prober Prober, admin *notify.AdminNotifier, urls []string, retention time.Duration, logger *slog.Logger) *PTM {
	return &PTM{
		tournaments: tournaments,
		prober:      prober,
		admin:       admin,
		urls:        urls,
		retention:   retention,
		logger:      logger,
		Now:         time.Now,
		alerted:     map[string]time.Time{},
	}
}

// Run probes every unbound candidate URL concurrently. With force set, the
// time windowing is dropped.
func (m *PTM) Run(ctx context.Context, force bool) error {
	m.logger.Info("PTM started", "forced", force)

	now := m.Now()
	if !force && !inProbeWindow(now) {
		m.logger.Debug("PTM outside probe window")
		m.logger.Info("PTM finished")
		return nil
	}

	tournaments, err := m.tournaments.Get()
	if err != nil {
		return err
	}
	bound := map[string]bool{}
	for i := range tournaments {
		if tournaments[i].HTMLResults != nil {
			bound[tournaments[i].HTMLResults.URL] = true
		}
	}

	var wg sync.WaitGroup
	for _, url := range m.urls {
		if bound[url] {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.probe(ctx, url, now)
		}()
	}
	wg.Wait()

	m.logger.Info("PTM finished")
	return nil
}

func (m *PTM) probe(ctx context.Context, url string, now time.Time) {
	if !m.prober.AnalyzeURL(ctx, url) {
		m.logger.Debug("no tournament at candidate URL", "url", url)
		return
	}

	if !m.markAlerted(url, now) {
		m.logger.Debug("new tournament already alerted", "url", url)
		return
	}

	m.logger.Info("Found new tournament", "url", url)
	if err := m.admin.Send(ctx, notify.NewTournamentFound(url)); err != nil {
		m.logger.Error("Failed to record admin alert", "url", url, "error", err)
	}
}

// markAlerted records the alert for url, returning false when one was
// already raised within the retention window. Expired entries are pruned so
// the set stays bounded by the candidate list.
func (m *PTM) markAlerted(url string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.retention)
	for u, at := range m.alerted {
		if at.Before(cutoff) {
			delete(m.alerted, u)
		}
	}

	if _, ok := m.alerted[url]; ok {
		return false
	}
	m.alerted[url] = now
	return true
}

func inProbeWindow(now time.Time) bool {
	wd := now.Weekday()
	h := now.Hour()

	if wd == time.Saturday || wd == time.Sunday {
		if h >= 7 && h < 15 {
			return true
		}
		if h >= 15 && h < 23 {
			return now.Minute() < 10
		}
	}
	return h == 0 && now.Minute() < 10
}
