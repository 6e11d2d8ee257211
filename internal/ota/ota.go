// Package ota implements the Ongoing Tournaments Analyzer: the
// high-frequency job matching tracked competitors against the live
// next-matches board and emitting upcoming-match notifications.
package ota

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/shiai"
	"github.com/tbialecki/judowatch/internal/store"
)

// NotificationSink receives the notifications produced by a run.
type NotificationSink interface {
	Create(ctx context.Context, list []notify.MatchNotification) error
}

// Analyzer matches tracked competitors against live boards.
type Analyzer struct {
	tournaments *store.TournamentStore
	competitors *store.CompetitorStore
	settings    *store.SettingsStore
	scraper     *shiai.Scraper
	sink        NotificationSink
	logger      *slog.Logger
}

// NewAnalyzer wires the analyzer over the snapshot stores and the scraper.
func NewAnalyzer(tournaments *store.TournamentStore, competitors *store.CompetitorStore, settings *store.SettingsStore, scraper *shiai.Scraper, sink NotificationSink, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		tournaments: tournaments,
		competitors: competitors,
		settings:    settings,
		scraper:     scraper,
		sink:        sink,
		logger:      logger,
	}
}

// Run executes one analysis pass: resolve each tracked competitor's
// notification moment, group them by tournament and analyze every
// tournament with trackers concurrently. Board and card failures cost that
// tournament its run, never the whole pass.
func (a *Analyzer) Run(ctx context.Context) error {
	a.logger.Info("OTA started")

	tracked, err := a.trackedCompetitors()
	if err != nil {
		return err
	}
	if len(tracked) == 0 {
		a.logger.Debug("no tracked competitors with notification moments")
		a.logger.Info("OTA finished")
		return nil
	}

	byTournament := map[string][]store.Competitor{}
	for _, c := range tracked {
		byTournament[c.TournamentID] = append(byTournament[c.TournamentID], c)
	}

	tournaments, err := a.tournaments.Get()
	if err != nil {
		return err
	}
	index := map[string]*store.Tournament{}
	for i := range tournaments {
		index[tournaments[i].ID] = &tournaments[i]
	}

	var g errgroup.Group
	for id, comps := range byTournament {
		t, ok := index[id]
		if !ok || t.HTMLResults == nil {
			a.logger.Warn("tracked competitors reference tournament without results page",
				"tournament_id", id, "competitors", len(comps))
			continue
		}
		g.Go(func() error {
			return a.analyzeTournament(ctx, t, comps)
		})
	}
	err = g.Wait()

	a.logger.Info("OTA finished")
	return err
}

// trackedCompetitors loads the competitor snapshot and resolves each
// entry's notification moment. Entries whose user has no preference or a
// null moment are dropped; those are orphaned tracking records.
func (a *Analyzer) trackedCompetitors() ([]store.Competitor, error) {
	comps, err := a.competitors.Get()
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			a.logger.Debug("competitor snapshot not initialized")
			return nil, nil
		}
		return nil, err
	}

	settings, err := a.settings.Get()
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			a.logger.Debug("settings snapshot not initialized")
			return nil, nil
		}
		return nil, err
	}

	moments := map[string]int{}
	for _, st := range settings {
		if st.MatchNotificationMoment != nil {
			moments[st.UserID] = *st.MatchNotificationMoment
		}
	}

	tracked := []store.Competitor{}
	for _, c := range comps {
		moment, ok := moments[c.UserID]
		if !ok {
			a.logger.Warn("tracked competitor without notification moment",
				"user_id", c.UserID, "tournament_id", c.TournamentID,
				"competitor_id", c.CompetitorID)
			continue
		}
		c.Moment = moment
		tracked = append(tracked, c)
	}
	return tracked, nil
}

func (a *Analyzer) analyzeTournament(ctx context.Context, t *store.Tournament, comps []store.Competitor) error {
	base := t.HTMLResults.URL

	resolved := make([]store.Competitor, 0, len(comps))
	for _, c := range comps {
		card, ok := a.scraper.CompetitorCard(ctx, base, c.CompetitorID)
		if !ok {
			a.logger.Debug("competitor card unavailable",
				"tournament_id", t.ID, "competitor_id", c.CompetitorID)
			continue
		}
		c.Name = card.Name
		c.Club = card.Club
		c.Category = card.Category
		resolved = append(resolved, c)
	}
	if len(resolved) == 0 {
		return nil
	}

	board, err := a.scraper.NextMatches(ctx, base)
	if err != nil {
		a.logger.Debug("match board unavailable", "tournament_id", t.ID, "error", err)
		return nil
	}

	list := []notify.MatchNotification{}
	for ti, rounds := range board {
		for round := range rounds {
			match := &rounds[round]
			if match.LName == "" && match.RName == "" {
				continue
			}

			for i := range resolved {
				c := &resolved[i]
				if c.Moment < round {
					continue
				}

				left := sideMatches(c, match.LName, match.LClub, match.Category)
				right := sideMatches(c, match.RName, match.RClub, match.Category)
				if !left && !right {
					continue
				}

				side := notify.SideLeft
				switch {
				case left && right:
					side = notify.SideBoth
				case right:
					side = notify.SideRight
				}

				n := notify.MatchNotification{
					UserID:       c.UserID,
					TournamentID: c.TournamentID,
					CompetitorID: c.CompetitorID,
					Tatami:       ti + 1,
					MatchOrder:   round,
					Category:     match.Category,
					LName:        match.LName,
					LClub:        match.LClub,
					RName:        match.RName,
					RClub:        match.RClub,
					Side:         side,
				}
				if id, ok := t.LiveStreamID(ti + 1); ok {
					n.LiveID = id
				}
				list = append(list, n)
			}
		}
	}

	if len(list) == 0 {
		return nil
	}

	a.logger.Info("Found upcoming matches", "tournament_id", t.ID, "count", len(list))
	return a.sink.Create(ctx, list)
}

// sideMatches tests one side of a bout against a resolved competitor. The
// category check is skipped when the card carried none.
func sideMatches(c *store.Competitor, name, club, category string) bool {
	if !sameText(c.Name, name) || !sameText(c.Club, club) {
		return false
	}
	return c.Category == "" || sameText(c.Category, category)
}
