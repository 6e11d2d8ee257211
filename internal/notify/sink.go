package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tbialecki/judowatch/internal/store"
)

// wire shapes persisted inside the per-(user,tournament) jsonb documents.
// The 1-based "match" field is kept for clients <= 3.1.5.
type wireNotification struct {
	Read      bool      `json:"read"`
	Type      string    `json:"type"` // upcoming_match | upcoming_match_live
	Data      wireData  `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type wireData struct {
	CompetitorID string `json:"competitor_id"`
	Tatami       int    `json:"tatami"`
	Match        int    `json:"match"`
	MatchOrder   int    `json:"match_order"`
	Category     string `json:"category"`
	LName        string `json:"l_name"`
	LClub        string `json:"l_club"`
	RName        string `json:"r_name"`
	RClub        string `json:"r_club"`
	Side         Side   `json:"side"`
	LiveID       string `json:"live_id,omitempty"`
}

// Sink persists match notifications and keeps the "already sent" snapshot
// that bounds de-duplication to the notifications last submitted per
// tournament. The mutex serializes snapshot rewrites: the analyzer submits
// from one goroutine per tournament, and each Create rebuilds the shared
// snapshot from its own read.
type Sink struct {
	pool   *pgxpool.Pool
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewSink creates a Sink writing its sent snapshot under dir.
func NewSink(pool *pgxpool.Pool, dir string, logger *slog.Logger) *Sink {
	return &Sink{
		pool:   pool,
		path:   filepath.Join(dir, "notifications.json"),
		logger: logger,
		now:    time.Now,
	}
}

// Sent returns the last materialized sent-notification snapshot.
func (s *Sink) Sent() ([]MatchNotification, error) {
	list, _, err := store.ReadSnapshot[[]MatchNotification](s.path)
	return list, err
}

// Create partitions the submitted notifications into new and
// already-similar ones, persists the new ones merged into their
// per-(user,tournament) documents, and replaces the sent snapshot for every
// tournament touched by this call with exactly the submitted set.
func (s *Sink) Create(ctx context.Context, list []MatchNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent, err := s.Sent()
	if err != nil {
		if !errors.Is(err, store.ErrNotInitialized) {
			return err
		}
		s.logger.Warn("sent notifications snapshot missing, starting empty")
		sent = []MatchNotification{}
	}

	// Multiset matching: each prior notification absorbs at most one
	// submission, so several similar submissions stay supported.
	remaining := slices.Clone(sent)
	fresh := []MatchNotification{}
	for i := range list {
		idx := -1
		for j := range remaining {
			if list[i].Similar(&remaining[j]) {
				idx = j
				break
			}
		}
		if idx >= 0 {
			remaining = slices.Delete(remaining, idx, idx+1)
			continue
		}
		fresh = append(fresh, list[i])
	}

	if len(fresh) > 0 {
		if err := s.persist(ctx, fresh); err != nil {
			return err
		}
	}

	// Rebuild the sent snapshot: keep other tournaments, replace every
	// touched tournament with exactly what was just submitted.
	touched := map[string]bool{}
	for i := range list {
		touched[list[i].TournamentID] = true
	}
	cache := []MatchNotification{}
	for i := range sent {
		if !touched[sent[i].TournamentID] {
			cache = append(cache, sent[i])
		}
	}
	cache = append(cache, list...)

	s.logger.Debug("notification dedup",
		"already_sent", len(sent), "new", len(fresh), "cached", len(cache))

	if err := store.WriteSnapshot(s.path, cache); err != nil {
		return err
	}

	if len(fresh) > 0 {
		s.logger.Info("Sent match notifications", "count", len(fresh))
	}
	return nil
}

// persist merges notifications into their documents, one upsert per
// (user,tournament) so concurrent tournaments never clobber each other.
func (s *Sink) persist(ctx context.Context, fresh []MatchNotification) error {
	groups := map[string][]MatchNotification{}
	for i := range fresh {
		key := fresh[i].UserID + "_" + fresh[i].TournamentID
		groups[key] = append(groups[key], fresh[i])
	}

	now := s.now().UTC()
	for docID, group := range groups {
		doc := map[string]wireNotification{}
		for i := range group {
			doc[randomID()] = toWire(&group[i], now)
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal notifications doc %s: %w", docID, err)
		}

		_, err = s.pool.Exec(ctx, "merge_notifications",
			docID, group[0].UserID, group[0].TournamentID, payload)
		if err != nil {
			return fmt.Errorf("merge notifications doc %s: %w", docID, err)
		}
	}
	return nil
}

// RefreshSent rebuilds the sent snapshot from the persisted documents of
// the given tournaments. An empty id set writes an empty snapshot.
func (s *Sink) RefreshSent(ctx context.Context, tournamentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := []MatchNotification{}

	if len(tournamentIDs) > 0 {
		rows, err := s.pool.Query(ctx, "notifications_by_tournaments", tournamentIDs)
		if err != nil {
			return fmt.Errorf("query notifications: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				userID, tournamentID string
				raw                  []byte
			)
			if err := rows.Scan(&userID, &tournamentID, &raw); err != nil {
				return fmt.Errorf("scan notifications doc: %w", err)
			}

			var doc map[string]wireNotification
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("notifications doc %s_%s: %w", userID, tournamentID, err)
			}
			for _, w := range doc {
				list = append(list, fromWire(&w, userID, tournamentID))
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate notifications: %w", err)
		}
	} else {
		s.logger.Debug("no tournaments for notifications")
	}

	return store.WriteSnapshot(s.path, list)
}

func toWire(n *MatchNotification, now time.Time) wireNotification {
	typ := "upcoming_match"
	if n.LiveID != "" {
		typ = "upcoming_match_live"
	}
	return wireNotification{
		Read: false,
		Type: typ,
		Data: wireData{
			CompetitorID: n.CompetitorID,
			Tatami:       n.Tatami,
			Match:        n.MatchOrder + 1,
			MatchOrder:   n.MatchOrder,
			Category:     n.Category,
			LName:        n.LName,
			LClub:        n.LClub,
			RName:        n.RName,
			RClub:        n.RClub,
			Side:         n.Side,
			LiveID:       n.LiveID,
		},
		CreatedAt: store.ServerNow().Resolve(now),
		UpdatedAt: store.ServerNow().Resolve(now),
	}
}

func fromWire(w *wireNotification, userID, tournamentID string) MatchNotification {
	return MatchNotification{
		UserID:       userID,
		TournamentID: tournamentID,
		CompetitorID: w.Data.CompetitorID,
		Tatami:       w.Data.Tatami,
		MatchOrder:   w.Data.MatchOrder,
		Category:     w.Data.Category,
		LName:        w.Data.LName,
		LClub:        w.Data.LClub,
		RName:        w.Data.RName,
		RClub:        w.Data.RClub,
		Side:         w.Data.Side,
		LiveID:       w.Data.LiveID,
		Timestamp:    w.CreatedAt,
	}
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomID() string {
	b := make([]byte, 13)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
