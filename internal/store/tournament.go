package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TournamentState is the lifecycle state of a tournament.
type TournamentState string

const (
	StatePrivate  TournamentState = "private"
	StatePublic   TournamentState = "public"
	StateOutdated TournamentState = "outdated"
)

const dateLayout = "2006-01-02"

// HTMLResults points at the JudoShiai export for a tournament: the base URL
// probed by the monitors plus the human-visible URL.
type HTMLResults struct {
	URL        string `json:"url"`
	VisibleURL string `json:"visible_url"`
}

// Tournament is the ground-truth tournament record. The monitors only read
// it; curation happens elsewhere.
type Tournament struct {
	ID          string            `json:"id"`
	Locales     []string          `json:"locales"`
	Timezone    string            `json:"timezone"`
	Name        map[string]string `json:"name"`
	State       TournamentState   `json:"state"`
	StartDate   string            `json:"start_date"` // YYYY-MM-DD
	EndDate     string            `json:"end_date"`   // YYYY-MM-DD, grace day excluded
	HTMLResults *HTMLResults      `json:"html_results,omitempty"`
	Videos      []VideoItem       `json:"videos,omitempty"`
	CreatedAt   Timestamp         `json:"created_at"`
	UpdatedAt   Timestamp         `json:"updated_at"`
}

// DisplayName returns the English name, falling back to any locale.
func (t *Tournament) DisplayName() string {
	if name, ok := t.Name["en"]; ok {
		return name
	}
	for _, name := range t.Name {
		return name
	}
	return t.ID
}

// End returns the end date as an instant; the zero time when unparseable.
func (t *Tournament) End() time.Time {
	end, err := time.Parse(dateLayout, t.EndDate)
	if err != nil {
		return time.Time{}
	}
	return end
}

// Finished reports whether the tournament ended more than the one-day grace
// period ago.
func (t *Tournament) Finished(now time.Time) bool {
	end := t.End()
	return !end.IsZero() && end.AddDate(0, 0, 1).Before(now)
}

// Ended reports whether the tournament's end date has passed, without the
// grace day. Used by forced monitor runs.
func (t *Tournament) Ended(now time.Time) bool {
	end := t.End()
	return !end.IsZero() && end.Before(now)
}

// IsActive reports whether the tournament is public, has a results page,
// and now falls strictly between start_date and end_date + 1 day.
func (t *Tournament) IsActive(now time.Time) bool {
	if t.State != StatePublic || t.HTMLResults == nil {
		return false
	}

	start, err := time.Parse(dateLayout, t.StartDate)
	if err != nil {
		return false
	}
	end := t.End()
	if end.IsZero() {
		return false
	}

	return start.Before(now) && end.AddDate(0, 0, 1).After(now)
}

// LiveStreamID resolves the live-stream id serving a 1-based tatami number.
// Ambiguous bindings (zero or multiple streams) resolve to nothing.
func (t *Tournament) LiveStreamID(tatami int) (string, bool) {
	var found []string
	for _, item := range t.Videos {
		if item.Stream != nil && item.Stream.Tatami == tatami {
			found = append(found, item.Stream.ID)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// --------------------------------------------------------------------------
// Snapshot store
// --------------------------------------------------------------------------

// TournamentStore materializes the public tournament collection.
type TournamentStore struct {
	pool   *pgxpool.Pool
	path   string
	logger *slog.Logger
}

// NewTournamentStore creates the store writing its snapshot under dir.
func NewTournamentStore(pool *pgxpool.Pool, dir string, logger *slog.Logger) *TournamentStore {
	return &TournamentStore{
		pool:   pool,
		path:   filepath.Join(dir, "tournaments.json"),
		logger: logger,
	}
}

// Refresh reloads all public tournaments from the database and rewrites the
// snapshot.
func (s *TournamentStore) Refresh(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, "public_tournaments")
	if err != nil {
		return fmt.Errorf("query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []Tournament{}
	for rows.Next() {
		var (
			t                    Tournament
			locales, name        []byte
			htmlResults, videos  []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&t.ID, &locales, &t.Timezone, &name, &t.State,
			&t.StartDate, &t.EndDate, &htmlResults, &videos, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan tournament: %w", err)
		}

		if err := json.Unmarshal(locales, &t.Locales); err != nil {
			return fmt.Errorf("tournament %s locales: %w", t.ID, err)
		}
		if err := json.Unmarshal(name, &t.Name); err != nil {
			return fmt.Errorf("tournament %s name: %w", t.ID, err)
		}
		if len(htmlResults) > 0 {
			if err := json.Unmarshal(htmlResults, &t.HTMLResults); err != nil {
				return fmt.Errorf("tournament %s html_results: %w", t.ID, err)
			}
		}
		if len(videos) > 0 {
			if err := json.Unmarshal(videos, &t.Videos); err != nil {
				return fmt.Errorf("tournament %s videos: %w", t.ID, err)
			}
		}
		t.CreatedAt = FixedTimestamp(createdAt)
		t.UpdatedAt = FixedTimestamp(updatedAt)

		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tournaments: %w", err)
	}

	return WriteSnapshot(s.path, tournaments)
}

// Get returns the last refreshed tournament snapshot.
func (s *TournamentStore) Get() ([]Tournament, error) {
	tournaments, _, err := ReadSnapshot[[]Tournament](s.path)
	return tournaments, err
}

// ActiveIDs returns the ids of tournaments active at now.
func (s *TournamentStore) ActiveIDs(now time.Time) ([]string, error) {
	tournaments, err := s.Get()
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for i := range tournaments {
		if tournaments[i].IsActive(now) {
			ids = append(ids, tournaments[i].ID)
		}
	}
	return ids, nil
}
