package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Competitor ties a user to one competitor at one tournament. Name, club,
// category and the notification moment are resolved per OTA run, never
// persisted at rest.
type Competitor struct {
	UserID       string `json:"user_id"`
	TournamentID string `json:"tournament_id"`
	CompetitorID string `json:"competitor_id"`

	Name     string `json:"-"`
	Club     string `json:"-"`
	Category string `json:"-"`
	Moment   int    `json:"-"`
}

// DocID returns the <user>_<tournament> document key.
func (c *Competitor) DocID() string {
	return c.UserID + "_" + c.TournamentID
}

// SplitDocID splits a <user>_<tournament> key into its parts.
func SplitDocID(docID string) (userID, tournamentID string, err error) {
	parts := strings.SplitN(docID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed competitor doc id %q", docID)
	}
	return parts[0], parts[1], nil
}

// CompetitorStore materializes tracked competitors for active tournaments.
type CompetitorStore struct {
	pool   *pgxpool.Pool
	path   string
	logger *slog.Logger
}

// NewCompetitorStore creates the store writing its snapshot under dir.
func NewCompetitorStore(pool *pgxpool.Pool, dir string, logger *slog.Logger) *CompetitorStore {
	return &CompetitorStore{
		pool:   pool,
		path:   filepath.Join(dir, "your_competitors.json"),
		logger: logger,
	}
}

// Refresh reloads tracked competitors for the given tournaments and
// rewrites the snapshot. An empty id set writes an empty snapshot without
// touching the database.
func (s *CompetitorStore) Refresh(ctx context.Context, tournamentIDs []string) error {
	list := []Competitor{}

	if len(tournamentIDs) > 0 {
		var err error
		list, err = s.queryDocs(ctx, "competitors_by_tournaments", tournamentIDs)
		if err != nil {
			return err
		}
	} else {
		s.logger.Debug("no active tournaments for competitors")
	}

	return WriteSnapshot(s.path, list)
}

// RefreshDoc reloads a single <user>_<tournament> document and splices it
// into the existing snapshot, leaving other documents untouched.
func (s *CompetitorStore) RefreshDoc(ctx context.Context, docID string) error {
	userID, tournamentID, err := SplitDocID(docID)
	if err != nil {
		return err
	}

	current, err := s.Get()
	if err != nil {
		if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		current = []Competitor{}
	}

	// Drop the old slice for this document.
	list := make([]Competitor, 0, len(current))
	for _, c := range current {
		if c.UserID == userID && c.TournamentID == tournamentID {
			continue
		}
		list = append(list, c)
	}

	fresh, err := s.queryDocs(ctx, "competitors_doc", docID)
	if err != nil {
		return err
	}
	list = append(list, fresh...)

	return WriteSnapshot(s.path, list)
}

// Get returns the last refreshed competitor snapshot.
func (s *CompetitorStore) Get() ([]Competitor, error) {
	list, _, err := ReadSnapshot[[]Competitor](s.path)
	return list, err
}

// queryDocs runs a prepared statement returning competitor documents and
// flattens their entries.
func (s *CompetitorStore) queryDocs(ctx context.Context, stmt string, arg any) ([]Competitor, error) {
	rows, err := s.pool.Query(ctx, stmt, arg)
	if err != nil {
		return nil, fmt.Errorf("query competitors: %w", err)
	}
	defer rows.Close()

	list := []Competitor{}
	for rows.Next() {
		var (
			docID, userID, tournamentID string
			entries                     []byte
		)
		if err := rows.Scan(&docID, &userID, &tournamentID, &entries); err != nil {
			return nil, fmt.Errorf("scan competitor doc: %w", err)
		}

		var comps []Competitor
		if err := json.Unmarshal(entries, &comps); err != nil {
			return nil, fmt.Errorf("competitor doc %s entries: %w", docID, err)
		}
		for i := range comps {
			comps[i].UserID = userID
			comps[i].TournamentID = tournamentID
		}
		list = append(list, comps...)
	}
	return list, rows.Err()
}
