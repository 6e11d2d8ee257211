package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserSettings holds a user's notification preference. A nil moment means
// the user opted out of match notifications.
type UserSettings struct {
	UserID                  string `json:"user_id"`
	MatchNotificationMoment *int   `json:"match_notification_moment"`
}

// SettingsStore materializes settings for users with tracked competitors.
type SettingsStore struct {
	pool   *pgxpool.Pool
	path   string
	logger *slog.Logger
}

// NewSettingsStore creates the store writing its snapshot under dir.
func NewSettingsStore(pool *pgxpool.Pool, dir string, logger *slog.Logger) *SettingsStore {
	return &SettingsStore{
		pool:   pool,
		path:   filepath.Join(dir, "user_settings.json"),
		logger: logger,
	}
}

// Refresh reloads settings for every user appearing in comps and rewrites
// the snapshot.
func (s *SettingsStore) Refresh(ctx context.Context, comps []Competitor) error {
	seen := map[string]bool{}
	userIDs := []string{}
	for _, c := range comps {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			userIDs = append(userIDs, c.UserID)
		}
	}

	list := []UserSettings{}
	if len(userIDs) > 0 {
		var err error
		list, err = s.query(ctx, userIDs)
		if err != nil {
			return err
		}
	} else {
		s.logger.Debug("no users to get settings for")
	}

	return WriteSnapshot(s.path, list)
}

// RefreshUser reloads one user's settings and splices them into the
// existing snapshot.
func (s *SettingsStore) RefreshUser(ctx context.Context, userID string) error {
	current, err := s.Get()
	if err != nil {
		if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		current = []UserSettings{}
	}

	list := make([]UserSettings, 0, len(current)+1)
	for _, st := range current {
		if st.UserID != userID {
			list = append(list, st)
		}
	}

	fresh, err := s.query(ctx, []string{userID})
	if err != nil {
		return err
	}
	list = append(list, fresh...)

	return WriteSnapshot(s.path, list)
}

// Get returns the last refreshed settings snapshot.
func (s *SettingsStore) Get() ([]UserSettings, error) {
	list, _, err := ReadSnapshot[[]UserSettings](s.path)
	return list, err
}

func (s *SettingsStore) query(ctx context.Context, userIDs []string) ([]UserSettings, error) {
	rows, err := s.pool.Query(ctx, "user_settings_by_ids", userIDs)
	if err != nil {
		return nil, fmt.Errorf("query user settings: %w", err)
	}
	defer rows.Close()

	list := []UserSettings{}
	for rows.Next() {
		var st UserSettings
		if err := rows.Scan(&st.UserID, &st.MatchNotificationMoment); err != nil {
			return nil, fmt.Errorf("scan user settings: %w", err)
		}
		list = append(list, st)
	}
	return list, rows.Err()
}
