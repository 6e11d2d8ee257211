// Package cascade coordinates snapshot refreshes in dependency order and
// keeps the two schedulers in the run state the data calls for.
package cascade

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/store"
)

// Runner is the scheduler lifecycle the coordinator drives.
type Runner interface {
	Start()
	Stop()
	Running() bool
}

// Monitor is a forced-or-windowed job (ATM, PTM).
type Monitor interface {
	Run(ctx context.Context, force bool) error
}

// Coordinator refreshes snapshots in dependency order: tournaments first,
// then competitors and sent notifications scoped to the active-tournament
// set, then user settings derived from the refreshed competitors. After any
// step that can change "does any tournament have trackers" it re-evaluates
// both schedulers.
type Coordinator struct {
	tournaments *store.TournamentStore
	competitors *store.CompetitorStore
	settings    *store.SettingsStore
	sink        *notify.Sink

	main   Runner
	active Runner
	atm    Monitor
	ptm    Monitor

	logger *slog.Logger
	Now    func() time.Time
}

// New wires the coordinator over the stores, sink, monitors and schedulers.
func New(tournaments *store.TournamentStore, competitors *store.CompetitorStore, settings *store.SettingsStore, sink *notify.Sink, main, active Runner, atm, ptm Monitor, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		tournaments: tournaments,
		competitors: competitors,
		settings:    settings,
		sink:        sink,
		main:        main,
		active:      active,
		atm:         atm,
		ptm:         ptm,
		logger:      logger,
		Now:         time.Now,
	}
}

// RefreshAll reloads every snapshot, cascading from the tournament
// collection.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	c.logger.Info("Refreshing all caches")

	if err := c.tournaments.Refresh(ctx); err != nil {
		return err
	}
	return c.refreshDependents(ctx)
}

// refreshDependents re-derives the active-tournament set from the current
// tournament snapshot and reloads everything scoped to it.
func (c *Coordinator) refreshDependents(ctx context.Context) error {
	ids, err := c.tournaments.ActiveIDs(c.Now())
	if err != nil {
		return err
	}
	c.logger.Debug("active tournaments", "count", len(ids))

	if err := c.competitors.Refresh(ctx, ids); err != nil {
		return err
	}
	if err := c.sink.RefreshSent(ctx, ids); err != nil {
		return err
	}

	comps, err := c.competitors.Get()
	if err != nil {
		return err
	}
	if err := c.settings.Refresh(ctx, comps); err != nil {
		return err
	}

	c.EnsureSchedulers()
	return nil
}

// RefreshCompetitors reloads tracked competitors. With a docID it splices
// that single <user>_<tournament> document plus its user's settings;
// otherwise the full active-tournament scope is reloaded.
func (c *Coordinator) RefreshCompetitors(ctx context.Context, docID string) error {
	if docID == "" {
		ids, err := c.tournaments.ActiveIDs(c.Now())
		if err != nil {
			return err
		}
		if err := c.competitors.Refresh(ctx, ids); err != nil {
			return err
		}

		comps, err := c.competitors.Get()
		if err != nil {
			return err
		}
		if err := c.settings.Refresh(ctx, comps); err != nil {
			return err
		}

		c.EnsureSchedulers()
		return nil
	}

	userID, _, err := store.SplitDocID(docID)
	if err != nil {
		return err
	}
	if err := c.competitors.RefreshDoc(ctx, docID); err != nil {
		return err
	}
	if err := c.settings.RefreshUser(ctx, userID); err != nil {
		return err
	}

	c.EnsureSchedulers()
	return nil
}

// RefreshUserSettings reloads settings for one user, or for every user with
// tracked competitors when userID is empty.
func (c *Coordinator) RefreshUserSettings(ctx context.Context, userID string) error {
	if userID != "" {
		return c.settings.RefreshUser(ctx, userID)
	}

	comps, err := c.competitors.Get()
	if err != nil {
		if !errors.Is(err, store.ErrNotInitialized) {
			return err
		}
		comps = nil
	}
	return c.settings.Refresh(ctx, comps)
}

// RefreshNotifications rebuilds the sent-notification snapshot for the
// active tournaments.
func (c *Coordinator) RefreshNotifications(ctx context.Context) error {
	ids, err := c.tournaments.ActiveIDs(c.Now())
	if err != nil {
		return err
	}
	return c.sink.RefreshSent(ctx, ids)
}

// RefreshTimeBased reloads the caches whose scope depends on the calendar
// day: tracked competitors and sent notifications. Run by the main
// scheduler as the day rolls over.
func (c *Coordinator) RefreshTimeBased(ctx context.Context) error {
	c.logger.Info("Refreshing time-based caches")

	ids, err := c.tournaments.ActiveIDs(c.Now())
	if err != nil {
		return err
	}
	if err := c.competitors.Refresh(ctx, ids); err != nil {
		return err
	}
	if err := c.sink.RefreshSent(ctx, ids); err != nil {
		return err
	}

	c.EnsureSchedulers()
	return nil
}

// EnsureSchedulers puts both schedulers in the run state the current
// snapshots call for: the main scheduler always runs, the active scheduler
// runs only while some tournament has tracked competitors.
func (c *Coordinator) EnsureSchedulers() {
	c.main.Start()

	comps, err := c.competitors.Get()
	if err != nil {
		if !errors.Is(err, store.ErrNotInitialized) {
			c.logger.Error("Failed to read competitors for scheduler state", "error", err)
			return
		}
		comps = nil
	}

	if len(comps) > 0 {
		c.active.Start()
	} else {
		c.active.Stop()
	}
}

// MainTick is the main scheduler's job. Every tick runs PTM; the first tick
// of each hour also runs ATM; the first tick after midnight additionally
// refreshes the time-based caches.
func (c *Coordinator) MainTick(ctx context.Context) error {
	now := c.Now()
	var errs []error

	if now.Minute() < 10 {
		if err := c.atm.Run(ctx, false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.ptm.Run(ctx, false); err != nil {
		errs = append(errs, err)
	}
	if now.Hour() == 0 && now.Minute() < 10 {
		if err := c.RefreshTimeBased(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
