package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/store"
)

func TestProbeWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"saturday morning", time.Date(2026, 4, 18, 10, 0, 0, 0, time.UTC), true},
		{"saturday afternoon edge", time.Date(2026, 4, 18, 14, 59, 0, 0, time.UTC), true},
		{"saturday evening first run", time.Date(2026, 4, 18, 16, 5, 0, 0, time.UTC), true},
		{"saturday evening later run", time.Date(2026, 4, 18, 16, 30, 0, 0, time.UTC), false},
		{"saturday night", time.Date(2026, 4, 18, 23, 30, 0, 0, time.UTC), false},
		{"sunday morning", time.Date(2026, 4, 19, 7, 0, 0, 0, time.UTC), true},
		{"weekday daytime", time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC), false},
		{"weekday midnight first run", time.Date(2026, 4, 14, 0, 5, 0, 0, time.UTC), true},
		{"weekday midnight later run", time.Date(2026, 4, 14, 0, 30, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inProbeWindow(tc.at))
		})
	}
}

func newTestPTM(t *testing.T, urls []string, tournaments []store.Tournament, prober *fakeProber, now time.Time) *PTM {
	t.Helper()
	dir := t.TempDir()
	admin := notify.NewAdminNotifier("", dir, 24*time.Hour, discardLogger())
	m := NewPTM(tournamentStore(t, dir, tournaments), prober, admin, urls, 24*time.Hour, discardLogger())
	m.Now = func() time.Time { return now }
	return m
}

func TestPTMSkipsBoundURLs(t *testing.T) {
	bound := store.Tournament{
		ID:          "t1",
		State:       store.StatePublic,
		StartDate:   "2026-04-10",
		EndDate:     "2026-04-12",
		HTMLResults: &store.HTMLResults{URL: "https://example.org/bound/"},
	}

	prober := &fakeProber{available: false}
	m := newTestPTM(t,
		[]string{"https://example.org/bound/", "https://example.org/candidate/"},
		[]store.Tournament{bound}, prober,
		time.Date(2026, 4, 18, 10, 0, 0, 0, time.UTC)) // Saturday morning

	require.NoError(t, m.Run(context.Background(), false))
	assert.Equal(t, []string{"https://example.org/candidate/"}, prober.probed)
}

func TestPTMOutsideWindowDoesNothing(t *testing.T) {
	prober := &fakeProber{available: true}
	m := newTestPTM(t, []string{"https://example.org/candidate/"}, nil, prober,
		time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)) // Tuesday daytime

	require.NoError(t, m.Run(context.Background(), false))
	assert.Equal(t, 0, prober.probeCount())

	require.NoError(t, m.Run(context.Background(), true))
	assert.Equal(t, 1, prober.probeCount(), "forced run ignores the window")
}

func TestPTMAlertedSetSuppressesRepeats(t *testing.T) {
	now := time.Date(2026, 4, 18, 10, 0, 0, 0, time.UTC)
	prober := &fakeProber{available: true}
	m := newTestPTM(t, []string{"https://example.org/candidate/"}, nil, prober, now)

	assert.True(t, m.markAlerted("https://example.org/candidate/", now))
	assert.False(t, m.markAlerted("https://example.org/candidate/", now.Add(time.Hour)))

	// Beyond the retention window the entry is pruned and may fire again.
	assert.True(t, m.markAlerted("https://example.org/candidate/", now.Add(25*time.Hour)))
}
