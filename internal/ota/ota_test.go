package ota

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbialecki/judowatch/internal/config"
	"github.com/tbialecki/judowatch/internal/fetch"
	"github.com/tbialecki/judowatch/internal/notify"
	"github.com/tbialecki/judowatch/internal/shiai"
	"github.com/tbialecki/judowatch/internal/store"
)

type captureSink struct {
	calls [][]notify.MatchNotification
}

func (c *captureSink) Create(_ context.Context, list []notify.MatchNotification) error {
	c.calls = append(c.calls, list)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// boardHTML builds a one-tatami board with Jan Kowalski in round 0 and
// round 2 and empty cells elsewhere.
func boardHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="nextmatches"><tbody>`)
	for round := 0; round < 10; round++ {
		switch round {
		case 0:
			b.WriteString(`<tr><td class="cdcat1">U18 -73kg</td>` +
				`<td class="cdl1">Jan Kowalski<br>KS Judo</td>` +
				`<td class="cdr1">Piotr Nowak<br>AZS</td></tr>`)
		case 2:
			b.WriteString(`<tr><td class="cdcat1">U18 -73kg</td>` +
				`<td class="cdl1">Jan Kowalski<br>KS Judo</td>` +
				`<td class="cdr1">Adam Wilk<br>UKS</td></tr>`)
		default:
			fmt.Fprintf(&b, `<tr><td class="cdcat%d"></td><td class="cdl%d"></td><td class="cdr%d"></td></tr>`,
				round%2+1, round%2+1, round%2+1)
		}
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func newTestAnalyzer(t *testing.T, baseURL string, moment int, sink NotificationSink) *Analyzer {
	t.Helper()
	dir := t.TempDir()
	logger := discardLogger()

	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "tournaments.json"), []store.Tournament{{
		ID:          "t1",
		Name:        map[string]string{"en": "Spring Cup"},
		State:       store.StatePublic,
		StartDate:   "2026-04-01",
		EndDate:     "2026-04-02",
		HTMLResults: &store.HTMLResults{URL: baseURL},
		Videos: []store.VideoItem{
			{Stream: &store.TatamiStream{Video: "tatami", Tatami: 1, ID: "live123"}},
		},
	}}))
	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "your_competitors.json"), []store.Competitor{
		{UserID: "u1", TournamentID: "t1", CompetitorID: "7"},
	}))
	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "user_settings.json"), []store.UserSettings{
		{UserID: "u1", MatchNotificationMoment: &moment},
	}))

	client := fetch.NewClient(&config.Config{FetchTimeout: 5 * time.Second}, logger)
	scraper := shiai.NewScraper(client, time.Hour, logger)

	return NewAnalyzer(
		store.NewTournamentStore(nil, dir, logger),
		store.NewCompetitorStore(nil, dir, logger),
		store.NewSettingsStore(nil, dir, logger),
		scraper, sink, logger)
}

func newBoardServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/nextmatches.html", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, boardHTML())
	})
	mux.HandleFunc("/c-7.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Join([]string{
			"Jan", "Kowalski", "", "", "KS Judo", "", "", "U18 -73kg",
		}, "\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzerMatchesTrackedCompetitor(t *testing.T) {
	srv := newBoardServer(t)
	sink := &captureSink{}
	a := newTestAnalyzer(t, srv.URL+"/", 0, sink)

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0], 1, "moment 0 gates out the round 2 bout")

	n := sink.calls[0][0]
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, "t1", n.TournamentID)
	assert.Equal(t, "7", n.CompetitorID)
	assert.Equal(t, 1, n.Tatami)
	assert.Equal(t, 0, n.MatchOrder)
	assert.Equal(t, notify.SideLeft, n.Side)
	assert.Equal(t, "U18 -73kg", n.Category)
	assert.Equal(t, "Jan Kowalski", n.LName)
	assert.Equal(t, "KS Judo", n.LClub)
	assert.Equal(t, "Piotr Nowak", n.RName)
	assert.Equal(t, "live123", n.LiveID)
}

func TestAnalyzerMomentExtendsHorizon(t *testing.T) {
	srv := newBoardServer(t)
	sink := &captureSink{}
	a := newTestAnalyzer(t, srv.URL+"/", 2, sink)

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0], 2)
	assert.Equal(t, 0, sink.calls[0][0].MatchOrder)
	assert.Equal(t, 2, sink.calls[0][1].MatchOrder)
}

func TestAnalyzerRepeatRunsResubmitForSinkDedup(t *testing.T) {
	srv := newBoardServer(t)
	sink := &captureSink{}
	a := newTestAnalyzer(t, srv.URL+"/", 0, sink)

	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Run(context.Background()))

	// The analyzer itself does not de-duplicate; it resubmits and the sink
	// collapses repeats.
	require.Len(t, sink.calls, 2)
	assert.True(t, sink.calls[0][0].Similar(&sink.calls[1][0]))
}

func TestAnalyzerBoardFailureYieldsNoNotifications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/c-7.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Join([]string{
			"Jan", "Kowalski", "", "", "KS Judo", "", "", "U18 -73kg",
		}, "\n"))
	})
	mux.HandleFunc("/nextmatches.html", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sink := &captureSink{}
	a := newTestAnalyzer(t, srv.URL+"/", 0, sink)

	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, sink.calls)
}

func TestAnalyzerDropsCompetitorsWithoutMoment(t *testing.T) {
	dir := t.TempDir()
	logger := discardLogger()

	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "tournaments.json"), []store.Tournament{}))
	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "your_competitors.json"), []store.Competitor{
		{UserID: "u1", TournamentID: "t1", CompetitorID: "7"},
	}))
	require.NoError(t, store.WriteSnapshot(filepath.Join(dir, "user_settings.json"), []store.UserSettings{
		{UserID: "u1", MatchNotificationMoment: nil},
	}))

	sink := &captureSink{}
	a := NewAnalyzer(
		store.NewTournamentStore(nil, dir, logger),
		store.NewCompetitorStore(nil, dir, logger),
		store.NewSettingsStore(nil, dir, logger),
		nil, sink, logger)

	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, sink.calls, "no network work for orphaned tracking records")
}
