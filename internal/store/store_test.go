package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --------------------------------------------------------------------------
// Snapshot files
// --------------------------------------------------------------------------

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "things.json")

	require.NoError(t, WriteSnapshot(path, []string{"a", "b"}))

	payload, capturedAt, err := ReadSnapshot[[]string](path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, payload)
	assert.WithinDuration(t, time.Now(), capturedAt, time.Minute)
}

func TestSnapshotNotInitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	_, _, err := ReadSnapshot[[]string](path)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSnapshotReadersNeverSeePartialWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "things.json")
	require.NoError(t, WriteSnapshot(path, []int{0}))

	// Rewrites and reads race freely; every read must land on a complete
	// file, old or new.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 50; i++ {
			assert.NoError(t, WriteSnapshot(path, []int{i}))
		}
	}()

	for {
		payload, _, err := ReadSnapshot[[]int](path)
		require.NoError(t, err)
		require.Len(t, payload, 1)

		select {
		case <-done:
			return
		default:
		}
	}
}

func TestSnapshotEmptyIsNotUninitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	require.NoError(t, WriteSnapshot(path, []string{}))

	payload, _, err := ReadSnapshot[[]string](path)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

// --------------------------------------------------------------------------
// Tournament predicates
// --------------------------------------------------------------------------

func publicTournament() Tournament {
	return Tournament{
		ID:          "t1",
		Name:        map[string]string{"en": "Spring Cup", "pl": "Puchar Wiosny"},
		State:       StatePublic,
		StartDate:   "2026-04-10",
		EndDate:     "2026-04-12",
		HTMLResults: &HTMLResults{URL: "https://example.org/cup/"},
	}
}

func TestIsActiveWindow(t *testing.T) {
	tnt := publicTournament()

	assert.False(t, tnt.IsActive(time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC)), "before start")
	assert.True(t, tnt.IsActive(time.Date(2026, 4, 11, 12, 0, 0, 0, time.UTC)))
	assert.True(t, tnt.IsActive(time.Date(2026, 4, 12, 23, 0, 0, 0, time.UTC)), "grace day counts")
	assert.False(t, tnt.IsActive(time.Date(2026, 4, 13, 1, 0, 0, 0, time.UTC)), "past grace day")
}

func TestIsActiveRequiresPublicAndResults(t *testing.T) {
	during := time.Date(2026, 4, 11, 12, 0, 0, 0, time.UTC)

	tnt := publicTournament()
	tnt.State = StatePrivate
	assert.False(t, tnt.IsActive(during))

	tnt = publicTournament()
	tnt.HTMLResults = nil
	assert.False(t, tnt.IsActive(during))

	tnt = publicTournament()
	tnt.StartDate = "garbage"
	assert.False(t, tnt.IsActive(during))
}

func TestFinishedAndEnded(t *testing.T) {
	tnt := publicTournament() // ends 2026-04-12

	endDay := time.Date(2026, 4, 12, 18, 0, 0, 0, time.UTC)
	assert.True(t, tnt.Ended(endDay))
	assert.False(t, tnt.Finished(endDay), "grace day still running")

	afterGrace := time.Date(2026, 4, 13, 18, 0, 0, 0, time.UTC)
	assert.True(t, tnt.Finished(afterGrace))
}

func TestDisplayNamePrefersEnglish(t *testing.T) {
	tnt := publicTournament()
	assert.Equal(t, "Spring Cup", tnt.DisplayName())

	tnt.Name = map[string]string{"pl": "Puchar Wiosny"}
	assert.Equal(t, "Puchar Wiosny", tnt.DisplayName())

	tnt.Name = nil
	assert.Equal(t, "t1", tnt.DisplayName())
}

func TestLiveStreamIDRequiresUniqueBinding(t *testing.T) {
	tnt := publicTournament()
	tnt.Videos = []VideoItem{
		{Section: &VideoSection{Section: "day", Day: 1}},
		{Stream: &TatamiStream{Video: "tatami", Tatami: 1, ID: "live1"}},
		{Stream: &TatamiStream{Video: "tatami", Tatami: 2, ID: "live2a"}},
		{Stream: &TatamiStream{Video: "tatami", Tatami: 2, ID: "live2b"}},
	}

	id, ok := tnt.LiveStreamID(1)
	require.True(t, ok)
	assert.Equal(t, "live1", id)

	_, ok = tnt.LiveStreamID(2)
	assert.False(t, ok, "ambiguous binding resolves to nothing")

	_, ok = tnt.LiveStreamID(3)
	assert.False(t, ok)
}

// --------------------------------------------------------------------------
// Video sum type
// --------------------------------------------------------------------------

func TestVideoItemDecodeDiscriminatesOnID(t *testing.T) {
	var items []VideoItem
	raw := `[{"video":"tatami","tatami":1,"id":"live1"},{"section":"day","day":2,"name":"Sunday"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	require.Len(t, items, 2)

	require.NotNil(t, items[0].Stream)
	assert.Nil(t, items[0].Section)
	assert.Equal(t, "live1", items[0].Stream.ID)

	require.NotNil(t, items[1].Section)
	assert.Nil(t, items[1].Stream)
	assert.Equal(t, 2, items[1].Section.Day)
}

func TestVideoItemEncodeRejectsEmptyVariant(t *testing.T) {
	_, err := json.Marshal(VideoItem{})
	assert.Error(t, err)
}

// --------------------------------------------------------------------------
// Write-time timestamps
// --------------------------------------------------------------------------

func TestTimestampResolve(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	fixed := FixedTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, fixed.IsServerNow())
	assert.True(t, fixed.Resolve(now).Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	marker := ServerNow()
	assert.True(t, marker.IsServerNow())
	assert.True(t, marker.Resolve(now).Equal(now))
}

func TestCompetitorDocID(t *testing.T) {
	c := Competitor{UserID: "u1", TournamentID: "t1"}
	assert.Equal(t, "u1_t1", c.DocID())

	user, tournament, err := SplitDocID("u1_t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user)
	assert.Equal(t, "t1", tournament)

	// Tournament ids may themselves contain underscores.
	_, tournament, err = SplitDocID("u1_t_2026")
	require.NoError(t, err)
	assert.Equal(t, "t_2026", tournament)

	_, _, err = SplitDocID("justone")
	assert.Error(t, err)
}

// --------------------------------------------------------------------------
// Store Get/refresh plumbing without a database
// --------------------------------------------------------------------------

func TestStoresReturnNotInitializedBeforeRefresh(t *testing.T) {
	dir := t.TempDir()
	logger := discardLogger()

	_, err := NewTournamentStore(nil, dir, logger).Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = NewCompetitorStore(nil, dir, logger).Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = NewSettingsStore(nil, dir, logger).Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestActiveIDs(t *testing.T) {
	dir := t.TempDir()
	active := publicTournament()
	old := publicTournament()
	old.ID = "t0"
	old.StartDate = "2025-05-01"
	old.EndDate = "2025-05-02"

	require.NoError(t, WriteSnapshot(filepath.Join(dir, "tournaments.json"), []Tournament{active, old}))

	s := NewTournamentStore(nil, dir, discardLogger())
	ids, err := s.ActiveIDs(time.Date(2026, 4, 11, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)
}
