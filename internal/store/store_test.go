package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "festwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testGame(appid int64) *Game {
	return &Game{
		AppID:              appid,
		Name:               "Alpha Demo",
		Genres:             "Indie, Action",
		Tags:               "Roguelike",
		Categories:         "Single-player",
		Developers:         "Alpha Studio",
		Publishers:         "Alpha Publishing",
		ReleaseDate:        "12 Jun, 2026",
		SupportedLanguages: "English",
		PriceInitial:       999,
		PriceFinal:         499,
		PriceCurrency:      "USD",
	}
}

func TestUpsertGamePreservesFirstSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertGame(ctx, testGame(100)))

	first, err := s.GetGame(ctx, 100)
	require.NoError(t, err)
	require.False(t, first.FirstSeen.IsZero())
	require.False(t, first.FirstSeen.After(first.LastUpdated))

	time.Sleep(10 * time.Millisecond)

	updated := testGame(100)
	updated.Name = "Alpha"
	updated.PriceFinal = 999
	updated.HasAIDisclosure = true
	require.NoError(t, s.UpsertGame(ctx, updated))

	second, err := s.GetGame(ctx, 100)
	require.NoError(t, err)

	assert.Equal(t, first.FirstSeen, second.FirstSeen, "first_seen must survive the second upsert")
	assert.Equal(t, "Alpha", second.Name)
	assert.Equal(t, int64(999), second.PriceFinal)
	assert.True(t, second.HasAIDisclosure)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))

	games, err := s.ListGames(ctx, ListOpts{})
	require.NoError(t, err)
	assert.Len(t, games, 1, "upsert must never create a second row per appid")
}

func TestAppendSnapshotIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertGame(ctx, testGame(100)))

	recs := int64(42)
	require.NoError(t, s.AppendSnapshot(ctx, 100, Metrics{Recommendations: &recs}, time.Time{}))

	snaps, err := s.ListSnapshots(ctx, 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	firstRow := snaps[0]
	require.NotNil(t, firstRow.Recommendations)
	assert.Equal(t, int64(42), *firstRow.Recommendations)
	assert.Nil(t, firstRow.PlayerCount, "absent metric must stay NULL, not zero")
	assert.False(t, firstRow.CollectedAt.IsZero())

	players := int64(7)
	recs2 := int64(50)
	require.NoError(t, s.AppendSnapshot(ctx, 100, Metrics{Recommendations: &recs2, PlayerCount: &players}, time.Time{}))
	require.NoError(t, s.AppendSnapshot(ctx, 100, Metrics{}, time.Time{}))

	snaps, err = s.ListSnapshots(ctx, 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	// The earliest row is unchanged by later appends.
	assert.Equal(t, firstRow.ID, snaps[0].ID)
	assert.Equal(t, int64(42), *snaps[0].Recommendations)
	assert.Nil(t, snaps[0].PlayerCount)

	require.NotNil(t, snaps[1].PlayerCount)
	assert.Equal(t, int64(7), *snaps[1].PlayerCount)
	assert.Nil(t, snaps[2].Recommendations)
}

func TestAdditiveMigrationPreservesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Build a database in the original shape, before the review and
	// player-count columns existed.
	legacy, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE games (
		    appid               INTEGER PRIMARY KEY,
		    name                TEXT NOT NULL DEFAULT '',
		    genres              TEXT NOT NULL DEFAULT '',
		    tags                TEXT NOT NULL DEFAULT '',
		    categories          TEXT NOT NULL DEFAULT '',
		    has_ai_disclosure   BOOLEAN NOT NULL DEFAULT 0,
		    developers          TEXT NOT NULL DEFAULT '',
		    publishers          TEXT NOT NULL DEFAULT '',
		    release_date        TEXT NOT NULL DEFAULT '',
		    supported_languages TEXT NOT NULL DEFAULT '',
		    price_initial       INTEGER NOT NULL DEFAULT 0,
		    price_final         INTEGER NOT NULL DEFAULT 0,
		    price_currency      TEXT NOT NULL DEFAULT '',
		    first_seen          DATETIME NOT NULL,
		    last_updated        DATETIME NOT NULL
		);
		CREATE TABLE snapshots (
		    id              INTEGER PRIMARY KEY AUTOINCREMENT,
		    appid           INTEGER NOT NULL,
		    recommendations INTEGER,
		    collected_at    DATETIME NOT NULL
		);`)
	require.NoError(t, err)
	collected := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	_, err = legacy.Exec("INSERT INTO snapshots (appid, recommendations, collected_at) VALUES (?, ?, ?)",
		100, 42, collected)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	// Opening the store runs EnsureSchema, which must add the missing
	// columns without touching existing data.
	s, err := New(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// Idempotent on a second call.
	require.NoError(t, s.EnsureSchema(ctx))

	rows, err := s.db.Queryx("PRAGMA table_info(snapshots)")
	require.NoError(t, err)
	cols := make(map[string]bool)
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt any
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		cols[name] = true
	}
	require.NoError(t, rows.Close())
	for _, want := range []string{"review_score", "review_score_desc", "positive", "negative", "total_reviews", "player_count"} {
		assert.True(t, cols[want], "column %s should have been added", want)
	}

	snaps, err := s.ListSnapshots(ctx, 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].Recommendations)
	assert.Equal(t, int64(42), *snaps[0].Recommendations)
	assert.True(t, snaps[0].CollectedAt.Equal(collected))
	assert.Nil(t, snaps[0].ReviewScore, "migrated column reads NULL for old rows")
	assert.Nil(t, snaps[0].PlayerCount)

	// New columns are writable after migration.
	players := int64(12)
	require.NoError(t, s.AppendSnapshot(ctx, 100, Metrics{PlayerCount: &players}, time.Time{}))
	snaps, err = s.ListSnapshots(ctx, 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.NotNil(t, snaps[1].PlayerCount)
	assert.Equal(t, int64(12), *snaps[1].PlayerCount)
}

func TestNewEnablesWAL(t *testing.T) {
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)
}

func TestOpenReadOnlyRefusesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "festwatch.db")
	ctx := context.Background()

	w, err := New(path)
	require.NoError(t, err)
	require.NoError(t, w.UpsertGame(ctx, testGame(1)))
	require.NoError(t, w.Close())

	r, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()

	g, err := r.GetGame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Demo", g.Name)

	assert.Error(t, r.UpsertGame(ctx, testGame(2)), "read-only handle must refuse writes")
	assert.Error(t, r.AppendSnapshot(ctx, 1, Metrics{}, time.Time{}))
}

func TestRecordCollectionWritesBothRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := int64(5)
	require.NoError(t, s.RecordCollection(ctx, testGame(300), Metrics{Recommendations: &recs}))

	g, err := s.GetGame(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Demo", g.Name)

	snaps, err := s.ListSnapshots(ctx, 300, time.Time{})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	paid := testGame(1)
	free := testGame(2)
	free.PriceInitial = 0
	free.PriceFinal = 0
	free.HasAIDisclosure = true
	require.NoError(t, s.UpsertGame(ctx, paid))
	require.NoError(t, s.UpsertGame(ctx, free))
	require.NoError(t, s.AppendSnapshot(ctx, 1, Metrics{}, time.Time{}))

	st, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalGames)
	assert.Equal(t, 1, st.AIDisclosed)
	assert.Equal(t, 1, st.FreeToPlay)
	require.NotNil(t, st.LastCollected)
}
