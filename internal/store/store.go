package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Game is the current-state row for one catalog entry. Exactly one row
// exists per appid; first_seen is set once and never overwritten.
type Game struct {
	AppID              int64     `db:"appid" json:"appid"`
	Name               string    `db:"name" json:"name"`
	Genres             string    `db:"genres" json:"genres"`
	Tags               string    `db:"tags" json:"tags"`
	Categories         string    `db:"categories" json:"categories"`
	HasAIDisclosure    bool      `db:"has_ai_disclosure" json:"has_ai_disclosure"`
	Developers         string    `db:"developers" json:"developers"`
	Publishers         string    `db:"publishers" json:"publishers"`
	ReleaseDate        string    `db:"release_date" json:"release_date"`
	SupportedLanguages string    `db:"supported_languages" json:"supported_languages"`
	PriceInitial       int64     `db:"price_initial" json:"price_initial"`
	PriceFinal         int64     `db:"price_final" json:"price_final"`
	PriceCurrency      string    `db:"price_currency" json:"price_currency"`
	FirstSeen          time.Time `db:"first_seen" json:"first_seen"`
	LastUpdated        time.Time `db:"last_updated" json:"last_updated"`
}

// Metrics is the volatile per-collection measurement set. Every field is
// nullable: an absent value is recorded as NULL, never coerced to zero.
type Metrics struct {
	Recommendations *int64  `db:"recommendations" json:"recommendations"`
	ReviewScore     *int64  `db:"review_score" json:"review_score"`
	ReviewScoreDesc *string `db:"review_score_desc" json:"review_score_desc"`
	Positive        *int64  `db:"positive" json:"positive"`
	Negative        *int64  `db:"negative" json:"negative"`
	TotalReviews    *int64  `db:"total_reviews" json:"total_reviews"`
	PlayerCount     *int64  `db:"player_count" json:"player_count"`
}

// Snapshot is one append-only time-series row for a game.
type Snapshot struct {
	ID    int64 `db:"id" json:"id"`
	AppID int64 `db:"appid" json:"appid"`
	Metrics
	CollectedAt time.Time `db:"collected_at" json:"collected_at"`
}

// Stats are the aggregate counters exposed to external readers.
type Stats struct {
	TotalGames    int        `json:"total_games"`
	AIDisclosed   int        `json:"ai_disclosed"`
	FreeToPlay    int        `json:"free_to_play"`
	LastCollected *time.Time `json:"last_collected,omitempty"`
}

// ListOpts controls game listing.
type ListOpts struct {
	AIOnly bool
	Limit  int // <= 0 means no limit
}

// Reader is the read-only view used by external consumers (API server,
// exporter). Readers never take write locks.
type Reader interface {
	GetGame(ctx context.Context, appid int64) (*Game, error)
	ListGames(ctx context.Context, opts ListOpts) ([]Game, error)
	ListSnapshots(ctx context.Context, appid int64, since time.Time) ([]Snapshot, error)
	LatestSnapshots(ctx context.Context) ([]Snapshot, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// Store is the persistence interface.
type Store interface {
	Reader

	EnsureSchema(ctx context.Context) error
	UpsertGame(ctx context.Context, g *Game) error
	AppendSnapshot(ctx context.Context, appid int64, m Metrics, collectedAt time.Time) error

	// RecordCollection writes the game upsert and its snapshot in one
	// transaction, so a crash mid-run loses at most the in-flight id.
	RecordCollection(ctx context.Context, g *Game, m Metrics) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database for writing and ensures the schema.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database in read-only mode. External
// readers use this handle so they never contend for the writer's locks.
func OpenReadOnly(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite read-only %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates both tables if absent and applies the additive
// snapshot column migration. Safe to call on every process start.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return s.migrateSnapshots(ctx)
}

const upsertGameSQL = `
INSERT OR REPLACE INTO games
    (appid, name, genres, tags, categories, has_ai_disclosure,
     developers, publishers, release_date, supported_languages,
     price_initial, price_final, price_currency,
     first_seen, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        COALESCE((SELECT first_seen FROM games WHERE appid = ?), ?),
        ?)`

// UpsertGame inserts or replaces the row for g.AppID. A prior first_seen
// is carried forward; last_updated is always refreshed.
func (s *SQLiteStore) UpsertGame(ctx context.Context, g *Game) error {
	return s.upsertGame(ctx, s.db, g)
}

func (s *SQLiteStore) upsertGame(ctx context.Context, ext sqlx.ExtContext, g *Game) error {
	now := time.Now().UTC()
	_, err := ext.ExecContext(ctx, upsertGameSQL,
		g.AppID, g.Name, g.Genres, g.Tags, g.Categories, g.HasAIDisclosure,
		g.Developers, g.Publishers, g.ReleaseDate, g.SupportedLanguages,
		g.PriceInitial, g.PriceFinal, g.PriceCurrency,
		g.AppID, now, now)
	if err != nil {
		return fmt.Errorf("upsert game %d: %w", g.AppID, err)
	}
	return nil
}

const appendSnapshotSQL = `
INSERT INTO snapshots
    (appid, recommendations, review_score, review_score_desc,
     positive, negative, total_reviews, player_count, collected_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AppendSnapshot inserts one time-series row for appid. Rows are never
// updated or deleted. A zero collectedAt defaults to the current time.
func (s *SQLiteStore) AppendSnapshot(ctx context.Context, appid int64, m Metrics, collectedAt time.Time) error {
	return s.appendSnapshot(ctx, s.db, appid, m, collectedAt)
}

func (s *SQLiteStore) appendSnapshot(ctx context.Context, ext sqlx.ExtContext, appid int64, m Metrics, collectedAt time.Time) error {
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}
	_, err := ext.ExecContext(ctx, appendSnapshotSQL,
		appid, m.Recommendations, m.ReviewScore, m.ReviewScoreDesc,
		m.Positive, m.Negative, m.TotalReviews, m.PlayerCount, collectedAt)
	if err != nil {
		return fmt.Errorf("append snapshot %d: %w", appid, err)
	}
	return nil
}

func (s *SQLiteStore) RecordCollection(ctx context.Context, g *Game, m Metrics) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record collection %d: %w", g.AppID, err)
	}
	defer tx.Rollback()

	if err := s.upsertGame(ctx, tx, g); err != nil {
		return err
	}
	if err := s.appendSnapshot(ctx, tx, g.AppID, m, time.Time{}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record collection %d: %w", g.AppID, err)
	}
	return nil
}

func (s *SQLiteStore) GetGame(ctx context.Context, appid int64) (*Game, error) {
	var g Game
	err := s.db.GetContext(ctx, &g, "SELECT * FROM games WHERE appid = ?", appid)
	if err != nil {
		return nil, fmt.Errorf("get game %d: %w", appid, err)
	}
	return &g, nil
}

func (s *SQLiteStore) ListGames(ctx context.Context, opts ListOpts) ([]Game, error) {
	query := "SELECT * FROM games WHERE 1=1"
	var args []any

	if opts.AIOnly {
		query += " AND has_ai_disclosure = 1"
	}
	query += " ORDER BY last_updated DESC, appid"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var games []Game
	if err := s.db.SelectContext(ctx, &games, query, args...); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, appid int64, since time.Time) ([]Snapshot, error) {
	query := "SELECT * FROM snapshots WHERE appid = ?"
	args := []any{appid}
	if !since.IsZero() {
		query += " AND collected_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY collected_at, id"

	var snaps []Snapshot
	if err := s.db.SelectContext(ctx, &snaps, query, args...); err != nil {
		return nil, fmt.Errorf("list snapshots %d: %w", appid, err)
	}
	return snaps, nil
}

// LatestSnapshots returns the most recent snapshot per game.
func (s *SQLiteStore) LatestSnapshots(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT * FROM snapshots s
		WHERE s.collected_at = (SELECT MAX(collected_at) FROM snapshots WHERE appid = s.appid)
		GROUP BY s.appid
		ORDER BY s.appid`)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	return snaps, nil
}

func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st.TotalGames, "SELECT COUNT(*) FROM games"); err != nil {
		return nil, fmt.Errorf("count games: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.AIDisclosed, "SELECT COUNT(*) FROM games WHERE has_ai_disclosure = 1"); err != nil {
		return nil, fmt.Errorf("count ai disclosed: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.FreeToPlay, "SELECT COUNT(*) FROM games WHERE price_final = 0"); err != nil {
		return nil, fmt.Errorf("count free to play: %w", err)
	}

	var last time.Time
	err := s.db.GetContext(ctx, &last,
		"SELECT collected_at FROM snapshots ORDER BY collected_at DESC LIMIT 1")
	if err == nil {
		st.LastCollected = &last
	}
	return &st, nil
}
