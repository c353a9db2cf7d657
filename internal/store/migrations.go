package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
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

CREATE INDEX IF NOT EXISTS idx_games_last_updated ON games(last_updated);

CREATE TABLE IF NOT EXISTS snapshots (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    appid             INTEGER NOT NULL REFERENCES games(appid),
    recommendations   INTEGER,
    review_score      INTEGER,
    review_score_desc TEXT,
    positive          INTEGER,
    negative          INTEGER,
    total_reviews     INTEGER,
    player_count      INTEGER,
    collected_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_appid ON snapshots(appid);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected ON snapshots(collected_at);
`

// snapshotColumns is the expected column set of the snapshots table.
// The table grew over time; databases created before a column existed get
// it added as nullable in migrateSnapshots. Additive only: columns are
// never removed or retyped.
var snapshotColumns = []struct {
	name string
	typ  string
}{
	{"recommendations", "INTEGER"},
	{"review_score", "INTEGER"},
	{"review_score_desc", "TEXT"},
	{"positive", "INTEGER"},
	{"negative", "INTEGER"},
	{"total_reviews", "INTEGER"},
	{"player_count", "INTEGER"},
}

// migrateSnapshots adds any expected snapshot column missing from an
// existing table. Pre-existing rows are preserved; new columns read NULL.
func (s *SQLiteStore) migrateSnapshots(ctx context.Context) error {
	rows, err := s.db.QueryxContext(ctx, "PRAGMA table_info(snapshots)")
	if err != nil {
		return fmt.Errorf("inspect snapshots columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("scan snapshots column: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect snapshots columns: %w", err)
	}

	for _, col := range snapshotColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE snapshots ADD COLUMN %s %s", col.name, col.typ)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add snapshots column %s: %w", col.name, err)
		}
	}
	return nil
}
