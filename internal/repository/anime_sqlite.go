package repository

import (
	"database/sql"
	"fmt"

	"animesync/internal/logging"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS anime (
			id INTEGER PRIMARY KEY,
			ranking INTEGER,
			favorite INTEGER NOT NULL DEFAULT 0,
			last_updated INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anime_ranking ON anime(ranking)`,
		`CREATE INDEX IF NOT EXISTS idx_anime_favorite ON anime(favorite)`,
	},
	upsert: `
		INSERT INTO anime (id, ranking, favorite, last_updated, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ranking = excluded.ranking,
			favorite = excluded.favorite,
			last_updated = excluded.last_updated,
			payload = excluded.payload`,
	serialize: true,
}

// NewSQLiteAnimeStore opens (or creates) the SQLite cache database at dbPath.
// Thread-safe with WAL mode for concurrent reads.
func NewSQLiteAnimeStore(dbPath string, log logging.Logger) (*SQLAnimeStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := NewSQLAnimeStore(db, sqliteDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenSQLiteMemory opens a private in-memory SQLite store.
func OpenSQLiteMemory(log logging.Logger) (*SQLAnimeStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := NewSQLAnimeStore(db, sqliteDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
