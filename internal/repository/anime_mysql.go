package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"animesync/internal/logging"

	_ "github.com/go-sql-driver/mysql"
)

// The DSN must carry clientFoundRows=true so SetFavorite sees matched rows
// rather than changed rows.
var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS anime (
			id BIGINT PRIMARY KEY,
			ranking INT NULL,
			favorite BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated BIGINT NOT NULL,
			payload LONGTEXT NOT NULL,
			INDEX idx_anime_ranking (ranking),
			INDEX idx_anime_favorite (favorite)
		)`,
	},
	upsert: `
		INSERT INTO anime (id, ranking, favorite, last_updated, payload)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			ranking = VALUES(ranking),
			favorite = VALUES(favorite),
			last_updated = VALUES(last_updated),
			payload = VALUES(payload)`,
}

// NewMySQLAnimeStore connects to MySQL and creates the schema if needed.
func NewMySQLAnimeStore(dsn string, log logging.Logger) (*SQLAnimeStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := NewSQLAnimeStore(db, mysqlDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
