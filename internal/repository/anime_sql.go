package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"animesync/internal/logging"
	"animesync/internal/model"
)

// dialect captures the SQL differences between the supported engines.
type dialect struct {
	name string

	// schema is executed statement by statement on open.
	schema []string

	// upsert inserts one row, replacing every column on id conflict.
	upsert string

	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool

	// serialize guards the connection with a RWMutex (single-writer engines).
	serialize bool
}

const selectColumns = `SELECT id, ranking, favorite, last_updated, payload FROM anime`

// SQLAnimeStore implements AnimeStore on database/sql.
// Rows keep the decoded attributes as a JSON payload next to the columns the
// store queries on; favorite and last_updated columns are authoritative.
type SQLAnimeStore struct {
	db      *sql.DB
	dialect dialect
	log     logging.Logger
	mu      sync.RWMutex
}

// NewSQLAnimeStore wraps an open database and creates the schema if needed.
func NewSQLAnimeStore(db *sql.DB, d dialect, log logging.Logger) (*SQLAnimeStore, error) {
	if log == nil {
		log = logging.Nop()
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLAnimeStore{
		db:      db,
		dialect: d,
		log:     log.With("component", "store", "backend", d.name),
	}, nil
}

func (r *SQLAnimeStore) lock() func() {
	if !r.dialect.serialize {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *SQLAnimeStore) rlock() func() {
	if !r.dialect.serialize {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// rebind rewrites ? placeholders for engines that number them.
func (r *SQLAnimeStore) rebind(query string) string {
	if !r.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Get returns one record, or nil if it is not cached.
func (r *SQLAnimeStore) Get(ctx context.Context, id int) (*model.Anime, error) {
	defer r.rlock()()

	row := r.db.QueryRowContext(ctx, r.rebind(selectColumns+` WHERE id = ?`), id)
	a, err := scanAnime(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}
	return a, nil
}

// GetAll returns every record ordered by rank, unranked last.
func (r *SQLAnimeStore) GetAll(ctx context.Context) ([]model.Anime, error) {
	defer r.rlock()()

	return r.query(ctx, selectColumns+` ORDER BY ranking IS NULL, ranking ASC, id ASC`)
}

// ListFavorites returns favorited records, most recently refreshed first.
func (r *SQLAnimeStore) ListFavorites(ctx context.Context) ([]model.Anime, error) {
	defer r.rlock()()

	return r.query(ctx, selectColumns+` WHERE favorite = ? ORDER BY last_updated DESC, id ASC`, true)
}

func (r *SQLAnimeStore) query(ctx context.Context, query string, args ...any) ([]model.Anime, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select anime: %w", err)
	}
	defer rows.Close()

	result := make([]model.Anime, 0)
	for rows.Next() {
		a, err := scanAnime(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anime: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or replaces one record.
func (r *SQLAnimeStore) Upsert(ctx context.Context, item model.Anime) error {
	if !item.Valid() {
		return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
	}
	args, err := rowArgs(item)
	if err != nil {
		return err
	}

	defer r.lock()()

	if _, err := r.db.ExecContext(ctx, r.rebind(r.dialect.upsert), args...); err != nil {
		return fmt.Errorf("failed to upsert anime %d: %w", item.ID, err)
	}
	return nil
}

// ReplaceAll clears the table and inserts items in one transaction.
func (r *SQLAnimeStore) ReplaceAll(ctx context.Context, items []model.Anime) error {
	for _, item := range items {
		if !item.Valid() {
			return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
		}
	}

	defer r.lock()()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM anime`); err != nil {
		return fmt.Errorf("failed to clear anime: %w", err)
	}

	if len(items) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.rebind(r.dialect.upsert))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			args, err := rowArgs(item)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert anime %d: %w", item.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetFavorite flips the favorite column only.
func (r *SQLAnimeStore) SetFavorite(ctx context.Context, id int, favorite bool) error {
	defer r.lock()()

	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE anime SET favorite = ? WHERE id = ?`), favorite, id)
	if err != nil {
		return fmt.Errorf("failed to update favorite for anime %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("anime %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// Clear removes every record.
func (r *SQLAnimeStore) Clear(ctx context.Context) error {
	defer r.lock()()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM anime`); err != nil {
		return fmt.Errorf("failed to clear anime: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (r *SQLAnimeStore) Count(ctx context.Context) (int64, error) {
	defer r.rlock()()

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count anime: %w", err)
	}
	return count, nil
}

// Stats returns statistics about the cache table.
func (r *SQLAnimeStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	defer r.rlock()()

	stats := make(map[string]interface{})
	stats["backend"] = r.dialect.name

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&count); err != nil {
		return nil, err
	}
	stats["total_anime"] = count

	var favorites int64
	if err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM anime WHERE favorite = ?`), true).Scan(&favorites); err == nil {
		stats["favorites"] = favorites
	}

	var oldest, newest sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(last_updated), MAX(last_updated) FROM anime`).Scan(&oldest, &newest); err == nil {
		if oldest.Valid {
			stats["oldest_update"] = time.UnixMilli(oldest.Int64).UTC()
		}
		if newest.Valid {
			stats["last_sync"] = time.UnixMilli(newest.Int64).UTC()
		}
	}

	if r.dialect.name == "sqlite" {
		var pageCount, pageSize int64
		r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats["db_size_bytes"] = pageCount * pageSize
	}

	return stats, nil
}

// Close closes the database connection.
func (r *SQLAnimeStore) Close() error {
	return r.db.Close()
}

// rowArgs returns the upsert arguments: id, ranking, favorite, last_updated, payload.
func rowArgs(item model.Anime) ([]any, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode anime %d: %w", item.ID, err)
	}
	var ranking sql.NullInt64
	if item.Rank != nil {
		ranking = sql.NullInt64{Int64: int64(*item.Rank), Valid: true}
	}
	return []any{item.ID, ranking, item.Favorite, item.LastUpdated.UnixMilli(), string(payload)}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnime(row rowScanner) (*model.Anime, error) {
	var (
		id          int64
		ranking     sql.NullInt64
		favorite    bool
		lastUpdated int64
		payload     string
	)
	if err := row.Scan(&id, &ranking, &favorite, &lastUpdated, &payload); err != nil {
		return nil, err
	}

	var a model.Anime
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to decode anime %d: %w", id, err)
	}
	a.ID = int(id)
	a.Favorite = favorite
	a.LastUpdated = time.UnixMilli(lastUpdated).UTC()
	return &a, nil
}

// Ensure SQLAnimeStore implements AnimeStore
var _ AnimeStore = (*SQLAnimeStore)(nil)
