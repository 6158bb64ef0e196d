package repository

import (
	"context"

	"animesync/internal/model"
)

// AnimeStore is the durable cache of catalog records, keyed by anime ID.
// Implementations must be safe for concurrent use.
type AnimeStore interface {
	// Get returns the record with the given ID, or (nil, nil) if it is not cached.
	Get(ctx context.Context, id int) (*model.Anime, error)

	// GetAll returns every cached record ordered by rank.
	GetAll(ctx context.Context) ([]model.Anime, error)

	// ReplaceAll clears the store and inserts items, atomically where the backend allows.
	ReplaceAll(ctx context.Context, items []model.Anime) error

	// Upsert inserts or fully replaces one record, LastUpdated included.
	Upsert(ctx context.Context, item model.Anime) error

	// SetFavorite updates the favorite flag in place without touching LastUpdated.
	// Returns model.ErrNotFound if the record is not cached.
	SetFavorite(ctx context.Context, id int, favorite bool) error

	// ListFavorites returns favorited records, most recently refreshed first.
	ListFavorites(ctx context.Context) ([]model.Anime, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Count returns the number of cached records.
	Count(ctx context.Context) (int64, error)

	// Stats returns backend statistics for the admin endpoint.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close releases the backend connection.
	Close() error
}
