package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"animesync/internal/model"
	"animesync/internal/repository"
)

// MemoryAnimeStore is an in-memory implementation of repository.AnimeStore.
// Use this for development/testing or single-instance deployments.
type MemoryAnimeStore struct {
	mu      sync.RWMutex
	entries map[int]model.Anime
}

// NewMemoryAnimeStore creates an empty in-memory store.
func NewMemoryAnimeStore() *MemoryAnimeStore {
	return &MemoryAnimeStore{
		entries: make(map[int]model.Anime),
	}
}

// Get returns one record, or nil if it is not cached.
func (c *MemoryAnimeStore) Get(ctx context.Context, id int) (*model.Anime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[id]
	if !exists {
		return nil, nil
	}
	return &entry, nil
}

// GetAll returns every record ordered by rank, unranked last.
func (c *MemoryAnimeStore) GetAll(ctx context.Context) ([]model.Anime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	result := make([]model.Anime, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry)
	}
	c.mu.RUnlock()

	model.SortByRank(result)
	return result, nil
}

// ListFavorites returns favorited records, most recently refreshed first.
func (c *MemoryAnimeStore) ListFavorites(ctx context.Context) ([]model.Anime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	result := make([]model.Anime, 0)
	for _, entry := range c.entries {
		if entry.Favorite {
			result = append(result, entry)
		}
	}
	c.mu.RUnlock()

	model.SortByLastUpdatedDesc(result)
	return result, nil
}

// Upsert inserts or replaces one record.
func (c *MemoryAnimeStore) Upsert(ctx context.Context, item model.Anime) error {
	if !item.Valid() {
		return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[item.ID] = item
	return nil
}

// ReplaceAll swaps the whole content in one step.
func (c *MemoryAnimeStore) ReplaceAll(ctx context.Context, items []model.Anime) error {
	entries := make(map[int]model.Anime, len(items))
	for _, item := range items {
		if !item.Valid() {
			return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
		}
		entries[item.ID] = item
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = entries
	return nil
}

// SetFavorite flips the favorite flag in place.
func (c *MemoryAnimeStore) SetFavorite(ctx context.Context, id int, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[id]
	if !exists {
		return fmt.Errorf("anime %d: %w", id, model.ErrNotFound)
	}
	entry.Favorite = favorite
	c.entries[id] = entry
	return nil
}

// Clear removes all entries.
func (c *MemoryAnimeStore) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int]model.Anime)
	return nil
}

// Count returns the number of entries.
func (c *MemoryAnimeStore) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return int64(len(c.entries)), nil
}

// Stats returns entry counters and the refresh time range.
func (c *MemoryAnimeStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":     "memory",
		"total_anime": int64(len(c.entries)),
	}

	var favorites int64
	var oldest, newest time.Time
	for _, entry := range c.entries {
		if entry.Favorite {
			favorites++
		}
		if oldest.IsZero() || entry.LastUpdated.Before(oldest) {
			oldest = entry.LastUpdated
		}
		if entry.LastUpdated.After(newest) {
			newest = entry.LastUpdated
		}
	}
	stats["favorites"] = favorites
	if len(c.entries) > 0 {
		stats["oldest_update"] = oldest
		stats["last_sync"] = newest
	}
	return stats, nil
}

// Close is a no-op.
func (c *MemoryAnimeStore) Close() error {
	return nil
}

var _ repository.AnimeStore = (*MemoryAnimeStore)(nil)
