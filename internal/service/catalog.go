package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"animesync/internal/logging"
	"animesync/internal/model"
	"animesync/internal/repository"
)

// RemoteSource is the authoritative catalog.
type RemoteSource interface {
	FetchTop(ctx context.Context, page int) (*model.AnimePage, error)
	FetchAnime(ctx context.Context, id int) (*model.Anime, error)
}

// CatalogConfig holds optional collaborators. Zero values fall back to defaults.
type CatalogConfig struct {
	TTL    time.Duration
	Clock  Clock
	Logger logging.Logger
}

// CatalogService serves anime from the cache store and refreshes it from the
// remote source when records go stale.
//
// Reads return lazy, single-use sequences of at most two results, cached
// value first. Anime follows a stale cached value with the refreshed one;
// TopAnime emits the refreshed collection only when the cache was empty.
// Remote failures surface only when nothing was emitted.
type CatalogService struct {
	store  repository.AnimeStore
	remote RemoteSource
	ttl    time.Duration
	clock  Clock
	log    logging.Logger

	// writeMu serializes write-backs and favorite writes so a merge always
	// sees the latest favorite flag.
	writeMu sync.Mutex
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store repository.AnimeStore, remote RemoteSource, cfg CatalogConfig) *CatalogService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &CatalogService{
		store:  store,
		remote: remote,
		ttl:    cfg.TTL,
		clock:  cfg.Clock,
		log:    cfg.Logger.With("component", "catalog"),
	}
}

// TTL returns the freshness window.
func (s *CatalogService) TTL() time.Duration {
	return s.ttl
}

// Anime reads one title by ID.
func (s *CatalogService) Anime(ctx context.Context, id int) iter.Seq[Result[model.Anime]] {
	return once(func(yield func(Result[model.Anime]) bool) {
		if id <= 0 {
			yield(failure[model.Anime](fmt.Errorf("anime id %d: %w", id, model.ErrInvalidArgument)))
			return
		}
		if ctx.Err() != nil {
			return
		}

		cached := s.lookup(ctx, id)
		emitted := false
		if cached != nil {
			if !yield(success(*cached, SourceCache)) {
				return
			}
			emitted = true

			if !IsStale(cached.LastUpdated, s.clock.Now(), s.ttl) {
				return
			}
			s.log.Debug(ctx, "cached anime is stale", "id", id, "last_updated", cached.LastUpdated)
		}

		if ctx.Err() != nil {
			return
		}
		fetched, err := s.remote.FetchAnime(ctx, id)
		if ctx.Err() != nil {
			s.log.Debug(ctx, "read cancelled", "id", id)
			return
		}
		if err == nil && (fetched == nil || !fetched.Valid()) {
			err = fmt.Errorf("anime %d: payload without a valid id: %w", id, model.ErrRemoteFormat)
		}
		if err == nil && fetched.ID != id {
			err = fmt.Errorf("anime %d: payload carries id %d: %w", id, fetched.ID, model.ErrRemoteFormat)
		}
		if err != nil {
			if emitted {
				s.log.Warn(ctx, "remote refresh failed, serving cached anime", "id", id, "error", err)
				return
			}
			yield(failure[model.Anime](err))
			return
		}

		fetchedAt := s.clock.Now()
		merged, ok := s.writeBackOne(ctx, *fetched, cached, fetchedAt)
		if !ok {
			return
		}
		yield(success(merged, SourceRemote))
	})
}

// TopAnime reads the top-ranked collection. page < 1 is treated as 1.
func (s *CatalogService) TopAnime(ctx context.Context, page int) iter.Seq[Result[[]model.Anime]] {
	if page < 1 {
		page = 1
	}
	return once(func(yield func(Result[[]model.Anime]) bool) {
		if ctx.Err() != nil {
			return
		}

		cached := s.loadAll(ctx)
		emitted := false
		if len(cached) > 0 {
			if !yield(success(cached, SourceCache)) {
				return
			}
			emitted = true

			oldest := OldestUpdate(cached)
			if !IsStale(oldest, s.clock.Now(), s.ttl) {
				return
			}
			s.log.Debug(ctx, "cached collection is stale", "oldest_update", oldest, "count", len(cached))
		}

		if ctx.Err() != nil {
			return
		}
		res, err := s.remote.FetchTop(ctx, page)
		if ctx.Err() != nil {
			s.log.Debug(ctx, "read cancelled", "page", page)
			return
		}
		if err == nil && res == nil {
			err = fmt.Errorf("top page %d: empty response: %w", page, model.ErrRemoteFormat)
		}
		if err != nil {
			if emitted {
				s.log.Warn(ctx, "remote refresh failed, serving cached collection", "page", page, "error", err)
				return
			}
			yield(failure[[]model.Anime](err))
			return
		}

		fetchedAt := s.clock.Now()
		merged, ok, err := s.writeBackAll(ctx, res.Data, cached, fetchedAt, true)
		if err != nil {
			s.log.Warn(ctx, "failed to persist collection", "page", page, "error", err)
		}
		if !ok || emitted {
			return
		}
		yield(success(merged, SourceRemote))
	})
}

// RefreshTop fetches a page of the top collection and upserts it into the
// cache, regardless of freshness. Records missing from the page are kept.
// Errors are returned rather than absorbed.
func (s *CatalogService) RefreshTop(ctx context.Context, page int) ([]model.Anime, error) {
	if page < 1 {
		page = 1
	}
	res, err := s.remote.FetchTop(ctx, page)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("top page %d: empty response: %w", page, model.ErrRemoteFormat)
	}

	merged, ok, err := s.writeBackAll(ctx, res.Data, nil, s.clock.Now(), false)
	if err != nil {
		return nil, cacheErr("refresh", err)
	}
	if !ok {
		return nil, ctx.Err()
	}
	s.log.Info(ctx, "top collection refreshed", "page", page, "count", len(merged))
	return merged, nil
}

// ToggleFavorite flips the favorite flag of anime and persists only that flag;
// the stored attributes and LastUpdated are left as they are. Returns the
// stored record. It never calls the remote source.
func (s *CatalogService) ToggleFavorite(ctx context.Context, anime model.Anime) (model.Anime, error) {
	if !anime.Valid() {
		return anime, fmt.Errorf("anime id %d: %w", anime.ID, model.ErrInvalidArgument)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.toggleLocked(ctx, anime)
}

// ToggleFavoriteByID flips the favorite flag of the cached record with the given ID.
// Returns model.ErrNotFound when the record is not cached.
func (s *CatalogService) ToggleFavoriteByID(ctx context.Context, id int) (model.Anime, error) {
	if id <= 0 {
		return model.Anime{}, fmt.Errorf("anime id %d: %w", id, model.ErrInvalidArgument)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Anime{}, cacheErr("toggle favorite", err)
	}
	if current == nil {
		return model.Anime{}, fmt.Errorf("anime %d: %w", id, model.ErrNotFound)
	}
	return s.toggleLocked(ctx, *current)
}

// toggleLocked writes only the favorite flag of a stored record, so a stale
// caller copy never overwrites refreshed attributes or LastUpdated. A record
// that is not stored yet is inserted from the caller's copy.
func (s *CatalogService) toggleLocked(ctx context.Context, anime model.Anime) (model.Anime, error) {
	toggled := anime
	toggled.Favorite = !anime.Favorite

	err := s.store.SetFavorite(ctx, anime.ID, toggled.Favorite)
	switch {
	case errors.Is(err, model.ErrNotFound):
		if err := s.store.Upsert(ctx, toggled); err != nil {
			return anime, cacheErr("toggle favorite", err)
		}
	case err != nil:
		return anime, cacheErr("toggle favorite", err)
	default:
		if stored, err := s.store.Get(ctx, anime.ID); err != nil {
			s.log.Warn(ctx, "re-read after toggle failed", "id", anime.ID, "error", err)
		} else if stored != nil {
			toggled = *stored
		}
	}

	s.log.Info(ctx, "favorite toggled", "id", toggled.ID, "favorite", toggled.Favorite)
	return toggled, nil
}

// SetFavorite sets the favorite flag of a cached record. Idempotent.
func (s *CatalogService) SetFavorite(ctx context.Context, id int, favorite bool) error {
	if id <= 0 {
		return fmt.Errorf("anime id %d: %w", id, model.ErrInvalidArgument)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.SetFavorite(ctx, id, favorite); err != nil {
		return cacheErr("set favorite", err)
	}
	return nil
}

// Favorites lists favorited records, most recently refreshed first.
func (s *CatalogService) Favorites(ctx context.Context) ([]model.Anime, error) {
	list, err := s.store.ListFavorites(ctx)
	if err != nil {
		return nil, cacheErr("list favorites", err)
	}
	return list, nil
}

// ClearCache removes every cached record, favorites included.
func (s *CatalogService) ClearCache(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return cacheErr("clear cache", err)
	}
	s.log.Info(ctx, "cache cleared")
	return nil
}

// CacheSize returns the number of cached records.
func (s *CatalogService) CacheSize(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, cacheErr("count", err)
	}
	return n, nil
}

// Stats returns store statistics plus the freshness window.
func (s *CatalogService) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, cacheErr("stats", err)
	}
	stats["freshness_ttl"] = s.ttl.String()
	return stats, nil
}

// lookup reads one record, treating store errors as a miss.
func (s *CatalogService) lookup(ctx context.Context, id int) *model.Anime {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "cache lookup failed", "id", id, "error", err)
		return nil
	}
	return a
}

// loadAll reads the cached collection, treating store errors as empty.
func (s *CatalogService) loadAll(ctx context.Context) []model.Anime {
	list, err := s.store.GetAll(ctx)
	if err != nil {
		s.log.Warn(ctx, "cache load failed", "error", err)
		return nil
	}
	return list
}

// writeBackOne merges and persists one fetched record. ok is false when the
// context was cancelled before the write.
func (s *CatalogService) writeBackOne(ctx context.Context, incoming model.Anime, cached *model.Anime, fetchedAt time.Time) (model.Anime, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if ctx.Err() != nil {
		return model.Anime{}, false
	}

	existing := cached
	if current, err := s.store.Get(ctx, incoming.ID); err != nil {
		s.log.Warn(ctx, "cache re-read failed, merging against earlier read", "id", incoming.ID, "error", err)
	} else {
		existing = current
	}

	merged := MergeFavorite(incoming, existing, fetchedAt)
	if err := s.store.Upsert(ctx, merged); err != nil {
		s.log.Warn(ctx, "failed to persist anime", "id", merged.ID, "error", err)
	}
	return merged, true
}

// writeBackAll merges the fetched page against the cache and persists it,
// replacing the cached set when replace is true and upserting otherwise.
// Items with invalid IDs are dropped. ok is false when the context was
// cancelled before the write; err reports a failed write.
func (s *CatalogService) writeBackAll(ctx context.Context, incoming []model.Anime, cached []model.Anime, fetchedAt time.Time, replace bool) ([]model.Anime, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if ctx.Err() != nil {
		return nil, false, nil
	}

	existing := cached
	if current, err := s.store.GetAll(ctx); err != nil {
		s.log.Warn(ctx, "cache re-read failed, merging against earlier read", "error", err)
	} else {
		existing = current
	}
	byID := make(map[int]*model.Anime, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	merged := make([]model.Anime, 0, len(incoming))
	persist := make([]model.Anime, 0, len(incoming))
	seen := make(map[int]bool, len(incoming))
	for _, item := range incoming {
		if !item.Valid() {
			s.log.Warn(ctx, "dropping remote item with invalid id", "id", item.ID, "title", item.DisplayTitle())
			continue
		}
		m := MergeFavorite(item, byID[item.ID], fetchedAt)
		merged = append(merged, m)
		if !seen[m.ID] {
			seen[m.ID] = true
			persist = append(persist, m)
		}
	}

	if replace {
		if err := s.store.ReplaceAll(ctx, persist); err != nil {
			return merged, true, err
		}
	} else {
		for _, item := range persist {
			if err := s.store.Upsert(ctx, item); err != nil {
				return merged, true, err
			}
		}
	}
	s.log.Debug(ctx, "collection persisted", "count", len(persist))
	return merged, true, nil
}

// cacheErr marks store failures as ErrCacheUnavailable, leaving caller
// errors (not found, invalid argument) as they are.
func cacheErr(op string, err error) error {
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrCacheUnavailable, err)
}
