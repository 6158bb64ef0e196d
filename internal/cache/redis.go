package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"animesync/internal/logging"
	"animesync/internal/model"
	"animesync/internal/repository"

	"github.com/redis/go-redis/v9"
)

// setFavoriteIfExistsScript flips membership in the favorites set only when
// the record exists. Returns 1 on success, 0 when the record is missing.
var setFavoriteIfExistsScript = redis.NewScript(`
	if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
		return 0
	end
	if ARGV[2] == "1" then
		redis.call("SADD", KEYS[2], ARGV[1])
	else
		redis.call("SREM", KEYS[2], ARGV[1])
	end
	return 1
`)

// RedisStoreConfig holds configuration for the Redis store.
type RedisStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisAnimeStore keeps records in Redis: a hash of JSON records keyed by ID
// and a set of favorited IDs. Set membership is authoritative for Favorite.
type RedisAnimeStore struct {
	client    *redis.Client
	keyPrefix string
	log       logging.Logger
}

// NewRedisAnimeStore connects to Redis and returns a store.
func NewRedisAnimeStore(cfg RedisStoreConfig, log logging.Logger) (*RedisAnimeStore, error) {
	if log == nil {
		log = logging.Nop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "animesync:anime"
	}

	s := &RedisAnimeStore{
		client:    client,
		keyPrefix: keyPrefix,
		log:       log.With("component", "store", "backend", "redis"),
	}
	s.log.Info(ctx, "connected", "db", cfg.DB, "prefix", keyPrefix)
	return s, nil
}

func (s *RedisAnimeStore) recordsKey() string {
	return s.keyPrefix + ":records"
}

func (s *RedisAnimeStore) favoritesKey() string {
	return s.keyPrefix + ":favorites"
}

// Get returns one record, or nil if it is not cached.
func (s *RedisAnimeStore) Get(ctx context.Context, id int) (*model.Anime, error) {
	field := strconv.Itoa(id)

	pipe := s.client.Pipeline()
	data := pipe.HGet(ctx, s.recordsKey(), field)
	fav := pipe.SIsMember(ctx, s.favoritesKey(), field)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}

	raw, err := data.Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}

	a, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	a.Favorite = fav.Val()
	return &a, nil
}

// GetAll returns every record ordered by rank, unranked last.
func (s *RedisAnimeStore) GetAll(ctx context.Context) ([]model.Anime, error) {
	pipe := s.client.Pipeline()
	records := pipe.HGetAll(ctx, s.recordsKey())
	favs := pipe.SMembers(ctx, s.favoritesKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load anime: %w", err)
	}

	favorite := make(map[string]bool, len(favs.Val()))
	for _, id := range favs.Val() {
		favorite[id] = true
	}

	result := make([]model.Anime, 0, len(records.Val()))
	for field, raw := range records.Val() {
		a, err := decodeRecord([]byte(raw))
		if err != nil {
			s.log.Warn(ctx, "skipping undecodable record", "id", field, "error", err)
			continue
		}
		a.Favorite = favorite[field]
		result = append(result, a)
	}

	model.SortByRank(result)
	return result, nil
}

// ListFavorites returns favorited records, most recently refreshed first.
func (s *RedisAnimeStore) ListFavorites(ctx context.Context) ([]model.Anime, error) {
	ids, err := s.client.SMembers(ctx, s.favoritesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	result := make([]model.Anime, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	values, err := s.client.HMGet(ctx, s.recordsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeRecord([]byte(raw))
		if err != nil {
			s.log.Warn(ctx, "skipping undecodable record", "id", ids[i], "error", err)
			continue
		}
		a.Favorite = true
		result = append(result, a)
	}

	model.SortByLastUpdatedDesc(result)
	return result, nil
}

// Upsert inserts or replaces one record.
func (s *RedisAnimeStore) Upsert(ctx context.Context, item model.Anime) error {
	if !item.Valid() {
		return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode anime %d: %w", item.ID, err)
	}

	field := strconv.Itoa(item.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.recordsKey(), field, data)
		if item.Favorite {
			pipe.SAdd(ctx, s.favoritesKey(), field)
		} else {
			pipe.SRem(ctx, s.favoritesKey(), field)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert anime %d: %w", item.ID, err)
	}
	return nil
}

// ReplaceAll clears both keys and writes items in one MULTI/EXEC.
func (s *RedisAnimeStore) ReplaceAll(ctx context.Context, items []model.Anime) error {
	fields := make([]interface{}, 0, len(items)*2)
	favorites := make([]interface{}, 0)
	for _, item := range items {
		if !item.Valid() {
			return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode anime %d: %w", item.ID, err)
		}
		field := strconv.Itoa(item.ID)
		fields = append(fields, field, data)
		if item.Favorite {
			favorites = append(favorites, field)
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordsKey(), s.favoritesKey())
		if len(fields) > 0 {
			pipe.HSet(ctx, s.recordsKey(), fields...)
		}
		if len(favorites) > 0 {
			pipe.SAdd(ctx, s.favoritesKey(), favorites...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace anime: %w", err)
	}
	return nil
}

// SetFavorite flips favorite membership without rewriting the record.
func (s *RedisAnimeStore) SetFavorite(ctx context.Context, id int, favorite bool) error {
	flag := "0"
	if favorite {
		flag = "1"
	}
	keys := []string{s.recordsKey(), s.favoritesKey()}
	n, err := setFavoriteIfExistsScript.Run(ctx, s.client, keys, strconv.Itoa(id), flag).Int()
	if err != nil {
		return fmt.Errorf("failed to update favorite for anime %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("anime %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// Clear removes every record.
func (s *RedisAnimeStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.recordsKey(), s.favoritesKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear anime: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (s *RedisAnimeStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.recordsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count anime: %w", err)
	}
	return n, nil
}

// Stats returns record counters and the refresh time range.
func (s *RedisAnimeStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"backend": "redis",
		"prefix":  s.keyPrefix,
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	stats["total_anime"] = int64(len(all))

	var favorites int64
	var oldest, newest time.Time
	for _, a := range all {
		if a.Favorite {
			favorites++
		}
		if oldest.IsZero() || a.LastUpdated.Before(oldest) {
			oldest = a.LastUpdated
		}
		if a.LastUpdated.After(newest) {
			newest = a.LastUpdated
		}
	}
	stats["favorites"] = favorites
	if len(all) > 0 {
		stats["oldest_update"] = oldest
		stats["last_sync"] = newest
	}
	return stats, nil
}

// Close closes the Redis connection.
func (s *RedisAnimeStore) Close() error {
	return s.client.Close()
}

func decodeRecord(raw []byte) (model.Anime, error) {
	var a model.Anime
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, fmt.Errorf("failed to decode anime: %w", err)
	}
	a.LastUpdated = a.LastUpdated.UTC()
	return a, nil
}

var _ repository.AnimeStore = (*RedisAnimeStore)(nil)
