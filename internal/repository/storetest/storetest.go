// Package storetest holds the behaviour checks every AnimeStore backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"animesync/internal/model"
	"animesync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The store is closed by the caller's cleanup.
type Factory func(t *testing.T) repository.AnimeStore

func intp(v int) *int { return &v }

// Anime builds a minimal valid record.
func Anime(id int, title string, rank *int, updated time.Time) model.Anime {
	return model.Anime{ID: id, Title: title, Rank: rank, LastUpdated: updated.UTC().Truncate(time.Millisecond)}
}

// Run exercises the full AnimeStore contract against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get missing returns nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(context.Background(), 42)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert then get round-trips", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		score := 9.1
		in := Anime(5114, "Fullmetal Alchemist: Brotherhood", intp(1), base)
		in.Score = &score
		in.Genres = []model.Entry{{MalID: 1, Type: "anime", Name: "Action"}}
		in.Favorite = true
		require.NoError(t, s.Upsert(ctx, in))

		got, err := s.Get(ctx, 5114)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, in.Title, got.Title)
		assert.Equal(t, 9.1, *got.Score)
		assert.Equal(t, 1, *got.Rank)
		assert.Equal(t, "Action", got.Genres[0].Name)
		assert.True(t, got.Favorite)
		assert.True(t, in.LastUpdated.Equal(got.LastUpdated))
	})

	t.Run("upsert replaces existing record", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Upsert(ctx, Anime(1, "old", intp(3), base)))
		require.NoError(t, s.Upsert(ctx, Anime(1, "new", intp(2), base.Add(time.Hour))))

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, 2, *got.Rank)
		assert.True(t, base.Add(time.Hour).Equal(got.LastUpdated))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("invalid ids are rejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		assert.ErrorIs(t, s.Upsert(ctx, Anime(0, "zero", nil, base)), model.ErrInvalidArgument)
		assert.ErrorIs(t, s.ReplaceAll(ctx, []model.Anime{Anime(1, "a", nil, base), Anime(-1, "b", nil, base)}), model.ErrInvalidArgument)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("get all orders by rank with unranked last", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{
			Anime(30, "unranked", nil, base),
			Anime(10, "third", intp(3), base),
			Anime(20, "first", intp(1), base),
			Anime(40, "second", intp(2), base),
		}))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []int{20, 40, 10, 30}, ids(all))
	})

	t.Run("replace all drops previous records", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{Anime(1, "a", intp(1), base), Anime(2, "b", intp(2), base)}))
		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{Anime(3, "c", intp(1), base)}))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, ids(all))

		require.NoError(t, s.ReplaceAll(ctx, nil))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("set favorite keeps last updated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Upsert(ctx, Anime(7, "seven", intp(7), base)))
		require.NoError(t, s.SetFavorite(ctx, 7, true))

		got, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.True(t, got.Favorite)
		assert.True(t, base.Equal(got.LastUpdated))

		// Idempotent writes still find the row.
		require.NoError(t, s.SetFavorite(ctx, 7, true))
		require.NoError(t, s.SetFavorite(ctx, 7, false))
		got, err = s.Get(ctx, 7)
		require.NoError(t, err)
		assert.False(t, got.Favorite)
	})

	t.Run("set favorite on missing record", func(t *testing.T) {
		s := newStore(t)
		err := s.SetFavorite(context.Background(), 99, true)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("list favorites newest first", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		a := Anime(1, "a", intp(1), base)
		b := Anime(2, "b", intp(2), base.Add(2*time.Hour))
		c := Anime(3, "c", intp(3), base.Add(time.Hour))
		a.Favorite, b.Favorite = true, true
		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{a, b, c}))
		require.NoError(t, s.SetFavorite(ctx, 3, true))

		favs, err := s.ListFavorites(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 1}, ids(favs))
	})

	t.Run("clear and count", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{Anime(1, "a", nil, base), Anime(2, "b", nil, base)}))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		require.NoError(t, s.Clear(ctx))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("stats report totals", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		a := Anime(1, "a", nil, base)
		a.Favorite = true
		require.NoError(t, s.ReplaceAll(ctx, []model.Anime{a, Anime(2, "b", nil, base)}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, stats["backend"])
		assert.EqualValues(t, 2, stats["total_anime"])
		assert.EqualValues(t, 1, stats["favorites"])
	})
}

func ids(list []model.Anime) []int {
	out := make([]int, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
