package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"animesync/internal/cache"
	"animesync/internal/model"
	"animesync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.Join(model.ErrRemoteUnavailable, errors.New("connection refused"))

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) FetchTop(ctx context.Context, page int) (*model.AnimePage, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnimePage), args.Error(1)
}

func (m *mockRemote) FetchAnime(ctx context.Context, id int) (*model.Anime, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Anime), args.Error(1)
}

// spyStore counts calls and can fail reads or writes.
type spyStore struct {
	repository.AnimeStore
	calls    atomic.Int32
	readErr  error
	writeErr error
}

func (s *spyStore) Get(ctx context.Context, id int) (*model.Anime, error) {
	s.calls.Add(1)
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.AnimeStore.Get(ctx, id)
}

func (s *spyStore) GetAll(ctx context.Context) ([]model.Anime, error) {
	s.calls.Add(1)
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.AnimeStore.GetAll(ctx)
}

func (s *spyStore) Upsert(ctx context.Context, item model.Anime) error {
	s.calls.Add(1)
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.AnimeStore.Upsert(ctx, item)
}

func (s *spyStore) ReplaceAll(ctx context.Context, items []model.Anime) error {
	s.calls.Add(1)
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.AnimeStore.ReplaceAll(ctx, items)
}

type fixture struct {
	now    time.Time
	store  *spyStore
	remote *mockRemote
	svc    *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		store:  &spyStore{AnimeStore: cache.NewMemoryAnimeStore()},
		remote: &mockRemote{},
	}
	f.svc = NewCatalogService(f.store, f.remote, CatalogConfig{
		TTL:   time.Hour,
		Clock: ClockFunc(func() time.Time { return f.now }),
	})
	t.Cleanup(func() { f.remote.AssertExpectations(t) })
	return f
}

func (f *fixture) seed(t *testing.T, items ...model.Anime) {
	t.Helper()
	for _, a := range items {
		require.NoError(t, f.store.AnimeStore.Upsert(context.Background(), a))
	}
}

func (f *fixture) stored(t *testing.T, id int) *model.Anime {
	t.Helper()
	a, err := f.store.AnimeStore.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func anime(id int, title string, rank int) model.Anime {
	r := rank
	return model.Anime{ID: id, Title: title, Rank: &r}
}

func collect[T any](seq iter.Seq[Result[T]]) []Result[T] {
	return slices.Collect(seq)
}

// ---- single-entity read ----

func TestAnime_InvalidID(t *testing.T) {
	for _, id := range []int{0, -1, -5114} {
		f := newFixture(t)

		results := collect(f.svc.Anime(context.Background(), id))

		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Err, model.ErrInvalidArgument)
		assert.Equal(t, SourceNone, results[0].Source)
		assert.Zero(t, f.store.calls.Load(), "no store calls")
		f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
	}
}

func TestAnime_FreshCacheSkipsRemote(t *testing.T) {
	f := newFixture(t)
	cached := anime(7, "Cowboy Bebop", 40)
	cached.LastUpdated = f.now.Add(-59 * time.Minute)
	f.seed(t, cached)

	results := collect(f.svc.Anime(context.Background(), 7))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, SourceCache, results[0].Source)
	assert.Equal(t, "Cowboy Bebop", results[0].Value.Title)
	f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
}

func TestAnime_ExactlyTTLOldIsFresh(t *testing.T) {
	f := newFixture(t)
	cached := anime(7, "Cowboy Bebop", 40)
	cached.LastUpdated = f.now.Add(-time.Hour)
	f.seed(t, cached)

	results := collect(f.svc.Anime(context.Background(), 7))

	assert.Len(t, results, 1)
	f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
}

func TestAnime_StaleCacheThenFresh(t *testing.T) {
	f := newFixture(t)
	cached := anime(42, "old title", 10)
	cached.LastUpdated = f.now.Add(-2 * time.Hour)
	cached.Favorite = true
	f.seed(t, cached)

	fresh := anime(42, "new title", 8)
	f.remote.On("FetchAnime", mock.Anything, 42).Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 42))

	require.Len(t, results, 2)
	assert.Equal(t, SourceCache, results[0].Source)
	assert.Equal(t, "old title", results[0].Value.Title)

	assert.Equal(t, SourceRemote, results[1].Source)
	assert.Equal(t, "new title", results[1].Value.Title)
	assert.True(t, results[1].Value.Favorite)
	assert.Equal(t, f.now, results[1].Value.LastUpdated)

	stored := f.stored(t, 42)
	assert.Equal(t, "new title", stored.Title)
	assert.Equal(t, 8, *stored.Rank)
	assert.True(t, stored.Favorite)
	assert.Equal(t, f.now, stored.LastUpdated)
}

func TestAnime_EmptyCacheRemoteSuccess(t *testing.T) {
	f := newFixture(t)
	fresh := anime(1, "Trigun", 300)
	fresh.Favorite = true // never trusted from the remote
	f.remote.On("FetchAnime", mock.Anything, 1).Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.Equal(t, SourceRemote, results[0].Source)
	assert.False(t, results[0].Value.Favorite)
	assert.NotNil(t, f.stored(t, 1))
}

func TestAnime_EmptyCacheRemoteFails(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchAnime", mock.Anything, 3).Return(nil, errTransport).Once()

	results := collect(f.svc.Anime(context.Background(), 3))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, model.ErrRemoteUnavailable)
	assert.Nil(t, f.stored(t, 3))
}

func TestAnime_StaleCacheRemoteFailsIsSwallowed(t *testing.T) {
	f := newFixture(t)
	cached := anime(9, "Monster", 20)
	cached.LastUpdated = f.now.Add(-3 * time.Hour)
	f.seed(t, cached)
	f.remote.On("FetchAnime", mock.Anything, 9).Return(nil, model.ErrRemoteFormat).Once()

	results := collect(f.svc.Anime(context.Background(), 9))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Monster", results[0].Value.Title)
	assert.Equal(t, cached.LastUpdated, f.stored(t, 9).LastUpdated)
}

func TestAnime_FreshCacheWithBrokenRemote(t *testing.T) {
	f := newFixture(t)
	cached := anime(7, "Cowboy Bebop", 40)
	cached.LastUpdated = f.now
	f.seed(t, cached)
	f.remote.On("FetchAnime", mock.Anything, 7).Return(nil, errTransport).Maybe()

	results := collect(f.svc.Anime(context.Background(), 7))

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
}

func TestAnime_CacheErrorIsAMiss(t *testing.T) {
	f := newFixture(t)
	f.store.readErr = errors.New("disk I/O error")
	fresh := anime(5, "Akira", 100)
	f.remote.On("FetchAnime", mock.Anything, 5).Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 5))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, SourceRemote, results[0].Source)
	assert.NotErrorIs(t, results[0].Err, model.ErrCacheUnavailable)
}

func TestAnime_WriteFailureStillEmits(t *testing.T) {
	f := newFixture(t)
	f.store.writeErr = errors.New("read-only database")
	fresh := anime(5, "Akira", 100)
	f.remote.On("FetchAnime", mock.Anything, 5).Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 5))

	require.Len(t, results, 1)
	assert.Equal(t, "Akira", results[0].Value.Title)
}

func TestAnime_PayloadWithoutID(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchAnime", mock.Anything, 5).Return(&model.Anime{Title: "ghost"}, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 5))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, model.ErrRemoteFormat)
}

func TestAnime_PayloadWithOtherID(t *testing.T) {
	t.Run("empty cache surfaces the error", func(t *testing.T) {
		f := newFixture(t)
		other := anime(43, "someone else", 7)
		f.remote.On("FetchAnime", mock.Anything, 42).Return(&other, nil).Once()

		results := collect(f.svc.Anime(context.Background(), 42))

		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Err, model.ErrRemoteFormat)
		assert.Nil(t, f.stored(t, 42))
		assert.Nil(t, f.stored(t, 43))
	})

	t.Run("cached value is kept", func(t *testing.T) {
		f := newFixture(t)
		cached := anime(42, "Steins;Gate", 3)
		cached.LastUpdated = f.now.Add(-2 * time.Hour)
		f.seed(t, cached)
		other := anime(43, "someone else", 7)
		f.remote.On("FetchAnime", mock.Anything, 42).Return(&other, nil).Once()

		results := collect(f.svc.Anime(context.Background(), 42))

		require.Len(t, results, 1)
		require.NoError(t, results[0].Err)
		assert.Equal(t, SourceCache, results[0].Source)
		assert.Equal(t, 42, results[0].Value.ID)
		assert.Equal(t, cached.LastUpdated, f.stored(t, 42).LastUpdated)
		assert.Nil(t, f.stored(t, 43))
	})
}

func TestAnime_IsLazyAndSingleUse(t *testing.T) {
	f := newFixture(t)
	fresh := anime(1, "Trigun", 300)
	f.remote.On("FetchAnime", mock.Anything, 1).Return(&fresh, nil).Once()

	seq := f.svc.Anime(context.Background(), 1)
	assert.Zero(t, f.store.calls.Load(), "nothing happens before iteration")

	first := collect(seq)
	second := collect(seq)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestAnime_BreakStopsBeforeRemote(t *testing.T) {
	f := newFixture(t)
	cached := anime(42, "stale", 1)
	cached.LastUpdated = f.now.Add(-5 * time.Hour)
	f.seed(t, cached)

	for res := range f.svc.Anime(context.Background(), 42) {
		assert.Equal(t, SourceCache, res.Source)
		break
	}
	f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
}

func TestAnime_CancelledDuringFetchWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fresh := anime(11, "Paprika", 500)
	f.remote.On("FetchAnime", mock.Anything, 11).
		Run(func(mock.Arguments) { cancel() }).
		Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(ctx, 11))

	assert.Empty(t, results)
	assert.Nil(t, f.stored(t, 11))
}

func TestAnime_CancelledBeforeIteration(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := collect(f.svc.Anime(ctx, 11))

	assert.Empty(t, results)
	assert.Zero(t, f.store.calls.Load())
}

// ---- collection read ----

func TestTopAnime_EmptyCacheRemoteSuccess(t *testing.T) {
	f := newFixture(t)
	page := &model.AnimePage{Data: []model.Anime{anime(3, "c", 1), anime(1, "a", 2), anime(2, "b", 3)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, SourceRemote, results[0].Source)

	got := results[0].Value
	require.Len(t, got, 3)
	for i, a := range got {
		assert.Equal(t, i+1, *a.Rank)
		assert.False(t, a.Favorite)
		assert.Equal(t, f.now, a.LastUpdated)
	}

	all, err := f.store.AnimeStore.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTopAnime_FreshCacheSkipsRemote(t *testing.T) {
	f := newFixture(t)
	a, b := anime(1, "a", 1), anime(2, "b", 2)
	a.LastUpdated, b.LastUpdated = f.now.Add(-10*time.Minute), f.now.Add(-50*time.Minute)
	f.seed(t, a, b)

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.Equal(t, SourceCache, results[0].Source)
	assert.Equal(t, []int{1, 2}, ids(results[0].Value))
	f.remote.AssertNotCalled(t, "FetchTop", mock.Anything, mock.Anything)
}

func TestTopAnime_OneStaleMemberTriggersRefresh(t *testing.T) {
	f := newFixture(t)
	a, b, c := anime(1, "a", 1), anime(2, "b", 2), anime(3, "c", 3)
	a.LastUpdated = f.now
	b.LastUpdated = f.now.Add(-time.Minute)
	c.LastUpdated = f.now.Add(-61 * time.Minute)
	f.seed(t, a, b, c)

	page := &model.AnimePage{Data: []model.Anime{anime(1, "a2", 1), anime(2, "b2", 2), anime(3, "c2", 3)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1, "no second emission when the cache was shown")
	assert.Equal(t, SourceCache, results[0].Source)
	assert.Equal(t, "a", results[0].Value[0].Title)

	stored := f.stored(t, 3)
	assert.Equal(t, "c2", stored.Title)
	assert.Equal(t, f.now, stored.LastUpdated)
}

func TestTopAnime_RefreshKeepsFavoriteAndDropsLocalOnly(t *testing.T) {
	f := newFixture(t)
	fav := anime(42, "old", 5)
	fav.Favorite = true
	fav.LastUpdated = f.now.Add(-2 * time.Hour)
	localOnly := anime(99, "gone", 6)
	localOnly.LastUpdated = f.now.Add(-2 * time.Hour)
	f.seed(t, fav, localOnly)

	page := &model.AnimePage{Data: []model.Anime{anime(42, "renamed", 2), anime(43, "newcomer", 3)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	collect(f.svc.TopAnime(context.Background(), 1))

	stored := f.stored(t, 42)
	require.NotNil(t, stored)
	assert.Equal(t, "renamed", stored.Title)
	assert.Equal(t, 2, *stored.Rank)
	assert.True(t, stored.Favorite)
	assert.False(t, f.stored(t, 43).Favorite)
	assert.Nil(t, f.stored(t, 99))
}

func TestTopAnime_EmptyCacheRemoteFails(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchTop", mock.Anything, 1).Return(nil, errTransport).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, model.ErrRemoteUnavailable)
}

func TestTopAnime_StaleCacheRemoteFailsIsSwallowed(t *testing.T) {
	f := newFixture(t)
	a := anime(1, "a", 1)
	a.LastUpdated = f.now.Add(-24 * time.Hour)
	f.seed(t, a)
	f.remote.On("FetchTop", mock.Anything, 1).Return(nil, errTransport).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, SourceCache, results[0].Source)
}

func TestTopAnime_DropsInvalidIDs(t *testing.T) {
	f := newFixture(t)
	page := &model.AnimePage{Data: []model.Anime{anime(0, "zero", 1), anime(5, "ok", 2), anime(-3, "neg", 3)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.Equal(t, []int{5}, ids(results[0].Value))
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTopAnime_PageNormalised(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchTop", mock.Anything, 1).Return(&model.AnimePage{}, nil).Once()

	results := collect(f.svc.TopAnime(context.Background(), -2))

	require.Len(t, results, 1)
	assert.Empty(t, results[0].Value)
}

func TestTopAnime_CacheErrorIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.readErr = errors.New("connection reset")
	page := &model.AnimePage{Data: []model.Anime{anime(1, "a", 1)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	results := collect(f.svc.TopAnime(context.Background(), 1))

	require.Len(t, results, 1)
	assert.Equal(t, SourceRemote, results[0].Source)
}

func TestTopAnime_CancelledDuringFetchWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page := &model.AnimePage{Data: []model.Anime{anime(1, "a", 1)}}
	f.remote.On("FetchTop", mock.Anything, 1).
		Run(func(mock.Arguments) { cancel() }).
		Return(page, nil).Once()

	results := collect(f.svc.TopAnime(ctx, 1))

	assert.Empty(t, results)
	n, err := f.store.AnimeStore.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ---- favorites ----

func TestToggleFavorite_KeepsLastUpdated(t *testing.T) {
	f := newFixture(t)
	a := anime(8, "Nana", 70)
	a.LastUpdated = f.now.Add(-30 * time.Hour)
	f.seed(t, a)

	toggled, err := f.svc.ToggleFavorite(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, toggled.Favorite)

	stored := f.stored(t, 8)
	assert.True(t, stored.Favorite)
	assert.Equal(t, a.LastUpdated, stored.LastUpdated)

	again, err := f.svc.ToggleFavorite(context.Background(), toggled)
	require.NoError(t, err)
	assert.False(t, again.Favorite)
	f.remote.AssertNotCalled(t, "FetchAnime", mock.Anything, mock.Anything)
}

func TestToggleFavorite_OutdatedCopyLeavesRecordAlone(t *testing.T) {
	f := newFixture(t)
	current := anime(42, "new title", 2)
	current.LastUpdated = f.now
	f.seed(t, current)

	outdated := anime(42, "old title", 5)
	outdated.LastUpdated = f.now.Add(-2 * time.Hour)

	toggled, err := f.svc.ToggleFavorite(context.Background(), outdated)
	require.NoError(t, err)
	assert.True(t, toggled.Favorite)
	assert.Equal(t, "new title", toggled.Title)

	stored := f.stored(t, 42)
	assert.True(t, stored.Favorite)
	assert.Equal(t, "new title", stored.Title)
	assert.Equal(t, f.now, stored.LastUpdated)
}

func TestToggleFavorite_NotStoredInsertsCopy(t *testing.T) {
	f := newFixture(t)
	a := anime(9, "Ping Pong", 40)
	a.LastUpdated = f.now.Add(-time.Hour)

	toggled, err := f.svc.ToggleFavorite(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, toggled.Favorite)

	stored := f.stored(t, 9)
	require.NotNil(t, stored)
	assert.True(t, stored.Favorite)
	assert.Equal(t, a.LastUpdated, stored.LastUpdated)
}

func TestToggleFavorite_InvalidID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ToggleFavorite(context.Background(), model.Anime{ID: 0})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Zero(t, f.store.calls.Load())
}

func TestToggleFavorite_SurvivesRefresh(t *testing.T) {
	f := newFixture(t)
	a := anime(42, "Steins;Gate", 3)
	a.LastUpdated = f.now.Add(-2 * time.Hour)
	f.seed(t, a)

	_, err := f.svc.ToggleFavorite(context.Background(), a)
	require.NoError(t, err)

	fresh := anime(42, "Steins;Gate (updated)", 2)
	f.remote.On("FetchAnime", mock.Anything, 42).Return(&fresh, nil).Once()

	results := collect(f.svc.Anime(context.Background(), 42))

	require.Len(t, results, 2)
	assert.True(t, results[1].Value.Favorite)
	stored := f.stored(t, 42)
	assert.Equal(t, "Steins;Gate (updated)", stored.Title)
	assert.True(t, stored.Favorite)
}

func TestToggleFavorite_DuringRefreshIsNotLost(t *testing.T) {
	f := newFixture(t)
	a := anime(42, "Steins;Gate", 3)
	a.LastUpdated = f.now.Add(-2 * time.Hour)
	f.seed(t, a)

	fetching := make(chan struct{})
	release := make(chan struct{})
	page := &model.AnimePage{Data: []model.Anime{anime(42, "Steins;Gate", 1)}}
	f.remote.On("FetchTop", mock.Anything, 1).
		Run(func(mock.Arguments) {
			close(fetching)
			<-release
		}).
		Return(page, nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		collect(f.svc.TopAnime(context.Background(), 1))
	}()

	// The collection read has loaded the cache (favorite=false) and is waiting on the remote.
	<-fetching
	_, err := f.svc.ToggleFavoriteByID(context.Background(), 42)
	require.NoError(t, err)
	close(release)
	wg.Wait()

	assert.True(t, f.stored(t, 42).Favorite)
}

func TestToggleFavoriteByID_NotCached(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ToggleFavoriteByID(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetFavoriteAndFavorites(t *testing.T) {
	f := newFixture(t)
	a, b, c := anime(1, "a", 1), anime(2, "b", 2), anime(3, "c", 3)
	a.LastUpdated = f.now.Add(-3 * time.Hour)
	b.LastUpdated = f.now.Add(-time.Hour)
	c.LastUpdated = f.now.Add(-2 * time.Hour)
	f.seed(t, a, b, c)

	ctx := context.Background()
	require.NoError(t, f.svc.SetFavorite(ctx, 1, true))
	require.NoError(t, f.svc.SetFavorite(ctx, 2, true))
	require.NoError(t, f.svc.SetFavorite(ctx, 2, true))

	favs, err := f.svc.Favorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(favs))
	assert.Equal(t, a.LastUpdated, f.stored(t, 1).LastUpdated)

	assert.ErrorIs(t, f.svc.SetFavorite(ctx, 77, true), model.ErrNotFound)
	assert.ErrorIs(t, f.svc.SetFavorite(ctx, 0, true), model.ErrInvalidArgument)
}

// ---- maintenance ----

func TestRefreshTop(t *testing.T) {
	f := newFixture(t)
	fav := anime(1, "a", 1)
	fav.Favorite = true
	fav.LastUpdated = f.now
	f.seed(t, fav)

	page := &model.AnimePage{Data: []model.Anime{anime(1, "a2", 1), anime(2, "b", 2)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	merged, err := f.svc.RefreshTop(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.True(t, merged[0].Favorite)
	assert.Equal(t, "a2", f.stored(t, 1).Title)
}

func TestRefreshTop_KeepsRecordsMissingFromPage(t *testing.T) {
	f := newFixture(t)
	local := anime(9, "local only", 90)
	local.Favorite = true
	local.LastUpdated = f.now.Add(-3 * time.Hour)
	f.seed(t, local)

	page := &model.AnimePage{Data: []model.Anime{anime(1, "a", 1)}}
	f.remote.On("FetchTop", mock.Anything, 1).Return(page, nil).Once()

	_, err := f.svc.RefreshTop(context.Background(), 1)
	require.NoError(t, err)

	kept := f.stored(t, 9)
	require.NotNil(t, kept)
	assert.True(t, kept.Favorite)
	assert.Equal(t, local.LastUpdated, kept.LastUpdated)
	assert.NotNil(t, f.stored(t, 1))
}

func TestRefreshTop_Errors(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchTop", mock.Anything, 1).Return(nil, errTransport).Once()

	_, err := f.svc.RefreshTop(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)

	f.store.writeErr = errors.New("disk full")
	f.remote.On("FetchTop", mock.Anything, 2).Return(&model.AnimePage{Data: []model.Anime{anime(1, "a", 1)}}, nil).Once()

	_, err = f.svc.RefreshTop(context.Background(), 2)
	assert.ErrorIs(t, err, model.ErrCacheUnavailable)
}

func TestClearCacheAndSize(t *testing.T) {
	f := newFixture(t)
	f.seed(t, anime(1, "a", 1), anime(2, "b", 2))
	ctx := context.Background()

	n, err := f.svc.CacheSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, f.svc.ClearCache(ctx))
	n, err = f.svc.CacheSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1h0m0s", stats["freshness_ttl"])
}

func TestNewCatalogService_Defaults(t *testing.T) {
	svc := NewCatalogService(cache.NewMemoryAnimeStore(), &mockRemote{}, CatalogConfig{})
	assert.Equal(t, DefaultTTL, svc.TTL())
	assert.IsType(t, SystemClock{}, svc.clock)
}

func ids(list []model.Anime) []int {
	out := make([]int, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
