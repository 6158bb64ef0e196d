package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animesync/internal/app"
	"animesync/internal/cache"
	"animesync/internal/config"
	"animesync/internal/model"
	"animesync/internal/service"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubRemote struct {
	top   []model.Anime
	byID  map[int]model.Anime
	err   error
	calls int
}

func (s *stubRemote) FetchTop(ctx context.Context, page int) (*model.AnimePage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.AnimePage{Data: s.top}, nil
}

func (s *stubRemote) FetchAnime(ctx context.Context, id int) (*model.Anime, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &a, nil
}

type harness struct {
	store  *cache.MemoryAnimeStore
	remote *stubRemote
}

func newHarness() *harness {
	return &harness{
		store:  cache.NewMemoryAnimeStore(),
		remote: &stubRemote{byID: map[int]model.Anime{}},
	}
}

func (h *harness) open(opts *RootOptions, cmd *cobra.Command) (*app.App, error) {
	cfg := &config.Config{}
	cfg.Cache.Type = config.CacheMemory
	return &app.App{
		Config: cfg,
		Store:  h.store,
		Catalog: service.NewCatalogService(h.store, h.remote, service.CatalogConfig{
			TTL:   time.Hour,
			Clock: service.ClockFunc(func() time.Time { return now }),
		}),
	}, nil
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand(h.open)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (h *harness) seed(t *testing.T, items ...model.Anime) {
	t.Helper()
	for _, a := range items {
		require.NoError(t, h.store.Upsert(context.Background(), a))
	}
}

func item(id int, title string, rank int) model.Anime {
	return model.Anime{ID: id, Title: title, Rank: &rank, LastUpdated: now}
}

func jsonLines(t *testing.T, out string) []CLIResponse {
	t.Helper()
	var lines []CLIResponse
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		var r CLIResponse
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), sc.Text())
		lines = append(lines, r)
	}
	return lines
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand(newHarness().open)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"top", "get", "favorite", "favorites", "refresh", "clear", "stats"}, names)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := newHarness().run(t, "--format", "yaml", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestTop_EmptyCacheFetchesOnce(t *testing.T) {
	h := newHarness()
	h.remote.top = []model.Anime{item(1, "Frieren", 1), item(2, "Gintama", 2)}

	out, _, err := h.run(t, "top")
	require.NoError(t, err)
	assert.Contains(t, out, "[remote]")
	assert.Contains(t, out, "#1  1       Frieren")
	assert.Equal(t, 1, h.remote.calls)

	out, _, err = h.run(t, "top")
	require.NoError(t, err)
	assert.Contains(t, out, "[cache]")
	assert.NotContains(t, out, "[remote]")
	assert.Equal(t, 1, h.remote.calls)
}

func TestTop_JSON(t *testing.T) {
	h := newHarness()
	h.seed(t, item(1, "A", 1), item(2, "B", 2))

	out, _, err := h.run(t, "--format", "json", "top")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok", lines[0].Status)
	assert.Equal(t, "cache", lines[0].Source)
	assert.Len(t, lines[0].Data, 2)
}

func TestTop_RemoteFailure(t *testing.T) {
	h := newHarness()
	h.remote.err = model.ErrRemoteUnavailable

	out, _, err := h.run(t, "--format", "json", "top")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	lines := jsonLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0].Status)
	assert.Equal(t, ErrCodeUnavailable, lines[0].Error.Code)
}

func TestGet_StaleThenRemote(t *testing.T) {
	h := newHarness()
	stale := item(5, "Old", 3)
	stale.LastUpdated = now.Add(-3 * time.Hour)
	h.seed(t, stale)
	h.remote.byID[5] = item(5, "New", 3)

	out, _, err := h.run(t, "--format", "json", "get", "5")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "cache", lines[0].Source)
	assert.Equal(t, "remote", lines[1].Source)
}

func TestGet_InvalidID(t *testing.T) {
	tests := []string{"abc", "0", "-4"}

	for _, arg := range tests {
		t.Run(arg, func(t *testing.T) {
			h := newHarness()
			_, stderr, err := h.run(t, "get", "--", arg)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stderr, ErrCodeInvalid)
			assert.Zero(t, h.remote.calls)
		})
	}
}

func TestFavorite_ToggleAndSet(t *testing.T) {
	h := newHarness()
	h.seed(t, item(3, "Monster", 9))

	out, _, err := h.run(t, "favorite", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "3 added to favorites")

	out, _, err = h.run(t, "favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "Monster *")

	out, _, err = h.run(t, "favorite", "3", "--set=false")
	require.NoError(t, err)
	assert.Contains(t, out, "3 removed from favorites")

	out, _, err = h.run(t, "favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "No favorites yet")
	assert.Zero(t, h.remote.calls)
}

func TestFavorite_NotCached(t *testing.T) {
	h := newHarness()

	_, stderr, err := h.run(t, "favorite", "42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeNotFound)
}

func TestRefreshClearStats(t *testing.T) {
	h := newHarness()
	h.remote.top = []model.Anime{item(1, "A", 1), item(2, "B", 2), item(3, "C", 3)}

	out, _, err := h.run(t, "refresh", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed 3 anime from page 2")

	out, _, err = h.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "backend:       memory")
	assert.Contains(t, out, "total_anime:   3")
	assert.Contains(t, out, "freshness_ttl: 1h0m0s")

	out, _, err = h.run(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared")

	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
