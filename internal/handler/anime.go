package handler

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"strings"

	"animesync/internal/logging"
	"animesync/internal/model"
	"animesync/internal/service"
	"animesync/internal/view"
	"animesync/pkg/apierror"
	"animesync/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AnimeHandler handles catalog HTTP requests.
type AnimeHandler struct {
	catalog *service.CatalogService
	log     logging.Logger
}

// NewAnimeHandler creates a new anime handler.
func NewAnimeHandler(catalog *service.CatalogService, log logging.Logger) *AnimeHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AnimeHandler{
		catalog: catalog,
		log:     log.With("component", "anime_handler"),
	}
}

// TopAnimeResponse is the payload of the top collection endpoint.
type TopAnimeResponse struct {
	Page   int              `json:"page"`
	Genre  string           `json:"genre"`
	Genres []string         `json:"genres"`
	Anime  []model.Anime    `json:"anime"`
	Source service.Source   `json:"source"`
	Trail  []service.Source `json:"sources,omitempty"`
}

// AnimeResponse is the payload of the single title endpoint.
type AnimeResponse struct {
	Anime  model.Anime      `json:"anime"`
	Title  string           `json:"display_title"`
	Source service.Source   `json:"source"`
	Trail  []service.Source `json:"sources,omitempty"`
}

// streamEvent is one NDJSON line of a streamed read.
type streamEvent struct {
	Source service.Source  `json:"source"`
	Data   interface{}     `json:"data,omitempty"`
	Error  *apierror.Error `json:"error,omitempty"`
}

// TopAnime handles GET /api/v1/anime/top?page=N&genre=G
func (h *AnimeHandler) TopAnime(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("page must be an integer"))
			return
		}
		page = max(n, 1)
	}
	genre := r.URL.Query().Get("genre")

	shape := func(res service.Result[[]model.Anime]) TopAnimeResponse {
		list := view.Dedupe(res.Value)
		return TopAnimeResponse{
			Page:   page,
			Genre:  orAll(genre),
			Genres: view.Genres(list),
			Anime:  view.FilterByGenre(list, genre),
			Source: res.Source,
		}
	}

	seq := h.catalog.TopAnime(r.Context(), page)
	if wantsStream(r) {
		streamResults(r.Context(), w, h.log, seq, func(res service.Result[[]model.Anime]) interface{} {
			return shape(res)
		})
		return
	}

	last, trail, ok := lastResult(seq)
	if !ok {
		writeError(w, r.Context().Err())
		return
	}
	if last.Err != nil {
		writeError(w, last.Err)
		return
	}

	resp := shape(last)
	resp.Trail = trail
	response.OK(w, resp)
}

// GetAnime handles GET /api/v1/anime/{id}
func (h *AnimeHandler) GetAnime(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	shape := func(res service.Result[model.Anime]) AnimeResponse {
		return AnimeResponse{Anime: res.Value, Title: res.Value.DisplayTitle(), Source: res.Source}
	}

	seq := h.catalog.Anime(r.Context(), id)
	if wantsStream(r) {
		streamResults(r.Context(), w, h.log, seq, func(res service.Result[model.Anime]) interface{} {
			return shape(res)
		})
		return
	}

	last, trail, ok := lastResult(seq)
	if !ok {
		writeError(w, r.Context().Err())
		return
	}
	if last.Err != nil {
		writeError(w, last.Err)
		return
	}

	resp := shape(last)
	resp.Trail = trail
	response.OK(w, resp)
}

// ToggleFavorite handles POST /api/v1/anime/{id}/favorite/toggle
func (h *AnimeHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	anime, err := h.catalog.ToggleFavoriteByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"id":       anime.ID,
		"favorite": anime.Favorite,
	})
}

// FavoriteRequest is the body of the set-favorite endpoint.
type FavoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

// SetFavorite handles PUT /api/v1/anime/{id}/favorite
func (h *AnimeHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req FavoriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	if req.Favorite == nil {
		response.Error(w, apierror.ValidationError("invalid request",
			apierror.FieldError{Field: "favorite", Message: "is required"}))
		return
	}

	if err := h.catalog.SetFavorite(r.Context(), id, *req.Favorite); err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"id":       id,
		"favorite": *req.Favorite,
	})
}

// Favorites handles GET /api/v1/favorites
func (h *AnimeHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Favorites(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"count": len(list),
		"anime": list,
	})
}

func animeID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, apierror.BadRequest("id must be an integer")
	}
	return id, nil
}

func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), response.NDJSONContentType)
}

func orAll(genre string) string {
	if genre == "" {
		return view.AllGenres
	}
	return genre
}

// lastResult drains seq and returns its final element with the sources of
// every successful one. ok is false when seq yielded nothing.
func lastResult[T any](seq iter.Seq[service.Result[T]]) (last service.Result[T], trail []service.Source, ok bool) {
	for res := range seq {
		last, ok = res, true
		if res.Err == nil {
			trail = append(trail, res.Source)
		}
	}
	return last, trail, ok
}

// streamResults writes one NDJSON line per element as it is produced.
func streamResults[T any](ctx context.Context, w http.ResponseWriter, log logging.Logger, seq iter.Seq[service.Result[T]], shape func(service.Result[T]) interface{}) {
	stream := response.NewStream(w)
	for res := range seq {
		ev := streamEvent{Source: res.Source}
		if res.Err != nil {
			ev.Error = toAPIError(res.Err)
		} else {
			ev.Data = shape(res)
		}
		if err := stream.Send(ev); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn(ctx, "stream write failed", "error", err)
			}
			return
		}
	}
}
