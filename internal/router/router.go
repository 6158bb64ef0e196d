package router

import (
	"net/http"

	"animesync/internal/handler"
	"animesync/internal/logging"
	"animesync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	AnimeHandler *handler.AnimeHandler
	AdminHandler *handler.AdminHandler
	AdminAuth    func(http.Handler) http.Handler
	Logger       logging.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Catalog endpoints (public)
		if cfg.AnimeHandler != nil {
			r.Get("/anime/top", cfg.AnimeHandler.TopAnime)
			r.Route("/anime/{id}", func(r chi.Router) {
				r.Get("/", cfg.AnimeHandler.GetAnime)
				r.Put("/favorite", cfg.AnimeHandler.SetFavorite)
				r.Post("/favorite/toggle", cfg.AnimeHandler.ToggleFavorite)
			})
			r.Get("/favorites", cfg.AnimeHandler.Favorites)
		}

		// Admin endpoints
		if cfg.AdminHandler != nil {
			r.Group(func(r chi.Router) {
				if cfg.AdminAuth != nil {
					r.Use(cfg.AdminAuth)
				}
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/cache/clear", cfg.AdminHandler.ClearCache)
					r.Post("/refresh", cfg.AdminHandler.Refresh)
				})
			})
		}
	})

	return r
}
