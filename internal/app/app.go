// Package app assembles the catalog service, its cache store and the HTTP
// surface from configuration. Both binaries start here.
package app

import (
	"fmt"
	"net/http"

	"animesync/internal/cache"
	"animesync/internal/config"
	"animesync/internal/handler"
	"animesync/internal/logging"
	"animesync/internal/middleware"
	"animesync/internal/remote"
	"animesync/internal/repository"
	"animesync/internal/router"
	"animesync/internal/service"
)

// App owns the long-lived collaborators of one process.
type App struct {
	Config    *config.Config
	Store     repository.AnimeStore
	Remote    *remote.Client
	Catalog   *service.CatalogService
	Scheduler *service.RefreshScheduler
	Log       logging.Logger
}

// New opens the configured cache store and wires the catalog service on top.
// The background refresh is created only when REFRESH_INTERVAL is set.
func New(cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	store, err := OpenStore(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(remote.Options{
		BaseURL:    cfg.Remote.BaseURL,
		Timeout:    cfg.Remote.Timeout,
		RPS:        cfg.Remote.RPS,
		MaxRetries: cfg.Remote.MaxRetries,
		UserAgent:  cfg.Remote.UserAgent,
		Logger:     log,
	})

	catalog := service.NewCatalogService(store, client, service.CatalogConfig{
		TTL:    cfg.Cache.TTL,
		Logger: log,
	})

	a := &App{
		Config:  cfg,
		Store:   store,
		Remote:  client,
		Catalog: catalog,
		Log:     log,
	}
	if cfg.Refresh.Interval > 0 {
		a.Scheduler = service.NewRefreshScheduler(catalog, service.RefreshConfig{
			Interval: cfg.Refresh.Interval,
		}, log)
	}
	return a, nil
}

// OpenStore returns the cache store selected by cfg.Type.
func OpenStore(cfg config.CacheConfig, log logging.Logger) (repository.AnimeStore, error) {
	var (
		store repository.AnimeStore
		err   error
	)
	switch cfg.Type {
	case config.CacheMemory:
		store = cache.NewMemoryAnimeStore()
	case config.CacheRedis:
		store, err = cache.NewRedisAnimeStore(cache.RedisStoreConfig{
			Addr:      cfg.RedisAddress(),
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, log)
	case config.CachePostgres:
		store, err = repository.NewPostgresAnimeStore(cfg.PostgresDSN(), log)
	case config.CacheMySQL:
		store, err = repository.NewMySQLAnimeStore(cfg.MySQLDSN(), log)
	case config.CacheMongoDB:
		store, err = repository.NewMongoAnimeStore(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, log)
	case config.CacheSQLite, "":
		store, err = repository.NewSQLiteAnimeStore(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Type, err)
	}
	return store, nil
}

// Handler builds the HTTP router.
func (a *App) Handler() http.Handler {
	return router.New(router.Config{
		Handler:      handler.New(a.Catalog, a.Config.App.Name, a.Config.App.Version),
		AnimeHandler: handler.NewAnimeHandler(a.Catalog, a.Log),
		AdminHandler: handler.NewAdminHandler(a.Catalog, a.Config.Cache.Type, a.Log),
		AdminAuth:    middleware.NewAPIKeyAuth(a.Config.Admin.APIKeys),
		Logger:       a.Log,
	})
}

// Start launches background work.
func (a *App) Start() {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
}

// Close stops background work and releases the cache store.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	return a.Store.Close()
}
