package service

import (
	"context"
	"sync"
	"time"

	"animesync/internal/logging"
)

// RefreshConfig holds configuration for the refresh scheduler.
type RefreshConfig struct {
	// Interval is how often the top collection is read.
	// Default: the catalog TTL
	Interval time.Duration

	// Timeout bounds one run.
	// Default: 2 minutes
	Timeout time.Duration

	// InitialDelay is the wait before the first run after Start.
	InitialDelay time.Duration
}

// RefreshScheduler keeps the top collection warm by reading it periodically.
// A read only reaches the remote source when the cached collection is stale.
type RefreshScheduler struct {
	catalog   *CatalogService
	config    RefreshConfig
	log       logging.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewRefreshScheduler creates a new refresh scheduler.
func NewRefreshScheduler(catalog *CatalogService, config RefreshConfig, log logging.Logger) *RefreshScheduler {
	if config.Interval <= 0 {
		config.Interval = catalog.TTL()
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	if log == nil {
		log = logging.Nop()
	}

	return &RefreshScheduler{
		catalog: catalog,
		config:  config,
		log:     log.With("component", "refresh"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the refresh scheduler.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.log.Info(context.Background(), "started", "interval", s.config.Interval)

	s.wg.Add(1)
	go s.run()
}

// run is the main refresh loop.
func (s *RefreshScheduler) run() {
	defer s.wg.Done()

	if s.config.InitialDelay > 0 {
		select {
		case <-time.After(s.config.InitialDelay):
		case <-s.stopCh:
			return
		}
	}
	s.runRefresh()

	for {
		select {
		case <-s.ticker.C:
			s.runRefresh()
		case <-s.stopCh:
			s.log.Info(context.Background(), "stopped")
			return
		}
	}
}

// runRefresh drains one collection read.
func (s *RefreshScheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for res := range s.catalog.TopAnime(ctx, 1) {
		if res.Err != nil {
			s.log.Error(ctx, "refresh failed", "error", res.Err)
			continue
		}
		s.log.Debug(ctx, "top collection read", "source", res.Source.String(), "count", len(res.Value))
	}
}

// Stop stops the refresh scheduler and waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
	})
	s.wg.Wait()
}
