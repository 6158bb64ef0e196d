package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"animesync/internal/logging"
	"animesync/internal/service"
	"animesync/pkg/apierror"
	"animesync/pkg/response"
)

// AdminHandler handles cache maintenance HTTP requests.
type AdminHandler struct {
	catalog   *service.CatalogService
	cacheType string
	log       logging.Logger
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(catalog *service.CatalogService, cacheType string, log logging.Logger) *AdminHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AdminHandler{
		catalog:   catalog,
		cacheType: cacheType,
		log:       log.With("component", "admin_handler"),
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	cacheStats, err := h.catalog.Stats(r.Context())
	if err == nil {
		cacheStats["status"] = "connected"
		stats["cache"] = cacheStats
	} else {
		stats["cache"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ClearCache handles POST /api/v1/admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.ClearCache(r.Context()); err != nil {
		h.log.Error(r.Context(), "failed to clear cache", "error", err)
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"cleared": true})
}

// Refresh handles POST /api/v1/admin/refresh?page=N
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("page must be an integer"))
			return
		}
		page = max(n, 1)
	}

	list, err := h.catalog.RefreshTop(r.Context(), page)
	if err != nil {
		h.log.Warn(r.Context(), "manual refresh failed", "page", page, "error", err)
		writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"page":      page,
		"refreshed": len(list),
	})
}
