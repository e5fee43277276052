package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/cache"
)

// CacheHandler exposes cache inspection and refresh operations.
type CacheHandler struct {
	cache  *cache.Service
	logger arbor.ILogger
}

func NewCacheHandler(cacheService *cache.Service, logger arbor.ILogger) *CacheHandler {
	return &CacheHandler{
		cache:  cacheService,
		logger: logger,
	}
}

// tickerFromPath extracts the ticker from /api/cache/{ticker}[/suffix].
func tickerFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/cache/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToUpper(strings.TrimSpace(rest))
}

// StatusHandler handles GET /api/cache/{ticker}: the ticker's cache index
// plus its staleness assessment.
func (h *CacheHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ticker := tickerFromPath(r.URL.Path)
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	staleness := h.cache.CheckStaleness(r.Context(), ticker, time.Now().UTC())

	idx, err := h.cache.Index(ticker)
	if err != nil {
		if models.IsNotFound(err) {
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"ticker":    ticker,
				"cached":    false,
				"staleness": staleness,
			})
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to read cache index")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    ticker,
		"cached":    true,
		"index":     idx,
		"staleness": staleness,
	})
}

// RefreshHandler handles POST /api/cache/{ticker}/refresh. The refresh
// runs in the background; a refresh already in flight for the ticker
// yields 409. The force query parameter drops cached quarters first.
func (h *CacheHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	ticker := tickerFromPath(r.URL.Path)
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := h.cache.StartRefresh(ticker, force, 2*time.Minute); err != nil {
		if errors.Is(err, cache.ErrRefreshInFlight) {
			WriteError(w, http.StatusConflict, "refresh already in flight for "+ticker)
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteStarted(w, "refresh started for "+ticker)
}

// DeleteHandler handles DELETE /api/cache/{ticker}.
func (h *CacheHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	ticker := tickerFromPath(r.URL.Path)
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	if err := h.cache.Delete(ticker); err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Cache delete failed")
		WriteError(w, http.StatusInternalServerError, "failed to delete cache for "+ticker)
		return
	}

	WriteSuccess(w, "cache deleted for "+ticker)
}

// StatsHandler handles GET /api/cache/stats.
func (h *CacheHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.cache.GetStats()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to collect cache stats")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
