package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/edgar"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/cache"
	"github.com/ternarybob/quartus/internal/services/series"
)

// SeriesHandler serves resolved quarterly series for charting.
type SeriesHandler struct {
	builder *series.Builder
	cache   *cache.Service
	logger  arbor.ILogger
}

func NewSeriesHandler(builder *series.Builder, cacheService *cache.Service, logger arbor.ILogger) *SeriesHandler {
	return &SeriesHandler{
		builder: builder,
		cache:   cacheService,
		logger:  logger,
	}
}

// GetSeriesHandler handles GET /api/series?ticker=NVDA&concept=us-gaap:Revenues.
// Without a concept parameter it resolves the best-covered revenue concept.
// A cold ticker is fetched synchronously; a stale but populated ticker is
// served from cache while a refresh runs in the background.
func (h *SeriesHandler) GetSeriesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker parameter is required")
		return
	}
	concept := strings.TrimSpace(r.URL.Query().Get("concept"))

	ctx := r.Context()
	staleness := h.cache.CheckStaleness(ctx, ticker, time.Now().UTC())
	if staleness.IsStale {
		if staleness.Reason == cache.ReasonNotCached {
			if err := h.cache.Refresh(ctx, ticker); err != nil && !errors.Is(err, cache.ErrRefreshInFlight) {
				var notFound *edgar.NotFoundError
				if errors.As(err, &notFound) {
					WriteError(w, http.StatusNotFound, notFound.Error())
					return
				}
				h.logger.Error().Err(err).Str("ticker", ticker).Msg("Refresh failed")
				WriteError(w, http.StatusBadGateway, "failed to fetch company facts")
				return
			}
		} else {
			// Serve what we have; refresh out of band.
			go func() {
				bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()
				if err := h.cache.Refresh(bg, ticker); err != nil && !errors.Is(err, cache.ErrRefreshInFlight) {
					h.logger.Warn().Err(err).Str("ticker", ticker).Msg("Background refresh failed")
				}
			}()
		}
	}

	var (
		result *models.SelectedSeries
		err    error
	)
	if concept == "" {
		result, err = h.builder.BuildBest(ctx, ticker, edgar.RevenueConcepts)
	} else {
		result, err = h.builder.Build(ctx, ticker, concept)
	}
	if err != nil {
		if models.IsNotFound(err) {
			WriteError(w, http.StatusNotFound, "no cached quarters for ticker "+ticker)
			return
		}
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Series build failed")
		WriteError(w, http.StatusInternalServerError, "failed to build series")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series":    result,
		"staleness": staleness,
	})
}

// ConceptsHandler handles GET /api/concepts, listing the extraction
// catalog so UI clients can offer a concept picker.
func (h *SeriesHandler) ConceptsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"concepts":         edgar.DefaultConcepts,
		"revenue_concepts": edgar.RevenueConcepts,
	})
}
