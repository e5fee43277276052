package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/cache"
	"github.com/ternarybob/quartus/internal/services/events"
	"github.com/ternarybob/quartus/internal/services/selection"
	"github.com/ternarybob/quartus/internal/services/series"
	"github.com/ternarybob/quartus/internal/storage/badger"
)

// stubFetcher serves one ticker's canned quarters.
type stubFetcher struct {
	quarters []interfaces.RawQuarter
}

func (f *stubFetcher) ResolveCIK(ctx context.Context, ticker string) (string, string, error) {
	return "0001045810", "NVIDIA CORP", nil
}

func (f *stubFetcher) FetchRecent(ctx context.Context, cik string, maxQuarters int) ([]interfaces.RawQuarter, error) {
	return f.quarters, nil
}

type testEnv struct {
	cache  *cache.Service
	series *SeriesHandler
	caches *CacheHandler
}

func newTestEnv(t *testing.T, fetcher interfaces.FetchService) *testEnv {
	t.Helper()

	logger := common.GetLogger()
	mgr, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	cacheConfig := &common.CacheConfig{
		CalculationQuarters: 15,
		DisplayQuarters:     12,
		ReportingLagDays:    45,
	}
	cacheService := cache.NewService(mgr, fetcher, events.NewService(logger), cacheConfig, logger)
	builder := series.NewBuilder(cacheService, selection.NewSelector(120),
		&common.SeriesConfig{MaxGrowthPercent: 500}, logger)

	return &testEnv{
		cache:  cacheService,
		series: NewSeriesHandler(builder, cacheService, logger),
		caches: NewCacheHandler(cacheService, logger),
	}
}

func revenueQuarters(labels ...string) []interfaces.RawQuarter {
	out := make([]interfaces.RawQuarter, len(labels))
	for i, label := range labels {
		fq, _ := common.ParseQuarterLabel(label)
		end := fq.QuarterEnd()
		start := end.AddDate(0, -3, 1)
		out[i] = interfaces.RawQuarter{
			QuarterLabel: label,
			Facts: []models.Fact{{
				Concept:     "us-gaap:Revenues",
				Value:       models.Float(float64(1000 + i)),
				Unit:        "USD",
				PeriodStart: &start,
				PeriodEnd:   &end,
				FormType:    "10-Q",
			}},
		}
	}
	return out
}

func TestGetSeriesHandler(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{quarters: revenueQuarters("2025_Q1", "2024_Q4", "2024_Q3")})

	req := httptest.NewRequest("GET", "/api/series?ticker=nvda&concept=us-gaap:Revenues", nil)
	rec := httptest.NewRecorder()
	env.series.GetSeriesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Series    models.SelectedSeries  `json:"series"`
		Staleness cache.StalenessResult  `json:"staleness"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NVDA", body.Series.Ticker)
	assert.Equal(t, "us-gaap:Revenues", body.Series.Concept)
	require.Len(t, body.Series.Points, 3)
	assert.Equal(t, "2024_Q3", body.Series.Points[0].QuarterLabel)
	assert.Equal(t, 3, body.Series.ResolvedCount())
}

func TestGetSeriesHandler_MissingTicker(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	req := httptest.NewRequest("GET", "/api/series", nil)
	rec := httptest.NewRecorder()
	env.series.GetSeriesHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheStatusHandler_Uncached(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	req := httptest.NewRequest("GET", "/api/cache/NVDA", nil)
	rec := httptest.NewRecorder()
	env.caches.StatusHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["cached"])
}

func TestCacheStatusHandler_Cached(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{quarters: revenueQuarters("2025_Q1")})
	require.NoError(t, env.cache.Refresh(context.Background(), "NVDA"))

	req := httptest.NewRequest("GET", "/api/cache/NVDA", nil)
	rec := httptest.NewRecorder()
	env.caches.StatusHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["cached"])
}

func TestRefreshHandler_Conflict(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{quarters: revenueQuarters("2025_Q1")})

	req := httptest.NewRequest("POST", "/api/cache/NVDA/refresh", nil)
	rec := httptest.NewRecorder()
	env.caches.RefreshHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// While the background refresh may still be running, a second request
	// either conflicts or, if the first completed already, starts cleanly.
	rec2 := httptest.NewRecorder()
	env.caches.RefreshHandler(rec2, req)
	assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, rec2.Code)

	// Wait for completion so the temp dir can be removed.
	require.Eventually(t, func() bool {
		_, err := env.cache.Index("NVDA")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteHandler(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{quarters: revenueQuarters("2025_Q1")})
	require.NoError(t, env.cache.Refresh(context.Background(), "NVDA"))

	req := httptest.NewRequest("DELETE", "/api/cache/NVDA", nil)
	rec := httptest.NewRecorder()
	env.caches.DeleteHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.cache.Index("NVDA")
	assert.True(t, models.IsNotFound(err))
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{quarters: revenueQuarters("2025_Q1", "2024_Q4")})
	require.NoError(t, env.cache.Refresh(context.Background(), "NVDA"))

	req := httptest.NewRequest("GET", "/api/cache/stats", nil)
	rec := httptest.NewRecorder()
	env.caches.StatsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Tickers)
	assert.Equal(t, 2, stats.TotalQuarters)
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/health", nil)
	NewAPIHandler().HealthHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
