package badger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := &common.BadgerConfig{Path: t.TempDir()}
	mgr, err := NewManager(common.GetLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return mgr.(*Manager)
}

func testBatch(ticker, label string, facts []models.Fact) *models.QuarterBatch {
	return models.NewQuarterBatch(ticker, label, facts, time.Now().UTC())
}

func revenueFact(value float64, end *time.Time) models.Fact {
	return models.Fact{
		Concept:   "us-gaap:Revenues",
		Value:     models.Float(value),
		Unit:      "USD",
		PeriodEnd: end,
		FormType:  "10-Q",
	}
}

func TestFactStorage_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	end := models.Date(2025, 3, 31)
	batch := testBatch("AAPL", "2025_Q1", []models.Fact{revenueFact(95e9, end)})
	require.NoError(t, store.PutBatch(batch))

	got, err := store.GetBatch("AAPL", "2025_Q1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, "2025_Q1", got.QuarterLabel)
	require.Len(t, got.Facts, 1)
	assert.Equal(t, 95e9, *got.Facts[0].Value)
	assert.Equal(t, models.CurrentSchemaVersion, got.SchemaVersion)
}

func TestFactStorage_GetBatch_Miss(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.FactStorage().GetBatch("AAPL", "2025_Q1")
	assert.True(t, models.IsNotFound(err))
}

func TestFactStorage_PutBatch_Overwrite(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	end := models.Date(2025, 3, 31)
	first := testBatch("AAPL", "2025_Q1", []models.Fact{
		revenueFact(90e9, end),
		revenueFact(91e9, end),
	})
	require.NoError(t, store.PutBatch(first))

	// A refetch replaces the batch wholesale: the old facts must be gone,
	// not merged with the new ones.
	second := testBatch("AAPL", "2025_Q1", []models.Fact{revenueFact(95e9, end)})
	require.NoError(t, store.PutBatch(second))

	got, err := store.GetBatch("AAPL", "2025_Q1")
	require.NoError(t, err)
	require.Len(t, got.Facts, 1)
	assert.Equal(t, 95e9, *got.Facts[0].Value)
}

func TestFactStorage_SchemaVersionMismatch(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	batch := testBatch("AAPL", "2025_Q1", nil)
	batch.SchemaVersion = models.CurrentSchemaVersion + 1
	require.NoError(t, mgr.db.Store().Upsert(batch.ID, batch))

	_, err := store.GetBatch("AAPL", "2025_Q1")
	assert.True(t, models.IsNotFound(err), "stale schema version should read as a miss")

	labels, err := store.ListQuarters("AAPL")
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestFactStorage_ListQuarters_Order(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	for _, label := range []string{"2024_Q3", "2025_Q1", "2024_Q4", "2023_Q2"} {
		require.NoError(t, store.PutBatch(testBatch("MSFT", label, nil)))
	}

	labels, err := store.ListQuarters("MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_Q1", "2024_Q4", "2024_Q3", "2023_Q2"}, labels)
}

func TestFactStorage_ListQuarters_TickerIsolation(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	require.NoError(t, store.PutBatch(testBatch("AAPL", "2025_Q1", nil)))
	require.NoError(t, store.PutBatch(testBatch("MSFT", "2025_Q1", nil)))
	require.NoError(t, store.PutBatch(testBatch("MSFT", "2024_Q4", nil)))

	labels, err := store.ListQuarters("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_Q1"}, labels)
}

func TestFactStorage_DeleteTicker(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	require.NoError(t, store.PutBatch(testBatch("AAPL", "2025_Q1", nil)))
	require.NoError(t, store.PutBatch(testBatch("AAPL", "2024_Q4", nil)))
	require.NoError(t, store.PutBatch(testBatch("MSFT", "2025_Q1", nil)))

	require.NoError(t, store.DeleteTicker("AAPL"))

	labels, err := store.ListQuarters("AAPL")
	require.NoError(t, err)
	assert.Empty(t, labels)

	// Other tickers are untouched.
	labels, err = store.ListQuarters("MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_Q1"}, labels)

	// Deleting an absent ticker is not an error.
	require.NoError(t, store.DeleteTicker("NVDA"))
}

func TestFactStorage_ConcurrentReadDuringOverwrite(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.FactStorage()

	end := models.Date(2025, 3, 31)
	require.NoError(t, store.PutBatch(testBatch("AAPL", "2025_Q1",
		[]models.Fact{revenueFact(90e9, end)})))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b := testBatch("AAPL", "2025_Q1", []models.Fact{revenueFact(95e9, end)})
			if err := store.PutBatch(b); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			got, err := store.GetBatch("AAPL", "2025_Q1")
			if err != nil {
				t.Error(err)
				return
			}
			// Readers see the full old batch or the full new one.
			if len(got.Facts) != 1 {
				t.Errorf("expected 1 fact, got %d", len(got.Facts))
				return
			}
			v := *got.Facts[0].Value
			if v != 90e9 && v != 95e9 {
				t.Errorf("unexpected value %v", v)
				return
			}
		}
	}()

	wg.Wait()
}

func TestIndexStorage_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.IndexStorage()

	idx := &models.TickerCacheIndex{
		Ticker:      "AAPL",
		CIK:         "0000320193",
		CompanyName: "Apple Inc.",
		Quarters: []models.QuarterRef{
			{QuarterLabel: "2025_Q1", FactCount: 42},
		},
		SchemaVersion: models.CurrentSchemaVersion,
	}
	require.NoError(t, store.PutIndex(idx))

	got, err := store.GetIndex("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", got.CIK)
	assert.Equal(t, "2025_Q1", got.LatestQuarter())
	assert.False(t, got.UpdatedAt.IsZero())

	tickers, err := store.ListTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers)

	require.NoError(t, store.DeleteIndex("AAPL"))
	_, err = store.GetIndex("AAPL")
	assert.True(t, models.IsNotFound(err))
}

func TestIndexStorage_SchemaVersionMismatch(t *testing.T) {
	mgr := newTestManager(t)

	idx := &models.TickerCacheIndex{
		Ticker:        "AAPL",
		SchemaVersion: models.CurrentSchemaVersion + 1,
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, mgr.db.Store().Upsert(idx.Ticker, idx))

	_, err := mgr.IndexStorage().GetIndex("AAPL")
	assert.True(t, models.IsNotFound(err))
}
