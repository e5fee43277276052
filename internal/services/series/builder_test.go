package series

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/selection"
)

const revenues = "us-gaap:Revenues"

// fakeWindows serves fixed batches, most recent first, like the cache.
type fakeWindows struct {
	display []*models.QuarterBatch
	calc    []*models.QuarterBatch
}

func (f *fakeWindows) DisplayWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error) {
	return f.display, nil
}

func (f *fakeWindows) CalculationWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error) {
	return f.calc, nil
}

func newTestBuilder(w WindowProvider) *Builder {
	return NewBuilder(w, selection.NewSelector(120),
		&common.SeriesConfig{MaxGrowthPercent: 500}, common.GetLogger())
}

func quarterlyBatch(label string, concept string, value float64) *models.QuarterBatch {
	fq, _ := common.ParseQuarterLabel(label)
	end := fq.QuarterEnd()
	start := end.AddDate(0, -3, 1)
	return &models.QuarterBatch{
		ID:           models.BatchID("TEST", label),
		Ticker:       "TEST",
		QuarterLabel: label,
		Facts: []models.Fact{{
			Concept:     concept,
			Value:       models.Float(value),
			Unit:        "USD",
			PeriodStart: &start,
			PeriodEnd:   &end,
			FormType:    "10-Q",
		}},
		SchemaVersion: models.CurrentSchemaVersion,
	}
}

// annualOnlyBatch is a Q4 batch holding only the fiscal year's annual
// total, the shape filed by companies that report no separate Q4.
func annualOnlyBatch(label string, concept string, annual float64) *models.QuarterBatch {
	fq, _ := common.ParseQuarterLabel(label)
	end := fq.QuarterEnd()
	start := end.AddDate(-1, 0, 1)
	return &models.QuarterBatch{
		ID:           models.BatchID("TEST", label),
		Ticker:       "TEST",
		QuarterLabel: label,
		Facts: []models.Fact{{
			Concept:     concept,
			Value:       models.Float(annual),
			Unit:        "USD",
			PeriodStart: &start,
			PeriodEnd:   &end,
			FormType:    "10-K",
		}},
		SchemaVersion: models.CurrentSchemaVersion,
	}
}

func TestBuild_DerivedQ4(t *testing.T) {
	w := &fakeWindows{
		display: []*models.QuarterBatch{
			annualOnlyBatch("2024_Q4", revenues, 400),
			quarterlyBatch("2024_Q3", revenues, 110),
			quarterlyBatch("2024_Q2", revenues, 100),
			quarterlyBatch("2024_Q1", revenues, 90),
		},
	}
	w.calc = w.display

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	require.Len(t, s.Points, 4)

	// Oldest first.
	assert.Equal(t, "2024_Q1", s.Points[0].QuarterLabel)

	q4 := s.Points[3]
	assert.Equal(t, "2024_Q4", q4.QuarterLabel)
	require.True(t, q4.HasValue)
	assert.Equal(t, 100.0, q4.Value) // 400 - (90+100+110)
	assert.True(t, q4.Derived)
	assert.Equal(t, "2024_Q4", q4.Source.DerivedFromAnnual)
	assert.Equal(t, []string{"2024_Q1", "2024_Q2", "2024_Q3"}, q4.Source.DerivedFromQuarters)
}

func TestBuild_DirectQ4(t *testing.T) {
	q4 := quarterlyBatch("2024_Q4", revenues, 120)
	w := &fakeWindows{display: []*models.QuarterBatch{q4}, calc: []*models.QuarterBatch{q4}}

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.True(t, s.Points[0].HasValue)
	assert.Equal(t, 120.0, s.Points[0].Value)
	assert.False(t, s.Points[0].Derived)
	assert.Empty(t, s.Points[0].Source.DerivedFromAnnual)
}

func TestBuild_Q4UnresolvedWhenSiblingMissing(t *testing.T) {
	// Q2 is absent: derivation must refuse a partial sum.
	w := &fakeWindows{
		display: []*models.QuarterBatch{
			annualOnlyBatch("2024_Q4", revenues, 400),
			quarterlyBatch("2024_Q3", revenues, 110),
			quarterlyBatch("2024_Q1", revenues, 90),
		},
	}
	w.calc = w.display

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)

	q4 := s.Points[len(s.Points)-1]
	assert.Equal(t, "2024_Q4", q4.QuarterLabel)
	assert.False(t, q4.HasValue)
	assert.Equal(t, 0.0, q4.Value)
}

func TestBuild_Q4NonPositiveDerivedDiscarded(t *testing.T) {
	// Quarters sum past the annual total (restated year): derived value
	// would be negative and must be dropped.
	w := &fakeWindows{
		display: []*models.QuarterBatch{
			annualOnlyBatch("2024_Q4", revenues, 250),
			quarterlyBatch("2024_Q3", revenues, 110),
			quarterlyBatch("2024_Q2", revenues, 100),
			quarterlyBatch("2024_Q1", revenues, 90),
		},
	}
	w.calc = w.display

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	assert.False(t, s.Points[3].HasValue)
}

func TestBuild_DerivationUsesCalculationWindow(t *testing.T) {
	// The display window starts at Q4; its siblings live only in the
	// deeper calculation window.
	q4 := annualOnlyBatch("2024_Q4", revenues, 400)
	w := &fakeWindows{
		display: []*models.QuarterBatch{q4},
		calc: []*models.QuarterBatch{
			q4,
			quarterlyBatch("2024_Q3", revenues, 110),
			quarterlyBatch("2024_Q2", revenues, 100),
			quarterlyBatch("2024_Q1", revenues, 90),
		},
	}

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.True(t, s.Points[0].HasValue)
	assert.Equal(t, 100.0, s.Points[0].Value)
	assert.True(t, s.Points[0].Derived)
}

func TestBuild_NoValueNeverZero(t *testing.T) {
	empty := &models.QuarterBatch{
		ID: models.BatchID("TEST", "2024_Q2"), Ticker: "TEST", QuarterLabel: "2024_Q2",
	}
	w := &fakeWindows{display: []*models.QuarterBatch{empty}, calc: []*models.QuarterBatch{empty}}

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.False(t, s.Points[0].HasValue)
	assert.Equal(t, 0, s.ResolvedCount())
}

func TestBuild_YearOverYearGrowth(t *testing.T) {
	w := &fakeWindows{
		display: []*models.QuarterBatch{
			quarterlyBatch("2025_Q2", revenues, 150),
			quarterlyBatch("2025_Q1", revenues, 1000),
			quarterlyBatch("2024_Q2", revenues, 100),
			quarterlyBatch("2024_Q1", revenues, 50),
		},
	}
	w.calc = w.display

	s, err := newTestBuilder(w).Build(context.Background(), "TEST", revenues)
	require.NoError(t, err)
	require.Len(t, s.Points, 4)

	// 2024 points have no prior year in the window.
	assert.Nil(t, s.Points[0].GrowthPercent)
	assert.Nil(t, s.Points[1].GrowthPercent)

	// 2025_Q1: 50 → 1000 is +1900%, capped at +500%.
	q1 := s.Points[2]
	require.NotNil(t, q1.GrowthPercent)
	assert.Equal(t, 500.0, *q1.GrowthPercent)
	assert.True(t, q1.GrowthCapped)

	// 2025_Q2: 100 → 150 is +50%.
	q2 := s.Points[3]
	require.NotNil(t, q2.GrowthPercent)
	assert.InDelta(t, 50.0, *q2.GrowthPercent, 1e-9)
	assert.False(t, q2.GrowthCapped)
}

func TestBuildBest_MergesPerQuarter(t *testing.T) {
	const contractRevenue = "us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax"

	// Q3 reports under both concepts, us-gaap:Revenues with the larger
	// value; the earlier quarters report only under the contract revenue
	// concept.
	mixed := quarterlyBatch("2024_Q3", revenues, 120)
	mixed.Facts = append(mixed.Facts, quarterlyBatch("2024_Q3", contractRevenue, 110).Facts...)
	w := &fakeWindows{
		display: []*models.QuarterBatch{
			mixed,
			quarterlyBatch("2024_Q2", contractRevenue, 100),
			quarterlyBatch("2024_Q1", contractRevenue, 90),
		},
	}
	w.calc = w.display

	s, err := newTestBuilder(w).BuildBest(context.Background(), "TEST",
		[]string{revenues, contractRevenue})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 3, s.ResolvedCount())

	// Each point records the concept it came from; the series carries the
	// majority contributor.
	assert.Equal(t, contractRevenue, s.Concept)
	assert.Equal(t, contractRevenue, s.Points[0].Source.Concept)
	assert.Equal(t, contractRevenue, s.Points[1].Source.Concept)
	assert.Equal(t, revenues, s.Points[2].Source.Concept)
	assert.Equal(t, 120.0, s.Points[2].Value)
}
