package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/models"
)

func datedFact(concept string, end *time.Time) models.Fact {
	return models.Fact{Concept: concept, Value: models.Float(1), PeriodEnd: end}
}

func TestNormalize_DominantPeriodWins(t *testing.T) {
	n := NewNormalizer(common.GetLogger())

	// A filing restating the prior quarter: three facts end 2025-04-27,
	// one ends 2025-01-26. The earlier date is the restated comparative
	// and must be dropped.
	current := models.Date(2025, 4, 27)
	prior := models.Date(2025, 1, 26)
	facts := []models.Fact{
		datedFact("us-gaap:Revenues", current),
		datedFact("us-gaap:CostOfRevenue", current),
		datedFact("us-gaap:GrossProfit", current),
		datedFact("us-gaap:Revenues", prior),
	}

	kept, dominant := n.Normalize(facts)
	assert.Equal(t, current.UTC(), dominant)
	require.Len(t, kept, 3)
	for _, f := range kept {
		assert.Equal(t, current.UTC(), f.PeriodEnd.UTC())
	}
}

func TestNormalize_TieGoesToMostRecent(t *testing.T) {
	n := NewNormalizer(common.GetLogger())

	older := models.Date(2025, 1, 26)
	newer := models.Date(2025, 4, 27)
	facts := []models.Fact{
		datedFact("us-gaap:Revenues", older),
		datedFact("us-gaap:Revenues", newer),
	}

	_, dominant := n.Normalize(facts)
	assert.Equal(t, newer.UTC(), dominant)
}

func TestNormalize_NullPeriodFactsKept(t *testing.T) {
	n := NewNormalizer(common.GetLogger())

	current := models.Date(2025, 4, 27)
	prior := models.Date(2025, 1, 26)
	facts := []models.Fact{
		datedFact("us-gaap:Revenues", current),
		datedFact("us-gaap:Revenues", current),
		datedFact("us-gaap:Revenues", prior),
		{Concept: "dei:EntityRegistrantName"}, // no period at all
	}

	kept, _ := n.Normalize(facts)
	require.Len(t, kept, 3)
	assert.Equal(t, "dei:EntityRegistrantName", kept[2].Concept)
}

func TestNormalize_AllNullPassesThrough(t *testing.T) {
	n := NewNormalizer(common.GetLogger())

	facts := []models.Fact{
		{Concept: "dei:EntityRegistrantName"},
		{Concept: "dei:EntityCentralIndexKey"},
	}

	kept, dominant := n.Normalize(facts)
	assert.True(t, dominant.IsZero())
	assert.Equal(t, facts, kept)
}

func TestNormalize_Empty(t *testing.T) {
	n := NewNormalizer(common.GetLogger())

	kept, dominant := n.Normalize(nil)
	assert.True(t, dominant.IsZero())
	assert.Empty(t, kept)
}

func TestDominantPeriodEnd_IgnoresTimeOfDay(t *testing.T) {
	noon := time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC)
	midnight := models.Date(2025, 4, 27)
	facts := []models.Fact{
		datedFact("us-gaap:Revenues", &noon),
		datedFact("us-gaap:CostOfRevenue", midnight),
	}

	dominant := DominantPeriodEnd(facts)
	assert.Equal(t, midnight.UTC(), dominant)

	n := NewNormalizer(common.GetLogger())
	kept, _ := n.Normalize(facts)
	assert.Len(t, kept, 2)
}
