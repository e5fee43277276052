package series

import (
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/models"
)

// resolveQ4 resolves a fiscal Q4 point. Three outcomes, checked in order:
//
//   - a quarterly-span fact exists in the Q4 batch: use it directly;
//   - no quarterly fact, but the batch carries the year's annual total and
//     all three sibling quarters resolve from the calculation window:
//     Q4 = Annual − (Q1 + Q2 + Q3), marked derived;
//   - otherwise the point has no value. A partial sum is never used.
func (b *Builder) resolveQ4(batch *models.QuarterBatch, fq common.FiscalQuarter, concept string, byLabel map[string]*models.QuarterBatch) models.SeriesPoint {
	point := models.SeriesPoint{QuarterLabel: batch.QuarterLabel}

	if res, ok := b.selector.SelectQuarterly(batch.Facts, concept); ok {
		point.Value = *res.Fact.Value
		point.HasValue = true
		point.Source = sourceMeta(res, concept)
		return point
	}

	annual, ok := b.selector.SelectAnnual(batch.Facts, concept)
	if !ok {
		return point
	}

	sum := 0.0
	siblings := make([]string, 0, 3)
	for q := 1; q <= 3; q++ {
		label := common.FiscalQuarter{Year: fq.Year, Quarter: q}.Label()
		sibling, found := byLabel[label]
		if !found {
			return point
		}
		res, found := b.selector.SelectQuarterly(sibling.Facts, concept)
		if !found {
			return point
		}
		sum += *res.Fact.Value
		siblings = append(siblings, label)
	}

	derived := *annual.Fact.Value - sum
	if derived <= 0 {
		// A non-positive remainder means the annual total and the
		// quarters disagree (restatements, fiscal year shifts). Report
		// missing data rather than a misleading number.
		b.logger.Debug().
			Str("quarter", batch.QuarterLabel).
			Str("concept", concept).
			Float64("derived", derived).
			Msg("Discarding non-positive derived Q4 value")
		return point
	}

	days, _ := annual.Fact.PeriodDays()
	point.Value = derived
	point.HasValue = true
	point.Derived = true
	point.Source = models.SourceMeta{
		FormType:            annual.Fact.FormType,
		SelectionMethod:     annual.Method,
		PeriodDays:          days,
		Unit:                annual.Fact.Unit,
		Concept:             concept,
		DerivedFromAnnual:   batch.QuarterLabel,
		DerivedFromQuarters: siblings,
	}
	return point
}
