// Package periods normalizes the reporting periods of a raw fact batch
// before storage. Company filings restate several periods in one document;
// only facts for the quarter's dominant period end belong in that
// quarter's batch.
package periods

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/models"
)

// Normalizer filters a quarter's facts down to its dominant period end.
type Normalizer struct {
	logger arbor.ILogger
}

// NewNormalizer creates a new period normalizer
func NewNormalizer(logger arbor.ILogger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize returns the facts whose period end matches the batch's dominant
// period end, plus every fact with no period end at all (instant and
// metadata facts stay attached to their quarter). The dominant period end
// is the most frequent one; ties go to the most recent date.
//
// A batch with no dated facts has no dominant period and passes through
// unchanged with a zero dominant time.
func (n *Normalizer) Normalize(facts []models.Fact) ([]models.Fact, time.Time) {
	dominant := DominantPeriodEnd(facts)
	if dominant.IsZero() {
		return facts, time.Time{}
	}

	kept := make([]models.Fact, 0, len(facts))
	for _, f := range facts {
		if f.PeriodEnd == nil || periodDay(*f.PeriodEnd).Equal(dominant) {
			kept = append(kept, f)
		}
	}

	if dropped := len(facts) - len(kept); dropped > 0 {
		n.logger.Debug().
			Str("dominant_period_end", dominant.Format("2006-01-02")).
			Int("kept", len(kept)).
			Int("dropped", dropped).
			Msg("Normalized batch to dominant period end")
	}

	return kept, dominant
}

// DominantPeriodEnd returns the most frequent period end among the dated
// facts, preferring the most recent date on a tie. Zero when no fact
// carries a period end.
func DominantPeriodEnd(facts []models.Fact) time.Time {
	counts := make(map[time.Time]int)
	for _, f := range facts {
		if f.PeriodEnd == nil {
			continue
		}
		counts[periodDay(*f.PeriodEnd)]++
	}
	if len(counts) == 0 {
		return time.Time{}
	}

	var dominant time.Time
	best := 0
	for end, count := range counts {
		if count > best || (count == best && end.After(dominant)) {
			dominant = end
			best = count
		}
	}
	return dominant
}

// periodDay reduces a period end to its UTC calendar day so that facts
// reported with differing time components still group together.
func periodDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
