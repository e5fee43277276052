// Package selection resolves a single representative value when a quarter
// batch carries several competing facts for the same concept.
package selection

import (
	"fmt"
	"math"

	"github.com/ternarybob/quartus/internal/models"
)

// SpanClass classifies a fact's reporting window length.
type SpanClass int

const (
	// SpanQuarterly marks a window shorter than the quarterly threshold.
	SpanQuarterly SpanClass = iota
	// SpanAnnual marks a window at or beyond the quarterly threshold.
	SpanAnnual
	// SpanUnknown marks a fact missing one or both period bounds.
	SpanUnknown
)

func (s SpanClass) String() string {
	switch s {
	case SpanQuarterly:
		return "quarterly"
	case SpanAnnual:
		return "annual"
	default:
		return "unknown_span"
	}
}

// Selector picks one fact per concept per quarter using a fixed priority:
// consolidated over segmented, quarterly span over annual over unknown,
// then larger absolute value. Remaining ties break on stable fact
// attributes so the result never depends on input order.
type Selector struct {
	// QuarterlyMaxDays is the span threshold separating quarterly from
	// annual reporting windows.
	QuarterlyMaxDays int
}

// NewSelector creates a selector with the given quarterly span threshold.
func NewSelector(quarterlyMaxDays int) *Selector {
	return &Selector{QuarterlyMaxDays: quarterlyMaxDays}
}

// Classify returns the span class of a fact under the selector's threshold.
func (s *Selector) Classify(f models.Fact) SpanClass {
	days, ok := f.PeriodDays()
	if !ok {
		return SpanUnknown
	}
	if days < s.QuarterlyMaxDays {
		return SpanQuarterly
	}
	return SpanAnnual
}

// Result is a selected fact plus how it was chosen.
type Result struct {
	Fact models.Fact
	// Method describes the winning candidate's class for source metadata,
	// e.g. "quarterly_consolidated_of_3".
	Method string
	// Candidates is the number of valued facts considered.
	Candidates int
}

// Select resolves the best fact for a concept among the batch's candidates.
// Facts without a numeric value are never candidates. ok is false when no
// candidate exists; callers must treat that as missing data, not zero.
func (s *Selector) Select(facts []models.Fact, concept string) (Result, bool) {
	return s.selectWhere(facts, concept, nil)
}

// SelectQuarterly resolves the best quarterly-span fact for a concept.
// Used by Q4 resolution, where an annual total must not stand in for a
// quarter's own value.
func (s *Selector) SelectQuarterly(facts []models.Fact, concept string) (Result, bool) {
	return s.selectWhere(facts, concept, func(f models.Fact) bool {
		return s.Classify(f) == SpanQuarterly
	})
}

// SelectAnnual resolves the best annual-span fact for a concept, the
// minuend for Q4 derivation.
func (s *Selector) SelectAnnual(facts []models.Fact, concept string) (Result, bool) {
	return s.selectWhere(facts, concept, func(f models.Fact) bool {
		return s.Classify(f) == SpanAnnual
	})
}

func (s *Selector) selectWhere(facts []models.Fact, concept string, keep func(models.Fact) bool) (Result, bool) {
	var candidates []models.Fact
	for _, f := range facts {
		if f.Concept != concept || !f.HasValue() {
			continue
		}
		if keep != nil && !keep(f) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return Result{}, false
	}

	best := candidates[0]
	for _, f := range candidates[1:] {
		if s.better(f, best) {
			best = f
		}
	}

	return Result{
		Fact:       best,
		Method:     s.method(best, len(candidates)),
		Candidates: len(candidates),
	}, true
}

// better reports whether a should be selected over b. Each discriminator is
// consulted only when every earlier one ties, and the final comparisons use
// only the facts' own attributes, so the winner is the same for any
// permutation of the candidates.
func (s *Selector) better(a, b models.Fact) bool {
	if ac, bc := a.IsConsolidated(), b.IsConsolidated(); ac != bc {
		return ac
	}
	if as, bs := s.Classify(a), s.Classify(b); as != bs {
		return as < bs
	}
	av, bv := math.Abs(*a.Value), math.Abs(*b.Value)
	if av != bv {
		return av > bv
	}

	// Stable tiebreaks on fact identity.
	if *a.Value != *b.Value {
		return *a.Value > *b.Value
	}
	if a.Unit != b.Unit {
		return a.Unit < b.Unit
	}
	if a.FormType != b.FormType {
		return a.FormType < b.FormType
	}
	if af, bf := a.DimensionFingerprint(), b.DimensionFingerprint(); af != bf {
		return af < bf
	}
	if a.PeriodStart != nil && b.PeriodStart != nil && !a.PeriodStart.Equal(*b.PeriodStart) {
		return a.PeriodStart.Before(*b.PeriodStart)
	}
	return a.PeriodStart != nil && b.PeriodStart == nil
}

func (s *Selector) method(f models.Fact, candidates int) string {
	scope := "consolidated"
	if !f.IsConsolidated() {
		scope = "segmented"
	}
	return fmt.Sprintf("%s_%s_of_%d", s.Classify(f), scope, candidates)
}
