package models

import (
	"time"
)

// SourceMeta records where a series point's value came from so the UI can
// distinguish reported values from derived ones.
type SourceMeta struct {
	// FormType of the fact the value came from ("10-Q", "10-K").
	FormType string `json:"form_type,omitempty"`
	// SelectionMethod describes how the selector resolved the value,
	// e.g. "quarterly_consolidated_of_3".
	SelectionMethod string `json:"selection_method,omitempty"`
	// PeriodDays is the reporting span of the chosen fact, 0 when unknown.
	PeriodDays int `json:"period_days,omitempty"`
	// Unit of the chosen fact.
	Unit string `json:"unit,omitempty"`
	// Concept that produced the value. Set when a series was resolved
	// across several candidate concepts.
	Concept string `json:"concept,omitempty"`
	// DerivedFromAnnual and DerivedFromQuarters are populated for derived
	// Q4 points: the quarter label carrying the annual fact and the three
	// quarterly labels subtracted from it.
	DerivedFromAnnual   string   `json:"derived_from_annual,omitempty"`
	DerivedFromQuarters []string `json:"derived_from_quarters,omitempty"`
}

// SeriesPoint is one quarter's resolved value for a concept. HasValue false
// means no qualifying fact existed after selection; it is distinct from a
// zero value and must be rendered as missing data, never coerced to 0.
type SeriesPoint struct {
	QuarterLabel string  `json:"quarter_label"`
	Value        float64 `json:"value"`
	HasValue     bool    `json:"has_value"`
	// Derived marks values computed rather than reported (Q4 by
	// subtraction from the annual total).
	Derived bool `json:"derived"`
	// GrowthPercent is year-over-year growth against the same quarter one
	// fiscal year earlier, nil when either side is missing. GrowthCapped
	// marks values clamped to the configured display cap.
	GrowthPercent *float64   `json:"growth_percent,omitempty"`
	GrowthCapped  bool       `json:"growth_capped,omitempty"`
	Source        SourceMeta `json:"source"`
}

// SelectedSeries is the per-concept output consumed by charting: one
// resolved point per quarter, ordered oldest first. Constructed fresh on
// each query; never persisted.
type SelectedSeries struct {
	Ticker      string        `json:"ticker"`
	Concept     string        `json:"concept"`
	Points      []SeriesPoint `json:"points"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ResolvedCount returns the number of points carrying a value.
func (s SelectedSeries) ResolvedCount() int {
	n := 0
	for _, p := range s.Points {
		if p.HasValue {
			n++
		}
	}
	return n
}
