package models

import (
	"sort"
	"time"
)

// Fact is a single reported XBRL datapoint with its full reporting context.
// Facts are immutable once stored; re-extraction replaces the whole
// per-quarter batch, never individual facts.
type Fact struct {
	// Concept is the taxonomy identifier, e.g. "us-gaap:Revenues".
	Concept string `json:"concept"`
	// Value is the numeric value. Nil means the fact carries no numeric
	// value (entity metadata, text facts).
	Value *float64 `json:"value,omitempty"`
	// Unit is the currency/unit code, e.g. "USD" or "shares".
	Unit string `json:"unit,omitempty"`
	// PeriodStart and PeriodEnd bound the reporting window. Either may be
	// nil: instant facts have no start, entity metadata has neither.
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	// Dimensions maps axis to member for segmented facts. Empty or nil
	// means the fact is consolidated (whole-company).
	Dimensions map[string]string `json:"dimensions,omitempty"`
	// FormType is the filing the fact originated from ("10-Q", "10-K").
	FormType string `json:"form_type,omitempty"`
}

// IsConsolidated reports whether the fact has no dimensional breakdown.
func (f Fact) IsConsolidated() bool {
	return len(f.Dimensions) == 0
}

// HasValue reports whether the fact carries a numeric value.
func (f Fact) HasValue() bool {
	return f.Value != nil
}

// PeriodDays returns the length of the reporting window in days.
// ok is false when either bound is missing.
func (f Fact) PeriodDays() (days int, ok bool) {
	if f.PeriodStart == nil || f.PeriodEnd == nil {
		return 0, false
	}
	return int(f.PeriodEnd.Sub(*f.PeriodStart).Hours() / 24), true
}

// DimensionFingerprint returns a stable string encoding of the fact's
// dimensions, used as a deterministic tiebreaker during selection.
func (f Fact) DimensionFingerprint() string {
	if len(f.Dimensions) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.Dimensions))
	for k := range f.Dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k + "=" + f.Dimensions[k] + ";"
	}
	return out
}

// Float returns a pointer to v. Convenience for building Fact literals.
func Float(v float64) *float64 {
	return &v
}

// Date returns a pointer to a UTC date. Convenience for building Fact literals.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
