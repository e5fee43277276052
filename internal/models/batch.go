package models

import (
	"fmt"
	"time"
)

// SchemaVersion identifies the on-disk layout of cached records. Stored
// records whose version differs from CurrentSchemaVersion are treated as
// absent and trigger a refetch; they are never partially trusted.
type SchemaVersion int

// CurrentSchemaVersion is the version written by this build.
const CurrentSchemaVersion SchemaVersion = 3

// QuarterBatch holds all facts extracted for one ticker and one fiscal
// quarter. It is the unit of storage: written atomically, replaced
// wholesale on refetch, never patched.
type QuarterBatch struct {
	// ID is the storage key, "TICKER|YYYY_Qn".
	ID           string        `json:"id" badgerhold:"key"`
	Ticker       string        `json:"ticker"`
	QuarterLabel string        `json:"quarter_label"`
	// PeriodEnd is the dominant reporting period end chosen by the
	// normalizer. Zero when the batch contained no dated facts.
	PeriodEnd     time.Time     `json:"period_end"`
	Facts         []Fact        `json:"facts"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// BatchID builds the storage key for a ticker and quarter label.
func BatchID(ticker, quarterLabel string) string {
	return fmt.Sprintf("%s|%s", ticker, quarterLabel)
}

// NewQuarterBatch creates a batch stamped with the current schema version.
func NewQuarterBatch(ticker, quarterLabel string, facts []Fact, fetchedAt time.Time) *QuarterBatch {
	return &QuarterBatch{
		ID:            BatchID(ticker, quarterLabel),
		Ticker:        ticker,
		QuarterLabel:  quarterLabel,
		Facts:         facts,
		SchemaVersion: CurrentSchemaVersion,
		FetchedAt:     fetchedAt,
	}
}

// FactsFor returns all facts in the batch for one concept.
func (b *QuarterBatch) FactsFor(concept string) []Fact {
	var out []Fact
	for _, f := range b.Facts {
		if f.Concept == concept {
			out = append(out, f)
		}
	}
	return out
}

// QuarterRef is a per-quarter entry in a ticker's cache index.
type QuarterRef struct {
	QuarterLabel string    `json:"quarter_label"`
	PeriodEnd    time.Time `json:"period_end"`
	FactCount    int       `json:"fact_count"`
	StoredAt     time.Time `json:"stored_at"`
}

// TickerCacheIndex is the per-ticker cache metadata record. It is mutated
// only by the cache manager on write and read by staleness checks.
type TickerCacheIndex struct {
	Ticker        string        `json:"ticker" badgerhold:"key"`
	CIK           string        `json:"cik,omitempty"`
	CompanyName   string        `json:"company_name,omitempty"`
	Quarters      []QuarterRef  `json:"quarters"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// QuarterLabels returns the indexed quarter labels in stored order.
func (idx *TickerCacheIndex) QuarterLabels() []string {
	labels := make([]string, len(idx.Quarters))
	for i, q := range idx.Quarters {
		labels[i] = q.QuarterLabel
	}
	return labels
}

// LatestQuarter returns the most recent indexed quarter label, or "" when
// the index is empty. Quarters are kept sorted most recent first.
func (idx *TickerCacheIndex) LatestQuarter() string {
	if len(idx.Quarters) == 0 {
		return ""
	}
	return idx.Quarters[0].QuarterLabel
}
