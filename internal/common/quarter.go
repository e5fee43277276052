// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FiscalQuarter identifies one reporting quarter, e.g. {2025, 4} for the
// cache label "2025_Q4".
type FiscalQuarter struct {
	Year    int
	Quarter int // 1..4
}

// ParseQuarterLabel parses a cache quarter label of the form "2025_Q4".
func ParseQuarterLabel(label string) (FiscalQuarter, error) {
	parts := strings.SplitN(label, "_", 2)
	if len(parts) != 2 || len(parts[1]) != 2 || parts[1][0] != 'Q' {
		return FiscalQuarter{}, fmt.Errorf("invalid quarter label %q", label)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 || year > 9999 {
		return FiscalQuarter{}, fmt.Errorf("invalid year in quarter label %q", label)
	}
	q := int(parts[1][1] - '0')
	if q < 1 || q > 4 {
		return FiscalQuarter{}, fmt.Errorf("invalid quarter in label %q", label)
	}
	return FiscalQuarter{Year: year, Quarter: q}, nil
}

// Label returns the cache label form, e.g. "2025_Q4".
func (fq FiscalQuarter) Label() string {
	return fmt.Sprintf("%d_Q%d", fq.Year, fq.Quarter)
}

// IsZero reports whether the quarter is unset.
func (fq FiscalQuarter) IsZero() bool {
	return fq.Year == 0 && fq.Quarter == 0
}

// Before reports whether fq precedes other in time.
func (fq FiscalQuarter) Before(other FiscalQuarter) bool {
	if fq.Year != other.Year {
		return fq.Year < other.Year
	}
	return fq.Quarter < other.Quarter
}

// Next returns the following quarter.
func (fq FiscalQuarter) Next() FiscalQuarter {
	if fq.Quarter == 4 {
		return FiscalQuarter{Year: fq.Year + 1, Quarter: 1}
	}
	return FiscalQuarter{Year: fq.Year, Quarter: fq.Quarter + 1}
}

// Prev returns the preceding quarter.
func (fq FiscalQuarter) Prev() FiscalQuarter {
	if fq.Quarter == 1 {
		return FiscalQuarter{Year: fq.Year - 1, Quarter: 4}
	}
	return FiscalQuarter{Year: fq.Year, Quarter: fq.Quarter - 1}
}

// QuarterEnd returns the last day of the calendar quarter in UTC.
func (fq FiscalQuarter) QuarterEnd() time.Time {
	// First day of the next quarter minus one day.
	month := time.Month(fq.Quarter*3 + 1)
	year := fq.Year
	if fq.Quarter == 4 {
		month = time.January
		year++
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// QuarterOf returns the calendar quarter containing t.
func QuarterOf(t time.Time) FiscalQuarter {
	t = t.UTC()
	return FiscalQuarter{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// LatestReportableQuarter returns the most recent quarter whose results
// should be filed by asOf, given the reporting lag in days. A quarter is
// reportable once quarter end + lag has passed. asOf is passed explicitly
// so staleness checks stay deterministic and testable.
func LatestReportableQuarter(asOf time.Time, reportingLagDays int) FiscalQuarter {
	asOf = asOf.UTC()
	fq := QuarterOf(asOf)
	// Walk back until the quarter's filing deadline has passed. At most
	// two steps: the current quarter never qualifies, the previous one
	// may still be inside its lag window.
	for i := 0; i < 8; i++ {
		deadline := fq.QuarterEnd().AddDate(0, 0, reportingLagDays)
		if deadline.Before(asOf) || deadline.Equal(asOf) {
			return fq
		}
		fq = fq.Prev()
	}
	return fq
}

// SortQuarterLabelsDesc sorts quarter labels most recent first. Labels that
// fail to parse sort last, preserving their relative order.
func SortQuarterLabelsDesc(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, errA := ParseQuarterLabel(labels[i])
		b, errB := ParseQuarterLabel(labels[j])
		if errA != nil {
			return false
		}
		if errB != nil {
			return true
		}
		return b.Before(a)
	})
}
