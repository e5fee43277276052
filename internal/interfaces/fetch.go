package interfaces

import (
	"context"

	"github.com/ternarybob/quartus/internal/models"
)

// RawQuarter is one fiscal quarter's worth of raw facts as returned by the
// external fetch collaborator, before normalization.
type RawQuarter struct {
	QuarterLabel string
	Facts        []models.Fact
}

// FetchService is the external fetch collaborator: it resolves tickers to
// company identifiers and returns raw fact batches. The cache layer never
// fetches on its own; it only decides whether cached data is trustworthy.
type FetchService interface {
	// ResolveCIK maps a ticker to its stable company identifier.
	ResolveCIK(ctx context.Context, ticker string) (cik string, companyName string, err error)
	// FetchRecent returns up to maxQuarters of raw quarterly fact batches
	// for a company, most recent first.
	FetchRecent(ctx context.Context, cik string, maxQuarters int) ([]RawQuarter, error)
}
