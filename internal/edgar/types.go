// Package edgar provides a client for the SEC EDGAR XBRL company facts
// API. This package centralizes all EDGAR interactions for the application.
package edgar

import (
	"fmt"
	"time"
)

// APIError represents an error response from the EDGAR API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EDGAR API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EDGAR rate limit exceeded, retry after %v", e.RetryAfter)
}

// NotFoundError is returned when a ticker cannot be resolved to a company.
type NotFoundError struct {
	Ticker string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ticker %q not found in EDGAR company map", e.Ticker)
}

// companyFactsResponse is the shape of /api/xbrl/companyfacts/CIK{cik}.json.
type companyFactsResponse struct {
	CIK        int                                  `json:"cik"`
	EntityName string                               `json:"entityName"`
	Facts      map[string]map[string]conceptEntries `json:"facts"`
}

// conceptEntries holds all reported values for one taxonomy concept,
// grouped by unit.
type conceptEntries struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]factEntry `json:"units"`
}

// factEntry is one reported datapoint inside a concept's unit list.
type factEntry struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Val   *float64 `json:"val"`
	FY    int      `json:"fy"`
	FP    string   `json:"fp"` // "Q1".."Q4" or "FY"
	Form  string   `json:"form"`
	Filed string   `json:"filed"`
	Frame string   `json:"frame,omitempty"`
}

// tickerMapEntry is one record in the SEC company_tickers.json map.
type tickerMapEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}
