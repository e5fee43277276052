package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the EDGAR XBRL API.
	DefaultBaseURL = "https://data.sec.gov/api/xbrl"

	// DefaultTickerMapURL serves the SEC's ticker to CIK map.
	DefaultTickerMapURL = "https://www.sec.gov/files/company_tickers.json"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	// The SEC's published fair-access ceiling is 10 req/s.
	DefaultRateLimit = 10
)

// Client is an SEC EDGAR API client implementing interfaces.FetchService.
type Client struct {
	baseURL      string
	tickerMapURL string
	userAgent    string
	httpClient   *http.Client
	logger       arbor.ILogger
	limiter      *rate.Limiter
	concepts     map[string]bool
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTickerMapURL sets a custom ticker map URL.
func WithTickerMapURL(tickerMapURL string) ClientOption {
	return func(c *Client) {
		c.tickerMapURL = tickerMapURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithConcepts restricts extraction to the given concept identifiers
// instead of the built-in catalog.
func WithConcepts(concepts []string) ClientOption {
	return func(c *Client) {
		c.concepts = conceptSet(concepts)
	}
}

// NewClient creates a new EDGAR API client. userAgent must identify the
// caller with contact details; the SEC rejects anonymous clients.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		tickerMapURL: DefaultTickerMapURL,
		userAgent:    userAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		concepts: conceptSet(DefaultConcepts),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func conceptSet(concepts []string) map[string]bool {
	set := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		set[c] = true
	}
	return set
}

// get performs a GET request against an absolute URL.
func (c *Client) get(ctx context.Context, reqURL string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", reqURL).
			Msg("EDGAR API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   reqURL,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ResolveCIK maps a ticker to its zero-padded 10-digit CIK and company
// name using the SEC ticker map. Matching is case-insensitive.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (string, string, error) {
	var entries map[string]tickerMapEntry
	if err := c.get(ctx, c.tickerMapURL, &entries); err != nil {
		return "", "", err
	}

	want := strings.ToUpper(strings.TrimSpace(ticker))
	for _, entry := range entries {
		if strings.ToUpper(entry.Ticker) == want {
			return fmt.Sprintf("%010d", entry.CIK), entry.Title, nil
		}
	}
	return "", "", &NotFoundError{Ticker: ticker}
}

// FetchRecent fetches the company facts document for a CIK and regroups
// its entries into per-quarter raw batches, most recent first, up to
// maxQuarters. Entries filed for a full fiscal year land in that year's Q4
// batch as annual-span facts; Q4 derivation subtracts the sibling quarters
// from them downstream.
func (c *Client) FetchRecent(ctx context.Context, cik string, maxQuarters int) ([]interfaces.RawQuarter, error) {
	reqURL := fmt.Sprintf("%s/companyfacts/CIK%s.json", c.baseURL, cik)

	var doc companyFactsResponse
	if err := c.get(ctx, reqURL, &doc); err != nil {
		return nil, err
	}

	byQuarter := c.groupByQuarter(doc)

	labels := make([]string, 0, len(byQuarter))
	for label := range byQuarter {
		labels = append(labels, label)
	}
	common.SortQuarterLabelsDesc(labels)
	if len(labels) > maxQuarters {
		labels = labels[:maxQuarters]
	}

	quarters := make([]interfaces.RawQuarter, 0, len(labels))
	for _, label := range labels {
		quarters = append(quarters, interfaces.RawQuarter{
			QuarterLabel: label,
			Facts:        byQuarter[label],
		})
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("cik", cik).
			Str("entity", doc.EntityName).
			Int("quarters", len(quarters)).
			Msg("Fetched company facts")
	}
	return quarters, nil
}

// FetchQuarter fetches the raw facts for a single fiscal quarter. The
// companyfacts document is not addressable per quarter, so this fetches the
// whole document and keeps one batch.
func (c *Client) FetchQuarter(ctx context.Context, cik, quarterLabel string) ([]models.Fact, error) {
	reqURL := fmt.Sprintf("%s/companyfacts/CIK%s.json", c.baseURL, cik)

	var doc companyFactsResponse
	if err := c.get(ctx, reqURL, &doc); err != nil {
		return nil, err
	}

	facts, ok := c.groupByQuarter(doc)[quarterLabel]
	if !ok {
		return nil, fmt.Errorf("cik %s has no facts for quarter %s", cik, quarterLabel)
	}
	return facts, nil
}

// groupByQuarter regroups a companyfacts document into per-quarter fact
// batches, keeping only the configured concepts.
func (c *Client) groupByQuarter(doc companyFactsResponse) map[string][]models.Fact {
	byQuarter := make(map[string][]models.Fact)
	for namespace, conceptMap := range doc.Facts {
		for name, entries := range conceptMap {
			concept := namespace + ":" + name
			if !c.concepts[concept] {
				continue
			}
			for unit, unitEntries := range entries.Units {
				for _, entry := range unitEntries {
					label, ok := quarterLabelFor(entry)
					if !ok {
						continue
					}
					byQuarter[label] = append(byQuarter[label], factFromEntry(concept, unit, entry))
				}
			}
		}
	}
	return byQuarter
}

// quarterLabelFor maps a fact entry to its cache quarter label. FY entries
// belong to the fiscal year's Q4 quarter.
func quarterLabelFor(entry factEntry) (string, bool) {
	if entry.FY <= 0 {
		return "", false
	}
	switch entry.FP {
	case "Q1", "Q2", "Q3", "Q4":
		return fmt.Sprintf("%d_%s", entry.FY, entry.FP), true
	case "FY":
		return fmt.Sprintf("%d_Q4", entry.FY), true
	default:
		return "", false
	}
}

func factFromEntry(concept, unit string, entry factEntry) models.Fact {
	fact := models.Fact{
		Concept:  concept,
		Value:    entry.Val,
		Unit:     unit,
		FormType: entry.Form,
	}
	if t, err := time.Parse("2006-01-02", entry.Start); err == nil {
		fact.PeriodStart = &t
	}
	if t, err := time.Parse("2006-01-02", entry.End); err == nil {
		fact.PeriodEnd = &t
	}
	return fact
}
