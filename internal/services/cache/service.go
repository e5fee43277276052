// Package cache is the single entry point for the quarter cache: windowed
// reads, calendar-driven staleness checks and refresh orchestration.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/periods"
)

// ErrRefreshInFlight is returned when a refresh is requested for a ticker
// that is already being refreshed. Callers treat it as "already underway",
// not a failure.
var ErrRefreshInFlight = errors.New("refresh already in flight for ticker")

// StalenessResult is the advisory outcome of a staleness check. Staleness
// is a signal to refetch, never an error.
type StalenessResult struct {
	Ticker           string `json:"ticker"`
	IsStale          bool   `json:"is_stale"`
	Reason           string `json:"reason,omitempty"`
	LatestCached     string `json:"latest_cached,omitempty"`
	LatestReportable string `json:"latest_reportable"`
}

// Staleness reasons.
const (
	ReasonNotCached       = "not_cached"
	ReasonNewerReportable = "newer_quarter_reportable"
)

// Stats summarizes cache contents for the stats endpoint.
type Stats struct {
	Tickers       int            `json:"tickers"`
	TotalQuarters int            `json:"total_quarters"`
	PerTicker     map[string]int `json:"per_ticker"`
}

// Service orchestrates the quarter cache. Reads of one ticker proceed
// concurrently; a refresh of that ticker is serialized against them so a
// reader sees either the fully old or fully new quarter set.
type Service struct {
	storage    interfaces.StorageManager
	fetcher    interfaces.FetchService
	events     interfaces.EventService
	normalizer *periods.Normalizer
	config     *common.CacheConfig
	logger     arbor.ILogger

	mu          sync.Mutex
	tickerLocks map[string]*sync.RWMutex
	inflight    map[string]bool
}

// NewService creates a new cache service
func NewService(storage interfaces.StorageManager, fetcher interfaces.FetchService, eventService interfaces.EventService, config *common.CacheConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage:     storage,
		fetcher:     fetcher,
		events:      eventService,
		normalizer:  periods.NewNormalizer(logger),
		config:      config,
		logger:      logger,
		tickerLocks: make(map[string]*sync.RWMutex),
		inflight:    make(map[string]bool),
	}
}

func (s *Service) tickerLock(ticker string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.tickerLocks[ticker]
	if !ok {
		lock = &sync.RWMutex{}
		s.tickerLocks[ticker] = lock
	}
	return lock
}

// DisplayWindow returns up to the configured display count of the most
// recent cached quarter batches, most recent first.
func (s *Service) DisplayWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error) {
	return s.window(ctx, ticker, s.config.DisplayQuarters)
}

// CalculationWindow returns up to the configured calculation count of the
// most recent cached quarter batches, most recent first. It is always a
// superset of the display window: Q4 derivation needs the extra trailing
// quarters even when only the display window is rendered.
func (s *Service) CalculationWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error) {
	return s.window(ctx, ticker, s.config.CalculationQuarters)
}

func (s *Service) window(ctx context.Context, ticker string, count int) ([]*models.QuarterBatch, error) {
	lock := s.tickerLock(ticker)
	lock.RLock()
	defer lock.RUnlock()

	facts := s.storage.FactStorage()
	labels, err := facts.ListQuarters(ticker)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		s.publish(ctx, interfaces.EventCacheMiss, ticker, nil)
		return nil, fmt.Errorf("ticker %s: %w", ticker, models.ErrNotFound)
	}
	if len(labels) > count {
		labels = labels[:count]
	}

	batches := make([]*models.QuarterBatch, 0, len(labels))
	for _, label := range labels {
		batch, err := facts.GetBatch(ticker, label)
		if err != nil {
			if models.IsNotFound(err) {
				// Listed but unreadable under the current schema
				// version; skip rather than fail the window.
				s.logger.Warn().Str("ticker", ticker).Str("quarter", label).Msg("Indexed quarter missing from store")
				continue
			}
			return nil, err
		}
		batches = append(batches, batch)
	}

	s.publish(ctx, interfaces.EventCacheHit, ticker, map[string]interface{}{
		"quarters": len(batches),
	})
	return batches, nil
}

// CheckStaleness reports whether the ticker's cache is trustworthy as of
// the given instant. The check is calendar-driven: the cache is stale when
// a quarter newer than the latest cached one has passed its filing
// deadline, not merely because time passed since the fetch.
func (s *Service) CheckStaleness(ctx context.Context, ticker string, asOf time.Time) StalenessResult {
	latestReportable := common.LatestReportableQuarter(asOf, s.config.ReportingLagDays)
	result := StalenessResult{
		Ticker:           ticker,
		LatestReportable: latestReportable.Label(),
	}

	lock := s.tickerLock(ticker)
	lock.RLock()
	idx, err := s.storage.IndexStorage().GetIndex(ticker)
	lock.RUnlock()

	if err != nil {
		// A miss and a schema version mismatch both mean the cache
		// cannot be trusted; refetch from scratch.
		result.IsStale = true
		result.Reason = ReasonNotCached
		s.publish(ctx, interfaces.EventCacheStale, ticker, map[string]interface{}{
			"reason": result.Reason,
		})
		return result
	}

	result.LatestCached = idx.LatestQuarter()
	cached, parseErr := common.ParseQuarterLabel(result.LatestCached)
	if parseErr != nil || cached.Before(latestReportable) {
		result.IsStale = true
		result.Reason = ReasonNewerReportable
		s.publish(ctx, interfaces.EventCacheStale, ticker, map[string]interface{}{
			"reason":            result.Reason,
			"latest_cached":     result.LatestCached,
			"latest_reportable": result.LatestReportable,
		})
	}
	return result
}

// Refresh fetches and stores the ticker's recent quarters. At most one
// refresh per ticker runs at a time; a second request while one is in
// flight returns ErrRefreshInFlight.
func (s *Service) Refresh(ctx context.Context, ticker string) error {
	s.mu.Lock()
	if s.inflight[ticker] {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", ticker, ErrRefreshInFlight)
	}
	s.inflight[ticker] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, ticker)
		s.mu.Unlock()
	}()

	return s.refresh(ctx, ticker)
}

// StartRefresh claims the ticker's single-flight slot synchronously and
// runs the refresh in the background. It returns ErrRefreshInFlight
// immediately when a refresh is already underway, which lets HTTP callers
// answer 409 without waiting on the fetch.
func (s *Service) StartRefresh(ticker string, force bool, timeout time.Duration) error {
	s.mu.Lock()
	if s.inflight[ticker] {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", ticker, ErrRefreshInFlight)
	}
	s.inflight[ticker] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, ticker)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var err error
		if force {
			err = s.deleteThenRefresh(ctx, ticker)
		} else {
			err = s.refresh(ctx, ticker)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("Background refresh failed")
		}
	}()
	return nil
}

// ForceRefresh drops the ticker's cached quarters and refetches from
// scratch. Subject to the same single-flight rule as Refresh.
func (s *Service) ForceRefresh(ctx context.Context, ticker string) error {
	s.mu.Lock()
	if s.inflight[ticker] {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", ticker, ErrRefreshInFlight)
	}
	s.inflight[ticker] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, ticker)
		s.mu.Unlock()
	}()

	return s.deleteThenRefresh(ctx, ticker)
}

func (s *Service) deleteThenRefresh(ctx context.Context, ticker string) error {
	lock := s.tickerLock(ticker)
	lock.Lock()
	err := s.storage.FactStorage().DeleteTicker(ticker)
	if err == nil {
		err = s.storage.IndexStorage().DeleteIndex(ticker)
	}
	lock.Unlock()
	if err != nil {
		return err
	}

	return s.refresh(ctx, ticker)
}

func (s *Service) refresh(ctx context.Context, ticker string) error {
	s.publish(ctx, interfaces.EventRefreshStarted, ticker, nil)
	start := time.Now()

	cik, companyName, err := s.resolveCIK(ctx, ticker)
	if err != nil {
		s.publishFailure(ctx, ticker, err)
		return fmt.Errorf("resolve ticker %s: %w", ticker, err)
	}

	raw, err := s.fetcher.FetchRecent(ctx, cik, s.config.CalculationQuarters)
	if err != nil {
		s.publishFailure(ctx, ticker, err)
		return fmt.Errorf("fetch %s: %w", ticker, err)
	}

	lock := s.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	fetchedAt := time.Now().UTC()
	refs := make([]models.QuarterRef, 0, len(raw))
	for _, rq := range raw {
		ref, err := s.storeQuarter(ctx, ticker, rq.QuarterLabel, rq.Facts, fetchedAt)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	idx := &models.TickerCacheIndex{
		Ticker:        ticker,
		CIK:           cik,
		CompanyName:   companyName,
		Quarters:      refs,
		SchemaVersion: models.CurrentSchemaVersion,
	}
	sortRefsDesc(idx.Quarters)
	if err := s.storage.IndexStorage().PutIndex(idx); err != nil {
		s.publishFailure(ctx, ticker, err)
		return err
	}

	s.logger.Info().
		Str("ticker", ticker).
		Int("quarters", len(refs)).
		Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Msg("Refresh completed")
	s.publish(ctx, interfaces.EventRefreshCompleted, ticker, map[string]interface{}{
		"quarters": len(refs),
	})
	return nil
}

// resolveCIK reuses the CIK already recorded on the ticker's index, when
// there is one, before asking the fetch collaborator. CIKs are stable, so
// a routine refresh skips the ticker map round trip.
func (s *Service) resolveCIK(ctx context.Context, ticker string) (string, string, error) {
	if idx, err := s.storage.IndexStorage().GetIndex(ticker); err == nil && idx.CIK != "" {
		return idx.CIK, idx.CompanyName, nil
	}
	return s.fetcher.ResolveCIK(ctx, ticker)
}

// StoreQuarter normalizes and writes a single quarter batch and folds it
// into the ticker's cache index. The refresh path stores whole windows;
// this is the entry point for an externally driven single-quarter update.
func (s *Service) StoreQuarter(ctx context.Context, ticker, label string, facts []models.Fact, fetchedAt time.Time) (models.QuarterRef, error) {
	lock := s.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	ref, err := s.storeQuarter(ctx, ticker, label, facts, fetchedAt)
	if err != nil {
		return models.QuarterRef{}, err
	}

	idx, err := s.storage.IndexStorage().GetIndex(ticker)
	if err != nil {
		if !models.IsNotFound(err) {
			return models.QuarterRef{}, err
		}
		idx = &models.TickerCacheIndex{
			Ticker:        ticker,
			SchemaVersion: models.CurrentSchemaVersion,
		}
	}

	replaced := false
	for i, r := range idx.Quarters {
		if r.QuarterLabel == label {
			idx.Quarters[i] = ref
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Quarters = append(idx.Quarters, ref)
	}
	sortRefsDesc(idx.Quarters)

	if err := s.storage.IndexStorage().PutIndex(idx); err != nil {
		s.publishFailure(ctx, ticker, err)
		return models.QuarterRef{}, err
	}
	return ref, nil
}

// storeQuarter writes one batch under the caller's write lock.
func (s *Service) storeQuarter(ctx context.Context, ticker, label string, facts []models.Fact, fetchedAt time.Time) (models.QuarterRef, error) {
	normalized, dominant := s.normalizer.Normalize(facts)
	batch := models.NewQuarterBatch(ticker, label, normalized, fetchedAt)
	batch.PeriodEnd = dominant

	if err := s.storage.FactStorage().PutBatch(batch); err != nil {
		s.publishFailure(ctx, ticker, err)
		return models.QuarterRef{}, err
	}

	s.publish(ctx, interfaces.EventQuarterStored, ticker, map[string]interface{}{
		"quarter": label,
		"facts":   len(normalized),
	})
	return models.QuarterRef{
		QuarterLabel: label,
		PeriodEnd:    dominant,
		FactCount:    len(normalized),
		StoredAt:     fetchedAt,
	}, nil
}

// Index returns the ticker's cache index.
func (s *Service) Index(ticker string) (*models.TickerCacheIndex, error) {
	lock := s.tickerLock(ticker)
	lock.RLock()
	defer lock.RUnlock()
	return s.storage.IndexStorage().GetIndex(ticker)
}

// Delete removes a ticker's cached quarters and index.
func (s *Service) Delete(ticker string) error {
	lock := s.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.FactStorage().DeleteTicker(ticker); err != nil {
		return err
	}
	return s.storage.IndexStorage().DeleteIndex(ticker)
}

// GetStats summarizes cache contents across all tickers.
func (s *Service) GetStats() (*Stats, error) {
	tickers, err := s.storage.IndexStorage().ListTickers()
	if err != nil {
		return nil, err
	}

	stats := &Stats{PerTicker: make(map[string]int)}
	for _, ticker := range tickers {
		idx, err := s.storage.IndexStorage().GetIndex(ticker)
		if err != nil {
			continue
		}
		stats.Tickers++
		stats.PerTicker[ticker] = len(idx.Quarters)
		stats.TotalQuarters += len(idx.Quarters)
	}
	return stats, nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, ticker string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type:      eventType,
		Ticker:    ticker,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func (s *Service) publishFailure(ctx context.Context, ticker string, err error) {
	s.publish(ctx, interfaces.EventRefreshFailed, ticker, map[string]interface{}{
		"error": err.Error(),
	})
}

func sortRefsDesc(refs []models.QuarterRef) {
	labels := make([]string, len(refs))
	byLabel := make(map[string]models.QuarterRef, len(refs))
	for i, r := range refs {
		labels[i] = r.QuarterLabel
		byLabel[r.QuarterLabel] = r
	}
	common.SortQuarterLabelsDesc(labels)
	for i, label := range labels {
		refs[i] = byLabel[label]
	}
}
