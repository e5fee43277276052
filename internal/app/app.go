// Package app wires configuration, storage, services and handlers into a
// running application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/edgar"
	"github.com/ternarybob/quartus/internal/handlers"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/services/cache"
	"github.com/ternarybob/quartus/internal/services/events"
	"github.com/ternarybob/quartus/internal/services/selection"
	"github.com/ternarybob/quartus/internal/services/series"
	"github.com/ternarybob/quartus/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	EventService  interfaces.EventService
	FetchService  interfaces.FetchService
	CacheService  *cache.Service
	SeriesBuilder *series.Builder

	// Handlers
	APIHandler    *handlers.APIHandler
	SeriesHandler *handlers.SeriesHandler
	CacheHandler  *handlers.CacheHandler
	WSHandler     *handlers.WebSocketHandler

	scheduler *cron.Cron
}

// New creates and wires the application.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		cancel()
		return nil, err
	}
	a.StorageManager = storageManager

	a.EventService = events.NewService(logger)

	edgarOpts := []edgar.ClientOption{
		edgar.WithLogger(logger),
		edgar.WithRateLimit(cfg.Edgar.RequestsPerSecond),
		edgar.WithHTTPClient(&http.Client{Timeout: cfg.EdgarRequestTimeout()}),
	}
	if cfg.Edgar.BaseURL != "" {
		edgarOpts = append(edgarOpts, edgar.WithBaseURL(cfg.Edgar.BaseURL))
	}
	if cfg.Edgar.TickerMapURL != "" {
		edgarOpts = append(edgarOpts, edgar.WithTickerMapURL(cfg.Edgar.TickerMapURL))
	}
	if len(cfg.Facts.Concepts) > 0 {
		edgarOpts = append(edgarOpts, edgar.WithConcepts(cfg.Facts.Concepts))
	}
	a.FetchService = edgar.NewClient(cfg.Edgar.UserAgent, edgarOpts...)

	a.CacheService = cache.NewService(a.StorageManager, a.FetchService, a.EventService, &cfg.Cache, logger)

	selector := selection.NewSelector(cfg.Facts.QuarterlyMaxDays)
	a.SeriesBuilder = series.NewBuilder(a.CacheService, selector, &cfg.Series, logger)

	a.APIHandler = handlers.NewAPIHandler()
	a.SeriesHandler = handlers.NewSeriesHandler(a.SeriesBuilder, a.CacheService, logger)
	a.CacheHandler = handlers.NewCacheHandler(a.CacheService, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger)

	if err := a.startScheduler(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info().Msg("Application initialized")
	return a, nil
}

// startScheduler starts the background staleness sweep when a cron
// schedule is configured.
func (a *App) startScheduler() error {
	schedule := a.Config.Cache.RefreshSchedule
	if schedule == "" {
		return nil
	}

	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(schedule, a.stalenessSweep)
	if err != nil {
		return err
	}
	a.scheduler.Start()

	a.Logger.Info().Str("schedule", schedule).Msg("Staleness sweep scheduled")
	return nil
}

// stalenessSweep checks every cached ticker and kicks off a background
// refresh for the stale ones.
func (a *App) stalenessSweep() {
	tickers, err := a.StorageManager.IndexStorage().ListTickers()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Staleness sweep failed to list tickers")
		return
	}

	now := time.Now().UTC()
	for _, ticker := range tickers {
		result := a.CacheService.CheckStaleness(a.ctx, ticker, now)
		if !result.IsStale {
			continue
		}
		a.Logger.Info().
			Str("ticker", ticker).
			Str("reason", result.Reason).
			Msg("Staleness sweep refreshing ticker")
		if err := a.CacheService.StartRefresh(ticker, false, 2*time.Minute); err != nil {
			a.Logger.Debug().Err(err).Str("ticker", ticker).Msg("Sweep refresh not started")
		}
	}
}

// Close releases application resources.
func (a *App) Close() error {
	a.cancelCtx()

	if a.scheduler != nil {
		ctx := a.scheduler.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Timed out waiting for scheduled jobs to stop")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
