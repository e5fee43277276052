package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// IndexStorage implements the IndexStorage interface for Badger
type IndexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIndexStorage creates a new IndexStorage instance
func NewIndexStorage(db *BadgerDB, logger arbor.ILogger) interfaces.IndexStorage {
	return &IndexStorage{
		db:     db,
		logger: logger,
	}
}

func (s *IndexStorage) PutIndex(idx *models.TickerCacheIndex) error {
	if idx.Ticker == "" {
		return models.NewStorageError(models.StorageOpWrite, "",
			fmt.Errorf("ticker is required"))
	}
	if idx.SchemaVersion == 0 {
		idx.SchemaVersion = models.CurrentSchemaVersion
	}
	idx.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(idx.Ticker, idx); err != nil {
		return models.NewStorageError(models.StorageOpWrite, idx.Ticker, err)
	}
	return nil
}

func (s *IndexStorage) GetIndex(ticker string) (*models.TickerCacheIndex, error) {
	var idx models.TickerCacheIndex
	if err := s.db.Store().Get(ticker, &idx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("index %s: %w", ticker, models.ErrNotFound)
		}
		return nil, models.NewStorageError(models.StorageOpRead, ticker, err)
	}

	if idx.SchemaVersion != models.CurrentSchemaVersion {
		s.logger.Debug().
			Str("ticker", ticker).
			Int("stored_version", int(idx.SchemaVersion)).
			Msg("Schema version mismatch, treating index as absent")
		return nil, fmt.Errorf("index %s schema version mismatch: %w", ticker, models.ErrNotFound)
	}

	return &idx, nil
}

func (s *IndexStorage) ListTickers() ([]string, error) {
	var indexes []models.TickerCacheIndex
	if err := s.db.Store().Find(&indexes, badgerhold.Where("Ticker").Ne("")); err != nil {
		return nil, models.NewStorageError(models.StorageOpRead, "", err)
	}

	tickers := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		tickers = append(tickers, idx.Ticker)
	}
	return tickers, nil
}

func (s *IndexStorage) DeleteIndex(ticker string) error {
	if err := s.db.Store().Delete(ticker, &models.TickerCacheIndex{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return models.NewStorageError(models.StorageOpWrite, ticker, err)
	}
	return nil
}
