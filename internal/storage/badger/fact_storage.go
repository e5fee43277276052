package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/interfaces"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FactStorage implements the FactStorage interface for Badger
type FactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFactStorage creates a new FactStorage instance
func NewFactStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FactStorage {
	return &FactStorage{
		db:     db,
		logger: logger,
	}
}

// PutBatch overwrites the stored batch for (ticker, quarter label). The
// Upsert runs in a single badger transaction, so readers never observe a
// half-written batch.
func (s *FactStorage) PutBatch(batch *models.QuarterBatch) error {
	if batch.Ticker == "" || batch.QuarterLabel == "" {
		return models.NewStorageError(models.StorageOpWrite, batch.ID,
			fmt.Errorf("ticker and quarter label are required"))
	}
	if batch.ID == "" {
		batch.ID = models.BatchID(batch.Ticker, batch.QuarterLabel)
	}
	if batch.SchemaVersion == 0 {
		batch.SchemaVersion = models.CurrentSchemaVersion
	}

	if err := s.db.Store().Upsert(batch.ID, batch); err != nil {
		return models.NewStorageError(models.StorageOpWrite, batch.ID, err)
	}

	s.logger.Debug().
		Str("ticker", batch.Ticker).
		Str("quarter", batch.QuarterLabel).
		Int("facts", len(batch.Facts)).
		Msg("Stored quarter batch")
	return nil
}

// GetBatch returns the stored batch, or models.ErrNotFound on a miss. A
// record written under a different schema version is treated as absent.
func (s *FactStorage) GetBatch(ticker, quarterLabel string) (*models.QuarterBatch, error) {
	key := models.BatchID(ticker, quarterLabel)

	var batch models.QuarterBatch
	if err := s.db.Store().Get(key, &batch); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("batch %s: %w", key, models.ErrNotFound)
		}
		return nil, models.NewStorageError(models.StorageOpRead, key, err)
	}

	if batch.SchemaVersion != models.CurrentSchemaVersion {
		s.logger.Debug().
			Str("key", key).
			Int("stored_version", int(batch.SchemaVersion)).
			Int("current_version", int(models.CurrentSchemaVersion)).
			Msg("Schema version mismatch, treating batch as absent")
		return nil, fmt.Errorf("batch %s schema version mismatch: %w", key, models.ErrNotFound)
	}

	return &batch, nil
}

// ListQuarters returns the cached quarter labels for a ticker, most recent
// first. Batches with a stale schema version are excluded.
func (s *FactStorage) ListQuarters(ticker string) ([]string, error) {
	var batches []models.QuarterBatch
	err := s.db.Store().Find(&batches, badgerhold.Where("Ticker").Eq(ticker))
	if err != nil {
		return nil, models.NewStorageError(models.StorageOpRead, ticker, err)
	}

	labels := make([]string, 0, len(batches))
	for _, b := range batches {
		if b.SchemaVersion != models.CurrentSchemaVersion {
			continue
		}
		labels = append(labels, b.QuarterLabel)
	}
	common.SortQuarterLabelsDesc(labels)
	return labels, nil
}

// DeleteTicker removes all batches for a ticker.
func (s *FactStorage) DeleteTicker(ticker string) error {
	err := s.db.Store().DeleteMatching(&models.QuarterBatch{}, badgerhold.Where("Ticker").Eq(ticker))
	if err != nil && err != badgerhold.ErrNotFound {
		return models.NewStorageError(models.StorageOpWrite, ticker, err)
	}
	return nil
}
