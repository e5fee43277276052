// Package interfaces defines the contracts between the storage layer,
// services and handlers.
package interfaces

import (
	"github.com/ternarybob/quartus/internal/models"
)

// FactStorage persists quarter batches. Writes are atomic at batch
// granularity: a reader observes either the full prior batch or the full
// new batch for a key, never a mix.
type FactStorage interface {
	// PutBatch overwrites any existing batch for (ticker, quarter label).
	// Failures surface as *models.StorageError.
	PutBatch(batch *models.QuarterBatch) error
	// GetBatch returns models.ErrNotFound (wrapped) on a miss or when the
	// stored record's schema version does not match the running version.
	GetBatch(ticker, quarterLabel string) (*models.QuarterBatch, error)
	// ListQuarters returns the cached quarter labels for a ticker, most
	// recent first.
	ListQuarters(ticker string) ([]string, error)
	// DeleteTicker removes all batches for a ticker.
	DeleteTicker(ticker string) error
}

// IndexStorage persists per-ticker cache metadata.
type IndexStorage interface {
	PutIndex(idx *models.TickerCacheIndex) error
	// GetIndex returns models.ErrNotFound (wrapped) on a miss or schema
	// version mismatch.
	GetIndex(ticker string) (*models.TickerCacheIndex, error)
	// ListTickers returns all indexed tickers.
	ListTickers() ([]string, error)
	// DeleteIndex removes a ticker's index record.
	DeleteIndex(ticker string) error
}

// StorageManager provides access to all storage interfaces.
type StorageManager interface {
	FactStorage() FactStorage
	IndexStorage() IndexStorage
	Close() error
}
