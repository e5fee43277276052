package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	facts  interfaces.FactStorage
	index  interfaces.IndexStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		facts:  NewFactStorage(db, logger),
		index:  NewIndexStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// FactStorage returns the quarterly fact batch storage interface
func (m *Manager) FactStorage() interfaces.FactStorage {
	return m.facts
}

// IndexStorage returns the per-ticker cache index storage interface
func (m *Manager) IndexStorage() interfaces.IndexStorage {
	return m.index
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
