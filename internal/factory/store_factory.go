package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/outreach-tracker/internal/adapters/cache"
	"github.com/mikey/outreach-tracker/internal/adapters/store"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates the contact store and processed set based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTrackingStore creates a tracking store based on the configuration
func (f *StoreFactory) CreateTrackingStore() (core.TrackingStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		f.logger.Warn("Using in-memory contact store, data is lost on restart")
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		if storeCfg.SQLitePath != ":memory:" {
			// Ensure directory exists
			if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		f.logger.Info("Opening SQLite contact store", zap.String("path", storeCfg.SQLitePath))
		s, err := store.NewSQLiteStore(storeCfg.SQLitePath, f.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mysql":
		f.logger.Info("Connecting to MySQL contact store")
		s, err := store.NewMySQLStore(storeCfg.MySQLDSN, f.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// CreateProcessedSet creates the bounded set of already processed message ids
func (f *StoreFactory) CreateProcessedSet() core.ProcessedSet {
	return cache.NewMemorySet(f.cfg.GetInt("reply_monitor.processed_limit"), f.logger)
}
