package database

import (
	"fmt"
	"os"
	"path/filepath"

	"conduit-registry/internal/config"
)

// DatabaseFileName is the SQLite file created under the configured data dir.
const DatabaseFileName = "registry.db"

// NewStoreFromConfig opens the store selected by the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		return NewSQLiteStore(MemoryPath)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
