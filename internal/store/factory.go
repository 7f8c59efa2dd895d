package store

import (
	"fmt"
	"path/filepath"

	"gridvault/internal/config"
	"gridvault/internal/core"
)

// NewStoreFromConfig creates a Store implementation based on the store
// config type. Memory stores are in-memory SQLite databases with the schema
// applied directly; they require no migration step.
func NewStoreFromConfig(cfg config.StoreConfig, hostID string) (core.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		dbPath := filepath.Join(cfg.DataDir, hostID+".db")
		s, err := NewSQLiteStore(dbPath, nil, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		db, err := OpenConnection(":memory:")
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec(Schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return NewSQLiteStoreFromDB(db, nil, nil), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
