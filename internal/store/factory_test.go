package store

import (
	"testing"

	"gridvault/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		cfg := config.StoreConfig{Type: "memory"}
		got, err := NewStoreFromConfig(cfg, "test-host-123")

		if err != nil {
			t.Errorf("NewStoreFromConfig() unexpected error: %v", err)
			return
		}

		if got == nil {
			t.Error("NewStoreFromConfig() returned nil")
		}

		if got != nil {
			got.Close()
		}
	})

	t.Run("sqlite store", func(t *testing.T) {
		cfg := config.StoreConfig{
			Type:    "sqlite",
			DataDir: t.TempDir(),
		}
		got, err := NewStoreFromConfig(cfg, "test-host-123")

		if err != nil {
			t.Errorf("NewStoreFromConfig() unexpected error: %v", err)
			return
		}

		if got == nil {
			t.Error("NewStoreFromConfig() returned nil")
		}

		if got != nil {
			got.Close()
		}
	})

	t.Run("sqlite store without data_dir", func(t *testing.T) {
		cfg := config.StoreConfig{Type: "sqlite"}
		got, err := NewStoreFromConfig(cfg, "test-host-123")

		if err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir, got nil")
		}

		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown store type", func(t *testing.T) {
		cfg := config.StoreConfig{Type: "unknown"}
		got, err := NewStoreFromConfig(cfg, "test-host-123")

		if err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type, got nil")
		}

		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
			got.Close()
		}
	})
}
