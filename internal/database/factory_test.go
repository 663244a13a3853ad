package database

import (
	"os"
	"path/filepath"
	"testing"

	"conduit-registry/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if got.Path() != MemoryPath {
			t.Errorf("Path() = %q, want %q", got.Path(), MemoryPath)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "db")
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dataDir})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		want := filepath.Join(dataDir, DatabaseFileName)
		if got.Path() != want {
			t.Errorf("Path() = %q, want %q", got.Path(), want)
		}
		if _, err := os.Stat(dataDir); err != nil {
			t.Errorf("data dir not created: %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		_, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite"})
		if err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStoreFromConfig(config.DatabaseConfig{Type: "postgres"})
		if err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type")
		}
	})
}
