package app

import (
	"fmt"
	"os"
	"path/filepath"

	"conduit-registry/internal/config"
)

// Environment variables that relocate the config file and data directory.
const (
	EnvConfigPath = "REGISTRY_CONFIG_PATH"
	EnvHome       = "REGISTRY_HOME"
)

// Paths are the on-disk locations the CLI starts from.
type Paths struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// DefaultPaths resolves Paths from getenv, falling back to
// ~/.config/conduit-registry.toml and ~/.local/share/conduit-registry.
func DefaultPaths(getenv func(string) string) (Paths, error) {
	configPath := getenv(EnvConfigPath)
	baseDir := getenv(EnvHome)

	if configPath == "" || baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".config", "conduit-registry.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(home, ".local", "share", "conduit-registry")
		}
	}

	return Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadConfig reads the config file at path, applies environment overrides
// and validates the result.
func LoadConfig(path string, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
