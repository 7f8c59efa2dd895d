package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - GRIDVAULT_CONFIG_PATH: config file location (default: ~/.config/gridvault.toml)
//   - GRIDVAULT_HOME: base directory for gridvault data (default: ~/.local/share/gridvault)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking GRIDVAULT_CONFIG_PATH
// env var first, then falling back to the default ~/.config/gridvault.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("GRIDVAULT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "gridvault.toml"), nil
}

// getBaseDir returns the base directory for gridvault data, checking
// GRIDVAULT_HOME env var first, then falling back to the XDG default
// ~/.local/share/gridvault.
func getBaseDir() (string, error) {
	if path := os.Getenv("GRIDVAULT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "gridvault"), nil
}
