package core

import (
	"fmt"
	"path/filepath"
)

// NormalizePath converts a raw path into the normalized absolute form used
// as workbook identity. Normalization is purely lexical; it does not require
// the file to exist.
func NormalizePath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}
