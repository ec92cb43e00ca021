package excel

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Config holds configuration for Excel adapter
type Config struct {
	FilePath string       // Path to the .xlsx workbook, created when missing
	Author   string       // Author of notes (default: "sheetdash")
	Logger   *slog.Logger // Optional; discards when nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	switch strings.ToLower(filepath.Ext(c.FilePath)) {
	case ".xlsx", ".xlsm":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFileFormat, c.FilePath)
	}
}
