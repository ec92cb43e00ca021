package googlesheets

import (
	"errors"
	"log/slog"
)

// Config identifies the spreadsheet the adapter writes to
type Config struct {
	// SpreadsheetID is the document id from the spreadsheet URL
	SpreadsheetID string

	// SpreadsheetName is looked up through Drive when SpreadsheetID is empty
	SpreadsheetName string

	// Logger receives lifecycle messages (default: discard)
	Logger *slog.Logger
}

// Validate checks that the spreadsheet can be identified
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" && c.SpreadsheetName == "" {
		return errors.New("either SpreadsheetID or SpreadsheetName is required")
	}
	return nil
}
