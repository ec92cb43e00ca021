package dashboard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorksheetSetup means a page could not get a usable worksheet.
	// The page is abandoned.
	ErrWorksheetSetup = errors.New("worksheet setup failed")

	ErrNoPages = errors.New("no pages to refresh")
)

// RunError is returned by Refresher.Run when the final flush fails or
// when every page failed
type RunError struct {
	Failed []string // names of the pages that failed, in run order
	Err    error
}

func (e *RunError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("dashboard refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("dashboard refresh failed (pages: %s): %v", strings.Join(e.Failed, ", "), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
