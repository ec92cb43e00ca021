package sheetdash

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorksheetNotFound = errors.New("worksheet not found")
	ErrInvalidRange      = errors.New("invalid A1 range")
	ErrInvalidColumn     = errors.New("invalid column")
	ErrFlushAborted      = errors.New("flush aborted")
	ErrQuotaExceeded     = errors.New("quota exceeded")
)

// APIError is returned by adapters that are not backed by googleapi but
// still want their failures classified by status code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// StatusCode reports the HTTP-like status of the error.
func (e *APIError) StatusCode() int {
	return e.Code
}

// Is lets errors.Is(err, ErrQuotaExceeded) match a 429.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Code == http.StatusTooManyRequests
}
