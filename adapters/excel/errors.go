package excel

import "errors"

var (
	// ErrMissingFilePath is returned when file path is not specified
	ErrMissingFilePath = errors.New("file path is required")

	// ErrInvalidFileFormat is returned when the file is not an .xlsx workbook
	ErrInvalidFileFormat = errors.New("invalid Excel file format")

	// ErrUnsupportedRequest is returned for structured requests the
	// workbook has no equivalent for
	ErrUnsupportedRequest = errors.New("unsupported request")
)
