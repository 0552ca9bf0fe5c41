package ingest

import (
	"errors"
	"fmt"
)

// Gateway rejections. Both are returned before anything touches the disk.
var (
	ErrInvalidFileType = errors.New("invalid file type: only Excel files (.xls, .xlsx) are allowed")
	ErrFileTooLarge    = errors.New("file too large")
)

// Parser failures. Parse wraps each of these in a *ParseError.
var (
	ErrNoSheets      = errors.New("no sheets found in the Excel file")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrEmptySheet    = errors.New("no data found in the Excel file")
	ErrNoHeaders     = errors.New("no column headers found")
)

// parseErrorPrefix starts the message of every error returned by Parse.
const parseErrorPrefix = "Failed to process Excel file: "

// ProcessingError wraps a failure of the spreadsheet library itself
// (unreadable file, corrupt archive, unsupported format).
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ParseError is the single error a failed parse returns. Its message is the
// root cause prefixed with "Failed to process Excel file: ".
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return parseErrorPrefix + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err was caused by the uploaded input rather
// than by the server. Gateway rejections and the parser taxonomy qualify;
// library failures count as well because they mean the file could not be read.
func IsClientError(err error) bool {
	var pe *ParseError
	return errors.Is(err, ErrInvalidFileType) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.As(err, &pe)
}

func sheetNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

func fileTooLarge(limit int64) error {
	return fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, formatMiB(limit))
}

func formatMiB(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/mib)
}
