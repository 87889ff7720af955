package document

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a served document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrUnsupportedType is returned for extensions with no retrieval strategy
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrInvalidURL is returned for blank or non-http(s) document URLs
	ErrInvalidURL = errors.New("invalid document URL")
)

// UpstreamFetchError is returned when a remote document cannot be fetched
// before any response headers were sent.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ConversionTimeoutError is returned when the converter is killed for
// exceeding its timeout.
type ConversionTimeoutError struct {
	Timeout time.Duration
}

func (e *ConversionTimeoutError) Error() string {
	return fmt.Sprintf("document conversion timed out after %s", e.Timeout)
}

// ConversionFailedError is returned when the converter exits without
// producing the expected output file.
type ConversionFailedError struct {
	Stderr string
	Err    error
}

func (e *ConversionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document conversion failed: %v", e.Err)
	}
	return "document conversion failed: no output file produced"
}

func (e *ConversionFailedError) Unwrap() error {
	return e.Err
}
