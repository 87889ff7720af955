package scraper

import (
	"errors"
	"fmt"
)

// CodeTimeout is the errorCode reported to clients when a scraper is killed
// for exceeding its timeout.
const CodeTimeout = "TIMEOUT"

// maxDiagnosticLen bounds the stderr/stdout carried in errors
const maxDiagnosticLen = 1000

// ErrTimeout matches any ProcessError caused by a timeout
var ErrTimeout = errors.New("scraper timed out")

// ProcessError is returned when the scraper exits non-zero or is killed
type ProcessError struct {
	Script   string
	ExitCode int
	Timeout  bool
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("scraper %s timed out", e.Script)
	}
	return fmt.Sprintf("scraper %s exited with code %d: %v", e.Script, e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTimeout) detect timeouts
func (e *ProcessError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// Code returns the client-facing error code
func (e *ProcessError) Code() string {
	if e.Timeout {
		return CodeTimeout
	}
	return "PROCESS_FAILED"
}

// EmptyOutputError is returned when the scraper printed nothing
type EmptyOutputError struct {
	Script string
	Stderr string
}

func (e *EmptyOutputError) Error() string {
	return fmt.Sprintf("scraper %s returned empty output", e.Script)
}

// Code returns the client-facing error code
func (e *EmptyOutputError) Code() string {
	return "EMPTY_OUTPUT"
}

// OutputParseError is returned when stdout holds no recoverable JSON document
type OutputParseError struct {
	Script string
	Output string
	Err    error
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("failed to parse %s output: %v", e.Script, e.Err)
}

func (e *OutputParseError) Unwrap() error {
	return e.Err
}

// Code returns the client-facing error code
func (e *OutputParseError) Code() string {
	return "PARSE_ERROR"
}

// truncate limits diagnostic output to maxDiagnosticLen bytes
func truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return s[:maxDiagnosticLen]
}
