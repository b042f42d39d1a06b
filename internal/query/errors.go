package query

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("element not found")

	// ErrTempFileExhausted is returned when no unique temporary file could
	// be created within the retry budget.
	ErrTempFileExhausted = errors.New("temporary file name retries exhausted")

	// ErrRelativeURL is returned when a request stage is given a URL
	// without scheme and host.
	ErrRelativeURL = errors.New("URL is not absolute")

	// errStopped ends a run when the consumer stops iterating.
	errStopped = errors.New("iteration stopped")
)

// ElementNotFoundError reports the selector that matched nothing.
type ElementNotFoundError struct {
	Selector string
}

// Error implements the error interface.
func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrElementNotFound, e.Selector)
}

// Unwrap returns ErrElementNotFound.
func (e *ElementNotFoundError) Unwrap() error {
	return ErrElementNotFound
}

// TempFileError aggregates every failed attempt to create a temporary file.
type TempFileError struct {
	Dir      string
	Attempts int

	// Err joins the error of every attempt.
	Err error
}

// Error implements the error interface.
func (e *TempFileError) Error() string {
	return fmt.Sprintf("%v in %s after %d attempts", ErrTempFileExhausted, e.Dir, e.Attempts)
}

// Unwrap returns the sentinel and the joined attempt errors.
func (e *TempFileError) Unwrap() []error {
	return []error{ErrTempFileExhausted, e.Err}
}
