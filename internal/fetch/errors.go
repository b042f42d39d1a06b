package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Fetch errors.
// Configuration errors are fatal and never retried. Status and media errors
// describe a response that did not meet a stage's expectations.
var (
	// ErrInvalidHeader is returned when a configured header name or value
	// is malformed. The request is not sent.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidCharset is returned when a response declares a charset that
	// has no known decoder.
	ErrInvalidCharset = errors.New("invalid charset")

	// ErrUnsupportedOption is returned when a transport cannot be built from
	// a Config, e.g. an unknown proxy scheme or decompression method.
	ErrUnsupportedOption = errors.New("unsupported transport option")

	// ErrHTTPStatus is returned in strict mode when a response status is
	// outside the 2xx range.
	ErrHTTPStatus = errors.New("unsuccessful HTTP status")

	// ErrUnacceptableMedia is returned when a response media type is not in
	// the accepted set.
	ErrUnacceptableMedia = errors.New("unacceptable media type")

	// ErrBodyConsumed is returned when a response body is read a second time.
	ErrBodyConsumed = errors.New("response body already consumed")

	// ErrSessionClosed is returned by Session.Send after Close.
	ErrSessionClosed = errors.New("session closed")
)

// ConfigError reports a configuration problem detected while preparing or
// sending a request. Err is one of ErrInvalidHeader, ErrInvalidCharset or
// ErrUnsupportedOption.
type ConfigError struct {
	// Field names the offending setting (header name, "charset", "proxy", ...).
	Field string

	// Value is the rejected value.
	Value string

	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response received in strict mode.
type StatusError struct {
	Info *Info
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Info == nil {
		return ErrHTTPStatus.Error()
	}
	return fmt.Sprintf("fetch %d %s: %d %s", e.Info.ID, e.Info.URL, e.Info.StatusCode, e.Info.Reason)
}

// Unwrap returns ErrHTTPStatus.
func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}

// UnacceptableMediaError reports a response whose media type is not one of
// the expected media types.
type UnacceptableMediaError struct {
	Actual   string
	Expected []string
}

// Error implements the error interface.
func (e *UnacceptableMediaError) Error() string {
	actual := e.Actual
	if actual == "" {
		actual = "(none)"
	}
	return fmt.Sprintf("%v: got %s, want one of [%s]", ErrUnacceptableMedia, actual, strings.Join(e.Expected, ", "))
}

// Unwrap returns ErrUnacceptableMedia.
func (e *UnacceptableMediaError) Unwrap() error {
	return ErrUnacceptableMedia
}
