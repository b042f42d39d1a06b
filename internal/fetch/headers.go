package fetch

import (
	"maps"
	"net/http"
	"slices"

	"golang.org/x/net/http/httpguts"
)

// requestPreferred lists headers where a value already present on the
// request wins over the Config value.
var requestPreferred = map[string]bool{
	"User-Agent":   true,
	"Referer":      true,
	"Accept":       true,
	"Content-Type": true,
}

// applyHeaders merges the Config headers into req.
// Request-preferred headers are only filled in when absent. Every other
// Config header is appended, so duplicates are sent.
func applyHeaders(req *http.Request, cfg Config) error {
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	for name, values := range req.Header {
		if err := validateHeader(name, values); err != nil {
			return err
		}
	}

	// Only values the caller put on the request are protected; the default
	// user agent fills in last.
	for _, name := range slices.Sorted(maps.Keys(cfg.header)) {
		values := cfg.header[name]
		if err := validateHeader(name, values); err != nil {
			return err
		}
		if requestPreferred[name] {
			if len(req.Header.Values(name)) > 0 {
				continue
			}
			req.Header[name] = slices.Clone(values)
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if cfg.userAgent != "" && req.Header.Get("User-Agent") == "" {
		if err := validateHeader("User-Agent", []string{cfg.userAgent}); err != nil {
			return err
		}
		req.Header.Set("User-Agent", cfg.userAgent)
	}
	return nil
}

func validateHeader(name string, values []string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return &ConfigError{Field: "header name", Value: name, Err: ErrInvalidHeader}
	}
	for _, v := range values {
		if !httpguts.ValidHeaderFieldValue(v) {
			return &ConfigError{Field: name, Value: v, Err: ErrInvalidHeader}
		}
	}
	return nil
}
