package config

import "errors"

// Sentinel errors returned by Config.Validate. Callers match them with
// errors.Is; the messages name the offending flag where there is one.
var (
	// ErrNoTarget is returned when no URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTarget is returned when a target is not an absolute http or
	// https URL.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Zero disables the delay.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidSkipRecent is returned when the skip-recent window is
	// negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent duration: must be non-negative")

	// ErrSkipRecentWithoutDB is returned when --skip-recent is combined with
	// --no-db; recent crawls are looked up in the database.
	ErrSkipRecentWithoutDB = errors.New("conflicting options: --skip-recent needs the database, remove --no-db")

	// ErrInvalidCrawlDepth is returned when the crawl depth is below -1.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be -1 (unbounded) or greater")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Zero selects the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxy is returned when the proxy is not a URL with an
	// http, https, socks5 or socks5h scheme.
	ErrInvalidProxy = errors.New("invalid proxy: must be an http, https, socks5 or socks5h URL")

	// ErrConflictingProxy is returned when both an explicit proxy and the
	// embedded Tor daemon are requested.
	ErrConflictingProxy = errors.New("conflicting proxies: --proxy and --tor cannot be used together")
)
