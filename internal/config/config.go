package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/fetchq/internal/fetch"
)

// Default configuration values.
const (
	// DefaultTimeout is the overall time limit of a single request.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultCrawlDepth of 3 covers the navigation of most sites without
	// walking into archives and tag clouds. -1 removes the limit.
	DefaultCrawlDepth = 3

	// DefaultBatchSize is the number of roots crawled concurrently.
	DefaultBatchSize = 4

	// DefaultMaxPages is the maximum number of pages to crawl per root.
	// This prevents runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 100

	// AppName is the application name used for XDG directory paths.
	AppName = "fetchq"

	// DefaultCrawlDelay is the delay between requests of one crawl.
	// This is a politeness setting to avoid overwhelming a server.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultUserAgent identifies fetchq in HTTP requests.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits the bytes kept per crawled page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout bounds the bootstrap of the embedded Tor
	// daemon.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for the fetchq command.
// This struct is populated from CLI flags and passed through the
// application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable.
type Config struct {
	// Timeout is the time limit of each request, including reading the body.
	Timeout time.Duration

	// CrawlDepth is the maximum number of link hops from a root.
	// Depth 0 means only fetch the root page; -1 means unbounded.
	CrawlDepth int

	// MaxPages is the maximum number of pages to crawl per root.
	// A value of 0 means no limit.
	MaxPages int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of roots crawled concurrently.
	BatchSize int

	// ConfigFilePath is the path to the site file.
	// If empty, the tool searches for .fetchq in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-host configurations loaded from the site file.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of URLs to fetch or crawl.
	Targets []string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/fetchq on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl results to the database.
	SaveToDB bool

	// SkipRecent skips roots whose root page was stored within this
	// duration. Zero crawls every root. Requires SaveToDB.
	SkipRecent time.Duration

	// CrawlDelay is the minimum delay between two requests of one crawl.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes kept per page.
	// Set to 0 to keep whole bodies.
	MaxBodySize int64

	// Proxy is the proxy URL, e.g. "socks5://127.0.0.1:9050".
	// Empty means a direct connection.
	Proxy string

	// Insecure disables TLS certificate verification.
	Insecure bool

	// Tor routes requests through an embedded Tor daemon started for the
	// run. It cannot be combined with Proxy.
	Tor bool

	// TorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// Username and Password are sent as HTTP basic credentials when
	// Username is not empty.
	Username string
	Password string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero.
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		CrawlDepth:  DefaultCrawlDepth,
		MaxPages:    DefaultMaxPages,
		BatchSize:   DefaultBatchSize,
		CrawlDelay:  DefaultCrawlDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,

		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for fetchq.
// On Linux: ~/.local/share/fetchq
// On macOS: ~/Library/Application Support/fetchq
// On Windows: %LOCALAPPDATA%\fetchq
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for fetchq.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := validateTarget(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}
	if c.SkipRecent > 0 && !c.SaveToDB {
		return ErrSkipRecentWithoutDB
	}

	if c.CrawlDepth < -1 {
		return ErrInvalidCrawlDepth
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if _, err := c.proxyURL(); err != nil {
		return err
	}

	if c.Tor && c.Proxy != "" {
		return ErrConflictingProxy
	}

	return nil
}

// SiteFor returns the site configuration that applies to target.
// Without a site file it returns the zero SiteConfig.
func (c *Config) SiteFor(target string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	u, err := url.Parse(target)
	if err != nil {
		return c.SiteConfigs.Defaults
	}
	return c.SiteConfigs.GetSiteConfig(u.Host)
}

// Depth returns the crawl depth for site: its own depth when set, else the
// global CrawlDepth.
func (c *Config) Depth(site SiteConfig) int {
	if site.Depth != 0 {
		return site.Depth
	}
	return c.CrawlDepth
}

// FetchConfig projects the configuration and site onto an immutable
// fetch.Config. Site headers, cookie and user agent override the global
// values.
func (c *Config) FetchConfig(site SiteConfig) (fetch.Config, error) {
	proxy, err := c.proxyURL()
	if err != nil {
		return fetch.Config{}, err
	}

	cfg := fetch.DefaultConfig().
		WithTimeout(c.Timeout).
		WithProxy(proxy).
		WithInsecureSkipVerify(c.Insecure)

	if c.UserAgent != "" {
		cfg = cfg.WithUserAgent(c.UserAgent)
	}
	if site.UserAgent != "" {
		cfg = cfg.WithUserAgent(site.UserAgent)
	}
	if c.Username != "" {
		cfg = cfg.WithCredentials(c.Username, c.Password)
	}

	names := make([]string, 0, len(site.Headers))
	for name := range site.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg = cfg.WithHeader(name, site.Headers[name])
	}
	if site.Cookie != "" {
		cfg = cfg.WithHeader("Cookie", site.Cookie)
	}

	return cfg, nil
}

func (c *Config) proxyURL() (*url.URL, error) {
	if c.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, c.Proxy)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, c.Proxy)
	}
	return u, nil
}

func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return nil
}
