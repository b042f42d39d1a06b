package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/fetchq/internal/fetch"
	"github.com/nao1215/fetchq/internal/query"
	"golang.org/x/time/rate"
)

const (
	// UnboundedDepth disables the depth limit.
	UnboundedDepth = -1

	// DefaultMaxBodySize is the number of body bytes kept per page.
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// ErrInvalidRoot is returned when the crawl root is not an absolute http or
// https URL.
var ErrInvalidRoot = errors.New("invalid crawl root: must be an absolute http or https URL")

// Content is what the crawler yields for each page.
type Content struct {
	// Depth is the number of link hops from the root. The root has depth 0.
	Depth int

	// Body is the response body, truncated to the spider's body limit.
	Body []byte

	// Title is the HTML title, if the page is HTML.
	Title string

	// Links holds every absolute http(s) link found on an HTML page, in
	// document order. It is nil for other media types.
	Links []string

	// Meta holds the meta tags of an HTML page by lower-cased name.
	Meta map[string]string
}

// Spider crawls a site breadth-first, one request at a time, staying on the
// root's host.
//
// Design decision: We call it "Spider" rather than "Crawler" because
// "Spider" is the traditional term for web crawlers and it reads well as
// crawler.NewSpider().
type Spider struct {
	// maxDepth limits how deep to crawl from the root.
	// 0 means only the root, 1 means one level of links, etc.
	// UnboundedDepth removes the limit.
	maxDepth int

	// maxPages limits the number of pages yielded. 0 means no limit.
	maxPages int

	// delay is the minimum time between two requests.
	delay time.Duration

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// follow decides whether a discovered same-host link is crawled.
	// Nil follows every link.
	follow func(*url.URL) bool

	// ignorePatterns and followPatterns are path globs combined with follow.
	ignorePatterns []string
	followPatterns []string

	// setup is applied to every page request.
	setup fetch.Setup

	logger *slog.Logger

	mu    sync.Mutex
	stats SpiderStats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the root, 1 = root plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to yield.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the minimum delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithMaxBodySize sets the maximum response body size kept per page.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithFollow sets the predicate deciding which discovered links to crawl.
func WithFollow(follow func(*url.URL) bool) SpiderOption {
	return func(s *Spider) {
		s.follow = follow
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSetup sets the setup (configuration, filters) applied to every page
// request. Tolerance options are always overridden: the crawler never fails
// on a status code.
func WithSetup(setup fetch.Setup) SpiderOption {
	return func(s *Spider) {
		s.setup = setup
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider. By default the depth is unbounded, every
// same-host link is followed and there is no delay.
func NewSpider(opts ...SpiderOption) *Spider {
	s := &Spider{
		maxDepth:    UnboundedDepth,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl crawls from root over a new session built from fetch.DefaultConfig.
func Crawl(ctx context.Context, root string, opts ...SpiderOption) iter.Seq2[query.Fetch[*Content], error] {
	spider := NewSpider(opts...)
	return func(yield func(query.Fetch[*Content], error) bool) {
		sess, err := fetch.NewSession(fetch.DefaultConfig(), fetch.WithLogger(spider.logger))
		if err != nil {
			yield(query.Fetch[*Content]{}, err)
			return
		}
		defer sess.Close()

		for page, err := range spider.Crawl(ctx, sess, root) {
			if !yield(page, err) {
				return
			}
		}
	}
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   *url.URL
	depth int
}

// Crawl yields the pages reachable from root in breadth-first order.
//
// Every URL is fetched at most once. Fetch failures and non-2xx responses
// are dropped without ending the crawl; only context cancellation is
// reported as an error. Links are expanded only from HTML pages, only to
// the root's host, and only while the page depth is below the maximum.
func (s *Spider) Crawl(ctx context.Context, sess *fetch.Session, root string) iter.Seq2[query.Fetch[*Content], error] {
	return func(yield func(query.Fetch[*Content], error) bool) {
		start, err := parseRoot(root)
		if err != nil {
			yield(query.Fetch[*Content]{}, err)
			return
		}

		s.resetStats()

		var limiter *rate.Limiter
		if s.delay > 0 {
			limiter = rate.NewLimiter(rate.Every(s.delay), 1)
		}
		follow := s.followPredicate()

		startKey := *start
		dropDefaultPort(&startKey)
		visited := map[string]struct{}{startKey.String(): {}}
		queue := []queueItem{{url: start, depth: 0}}
		s.addQueued(1)
		pages := 0

		for len(queue) > 0 {
			if s.maxPages > 0 && pages >= s.maxPages {
				s.logger.Debug("page limit reached", "max_pages", s.maxPages)
				return
			}

			item := queue[0]
			queue = queue[1:]

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					// Wait fails early when the delay would overrun the deadline.
					if ctxErr := ctx.Err(); ctxErr != nil {
						err = ctxErr
					} else {
						err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
					}
					yield(query.Fetch[*Content]{}, err)
					return
				}
			}

			page, err := s.fetchPage(ctx, sess, item)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(query.Fetch[*Content]{}, ctxErr)
					return
				}
				s.drop(item, err)
				continue
			}
			if page == nil {
				continue
			}

			pages++
			s.addVisited()
			if !yield(*page, nil) {
				return
			}

			if s.maxDepth != UnboundedDepth && item.depth >= s.maxDepth {
				continue
			}
			for _, link := range page.Content.Links {
				u, err := url.Parse(link)
				if err != nil || !u.IsAbs() || !sameHost(u, start) {
					continue
				}
				dropDefaultPort(u)
				key := u.String()
				if _, seen := visited[key]; seen {
					continue
				}
				if !follow(u) {
					continue
				}
				visited[key] = struct{}{}
				queue = append(queue, queueItem{url: u, depth: item.depth + 1})
				s.addQueued(1)
			}
		}
	}
}

// fetchPage fetches one queued URL. It returns nil without error when the
// response is filtered out or unsuccessful.
func (s *Spider) fetchPage(ctx context.Context, sess *fetch.Session, item queueItem) (*query.Fetch[*Content], error) {
	q := query.Read(
		query.Get(item.url.String()).WithSetup(s.setup).ReturnErroneousFetch(),
		fetch.LimitedBytesReader(s.maxBodySize),
	)

	var result *query.Fetch[[]byte]
	for f, err := range query.All(ctx, sess, q) {
		if err != nil {
			return nil, err
		}
		result = &f
	}
	if result == nil {
		s.drop(item, nil)
		return nil, nil
	}
	if !result.Info.IsSuccess() {
		s.drop(item, &fetch.StatusError{Info: result.Info})
		return nil, nil
	}

	content := &Content{Depth: item.depth, Body: result.Content}
	if isHTML(result.Info) {
		if parsed, err := NewParser(result.Info.URL).Parse(bytes.NewReader(result.Content)); err == nil {
			content.Title = parsed.Title
			content.Links = parsed.Links
			content.Meta = parsed.Meta
		} else {
			s.logger.Debug("failed to parse HTML", "url", item.url.Redacted(), "error", err)
		}
	}

	return &query.Fetch[*Content]{Info: result.Info, Content: content}, nil
}

// followPredicate combines the follow option with the path patterns.
func (s *Spider) followPredicate() func(*url.URL) bool {
	patterns := PathPatterns(s.ignorePatterns, s.followPatterns)
	return func(u *url.URL) bool {
		if !patterns(u) {
			return false
		}
		return s.follow == nil || s.follow(u)
	}
}

func (s *Spider) drop(item queueItem, err error) {
	s.mu.Lock()
	s.stats.Dropped++
	s.mu.Unlock()

	var cfgErr *fetch.ConfigError
	if errors.As(err, &cfgErr) {
		s.logger.Warn("page dropped", "url", item.url.Redacted(), "depth", item.depth, "error", err)
		return
	}
	s.logger.Debug("page dropped", "url", item.url.Redacted(), "depth", item.depth, "error", err)
}

func (s *Spider) resetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = SpiderStats{}
}

func (s *Spider) addQueued(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.URLsQueued += n
}

func (s *Spider) addVisited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PagesVisited++
}

// Stats returns statistics of the current or last crawl.
func (s *Spider) Stats() SpiderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages yielded.
	PagesVisited int

	// URLsQueued is the number of unique URLs scheduled for fetching.
	URLsQueued int

	// Dropped is the number of fetches that failed, were filtered out or
	// returned a non-2xx status.
	Dropped int
}

func parseRoot(root string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(root))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// sameHost reports whether a and b name the same host and port. A missing
// port stands for the scheme's default one, so x.test and x.test:443 match
// over https.
func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return defaultPort(u)
}

// dropDefaultPort removes an explicit port equal to the scheme's default so
// both spellings share one visited key.
func dropDefaultPort(u *url.URL) {
	if p := u.Port(); p != "" && p == defaultPort(u) {
		u.Host = strings.TrimSuffix(u.Host, ":"+p)
	}
}

func defaultPort(u *url.URL) string {
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func isHTML(info *fetch.Info) bool {
	switch info.MediaType() {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}
