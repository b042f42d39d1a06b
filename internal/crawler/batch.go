package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/fetchq/internal/fetch"
	"github.com/nao1215/fetchq/internal/query"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of crawling one root.
type Result struct {
	// Root is the crawl root as given.
	Root string

	// Pages are the yielded pages in crawl order.
	Pages []query.Fetch[*Content]

	// Stats are the spider statistics for this root.
	Stats SpiderStats

	// Err is set when the crawl could not start or was cancelled.
	Err error

	// Duration is the wall time of the crawl.
	Duration time.Duration
}

// Batch crawls several roots concurrently. Every root gets its own Spider
// and its own Session, so crawls never share cookies or fetch ids.
//
// Design decision: errgroup.SetLimit bounds the crawls in flight; there is
// no worker pool.
type Batch struct {
	// newSpider creates a fresh spider for each root.
	newSpider func(root string) *Spider

	// newSession creates a fresh session for each root.
	newSession func(root string) (*fetch.Session, error)

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithSessionFactory sets how the session of each root is created.
// The default uses fetch.DefaultConfig.
func WithSessionFactory(f func(root string) (*fetch.Session, error)) BatchOption {
	return func(b *Batch) {
		if f != nil {
			b.newSession = f
		}
	}
}

// NewBatch creates a Batch. newSpider is called once per root.
func NewBatch(newSpider func(root string) *Spider, opts ...BatchOption) *Batch {
	b := &Batch{
		newSpider:   newSpider,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.newSession == nil {
		logger := b.logger
		b.newSession = func(string) (*fetch.Session, error) {
			return fetch.NewSession(fetch.DefaultConfig(), fetch.WithLogger(logger))
		}
	}

	return b
}

// Run crawls every root and returns one Result per root, in root order.
// A failing root does not stop the others; the error return is only set
// when ctx ends the batch.
func (b *Batch) Run(ctx context.Context, roots []string) ([]Result, error) {
	results := make([]Result, len(roots))
	err := b.RunWithCallback(ctx, roots, func(index int, result Result) {
		results[index] = result
	})
	return results, err
}

// RunWithCallback crawls every root and calls callback once per root as
// each crawl finishes. The callback runs on the crawl's goroutine and must
// be safe for concurrent use.
func (b *Batch) RunWithCallback(ctx context.Context, roots []string, callback func(index int, result Result)) error {
	b.logger.Info("starting batch crawl",
		"total_roots", len(roots),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result := b.crawl(ctx, root)
			if result.Err != nil {
				b.logger.Warn("crawl failed",
					"root", root,
					"error", result.Err,
				)
			} else {
				b.logger.Info("crawl completed",
					"root", root,
					"pages", len(result.Pages),
					"elapsed", result.Duration,
				)
			}

			callback(i, result)
			return nil
		})
	}

	err := g.Wait()

	b.logger.Info("batch crawl complete",
		"total_roots", len(roots),
		"elapsed", time.Since(startTime),
	)
	return err
}

func (b *Batch) crawl(ctx context.Context, root string) Result {
	start := time.Now()
	result := Result{Root: root}

	sess, err := b.newSession(root)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	defer sess.Close()

	spider := b.newSpider(root)
	for page, err := range spider.Crawl(ctx, sess, root) {
		if err != nil {
			result.Err = err
			break
		}
		result.Pages = append(result.Pages, page)
	}
	result.Stats = spider.Stats()
	result.Duration = time.Since(start)
	return result
}
