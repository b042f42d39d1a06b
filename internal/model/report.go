package model

import (
	"context"
	"errors"
	"time"
)

// CrawlReport is the result of crawling one root.
//
// Design decision: Pages are kept in crawl order, which is breadth-first,
// so a reader sees the root first and deeper pages later.
type CrawlReport struct {
	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl ended. Zero while the crawl runs.
	FinishedAt time.Time `json:"finished_at"`

	// Pages are the yielded pages in crawl order.
	Pages []*Page `json:"pages"`

	// URLsQueued is the number of unique URLs scheduled for fetching.
	URLsQueued int `json:"urls_queued"`

	// Dropped is the number of URLs that failed or returned a non-2xx status.
	Dropped int `json:"dropped"`

	// Cancelled is true when the crawl ended early because of cancellation
	// or a deadline. Pages then holds partial results.
	Cancelled bool `json:"cancelled"`

	// Error contains the error message if the crawl failed.
	Error string `json:"error,omitempty"`

	// Summary is the condensed view, filled in by Finish.
	Summary *Summary `json:"summary,omitempty"`
}

// NewCrawlReport creates a report for root, started now.
func NewCrawlReport(root string) *CrawlReport {
	return &CrawlReport{
		Root:      root,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
	}
}

// AddPage appends a page in crawl order.
func (r *CrawlReport) AddPage(page *Page) {
	r.Pages = append(r.Pages, page)
}

// Finish records the end of the crawl and builds the summary.
func (r *CrawlReport) Finish(queued, dropped int, err error) {
	r.FinishedAt = time.Now()
	r.URLsQueued = queued
	r.Dropped = dropped
	if err != nil {
		r.Error = err.Error()
		r.Cancelled = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	r.Summary = NewSummary(r)
}

// Duration returns the wall time of the crawl, or zero if it has not
// finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// GetPage returns the page with the given URL, or nil.
func (r *CrawlReport) GetPage(url string) *Page {
	for _, p := range r.Pages {
		if p.URL == url {
			return p
		}
	}
	return nil
}
