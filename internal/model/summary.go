package model

import (
	"cmp"
	"slices"
	"time"
)

// Summary is a condensed, human-readable view of a CrawlReport.
//
// Design decision: We create a separate summary rather than printing parts
// of CrawlReport so every writer shows the same numbers, and tools that
// want structured but small output can read it as JSON.
type Summary struct {
	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// DateCrawled is when the crawl began.
	DateCrawled time.Time `json:"date_crawled"`

	// Duration is the wall time of the crawl.
	Duration time.Duration `json:"duration"`

	// === Page Statistics ===

	// PagesCrawled is the number of pages yielded.
	PagesCrawled int `json:"pages_crawled"`

	// URLsQueued is the number of unique URLs scheduled for fetching.
	URLsQueued int `json:"urls_queued"`

	// Dropped is the number of URLs dropped.
	Dropped int `json:"dropped"`

	// MaxDepth is the deepest page depth reached.
	MaxDepth int `json:"max_depth"`

	// TotalBytes is the sum of the body sizes read.
	TotalBytes int `json:"total_bytes"`

	// MediaTypes counts pages per media type, most frequent first.
	MediaTypes []Count `json:"media_types,omitempty"`

	// Cancelled indicates the crawl ended early.
	Cancelled bool `json:"cancelled"`

	// Error contains any error message if the crawl failed.
	Error string `json:"error,omitempty"`
}

// Count is a named counter.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewSummary builds the summary of report.
func NewSummary(report *CrawlReport) *Summary {
	s := &Summary{
		Root:         report.Root,
		DateCrawled:  report.StartedAt,
		Duration:     report.Duration(),
		PagesCrawled: len(report.Pages),
		URLsQueued:   report.URLsQueued,
		Dropped:      report.Dropped,
		Cancelled:    report.Cancelled,
		Error:        report.Error,
	}

	counts := make(map[string]int)
	for _, p := range report.Pages {
		s.TotalBytes += p.Size
		s.MaxDepth = max(s.MaxDepth, p.Depth)
		name := p.MediaType
		if name == "" {
			name = "unknown"
		}
		counts[name]++
	}
	for name, n := range counts {
		s.MediaTypes = append(s.MediaTypes, Count{Name: name, Count: n})
	}
	slices.SortFunc(s.MediaTypes, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return s
}

// HasPages reports whether any page was crawled.
func (s *Summary) HasPages() bool {
	return s.PagesCrawled > 0
}

// Complete reports whether the crawl ended without error.
func (s *Summary) Complete() bool {
	return s.Error == ""
}
