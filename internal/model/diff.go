package model

import (
	"slices"
	"time"
)

// PageChange describes a page present in two crawls whose content or
// status differs.
type PageChange struct {
	URL       string `json:"url"`
	OldStatus int    `json:"old_status"`
	NewStatus int    `json:"new_status"`
	OldDigest string `json:"old_digest,omitempty"`
	NewDigest string `json:"new_digest,omitempty"`
}

// Diff is the difference between two crawls of the same root.
type Diff struct {
	Root string `json:"root"`

	// From and To are the start times of the older and newer crawl.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Added are URLs only found by the newer crawl, sorted.
	Added []string `json:"added"`

	// Removed are URLs only found by the older crawl, sorted.
	Removed []string `json:"removed"`

	// Changed are pages of both crawls with a different digest or status,
	// sorted by URL.
	Changed []PageChange `json:"changed"`

	// Unchanged is the number of pages equal in both crawls.
	Unchanged int `json:"unchanged"`
}

// Compare returns the difference from older to newer.
//
// Design decision: Pages are matched by URL and compared by digest, so a
// page counts as changed only when the bytes read differ.
func Compare(older, newer *CrawlReport) *Diff {
	d := &Diff{
		Root:    newer.Root,
		From:    older.StartedAt,
		To:      newer.StartedAt,
		Added:   make([]string, 0),
		Removed: make([]string, 0),
		Changed: make([]PageChange, 0),
	}

	before := make(map[string]*Page, len(older.Pages))
	for _, p := range older.Pages {
		before[p.URL] = p
	}

	seen := make(map[string]bool, len(newer.Pages))
	for _, p := range newer.Pages {
		seen[p.URL] = true
		old, ok := before[p.URL]
		switch {
		case !ok:
			d.Added = append(d.Added, p.URL)
		case old.Digest != p.Digest || old.StatusCode != p.StatusCode:
			d.Changed = append(d.Changed, PageChange{
				URL:       p.URL,
				OldStatus: old.StatusCode,
				NewStatus: p.StatusCode,
				OldDigest: old.Digest,
				NewDigest: p.Digest,
			})
		default:
			d.Unchanged++
		}
	}
	for _, p := range older.Pages {
		if !seen[p.URL] {
			d.Removed = append(d.Removed, p.URL)
		}
	}

	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	slices.SortFunc(d.Changed, func(a, b PageChange) int {
		switch {
		case a.URL < b.URL:
			return -1
		case a.URL > b.URL:
			return 1
		}
		return 0
	})
	return d
}

// HasChanges reports whether the crawls differ.
func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}
