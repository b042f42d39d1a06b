package model

import (
	"net/http"
	"slices"
	"testing"
)

func reportOf(root string, pages ...*Page) *CrawlReport {
	r := NewCrawlReport(root)
	for _, p := range pages {
		r.AddPage(p)
	}
	return r
}

func TestCompare(t *testing.T) {
	t.Parallel()

	root := "http://example.test/"
	older := reportOf(root,
		&Page{URL: root, StatusCode: http.StatusOK, Digest: Digest([]byte("home"))},
		&Page{URL: root + "a", StatusCode: http.StatusOK, Digest: Digest([]byte("a"))},
		&Page{URL: root + "gone", StatusCode: http.StatusOK, Digest: Digest([]byte("gone"))},
		&Page{URL: root + "status", StatusCode: http.StatusOK, Digest: Digest([]byte("s"))},
	)
	newer := reportOf(root,
		&Page{URL: root, StatusCode: http.StatusOK, Digest: Digest([]byte("home"))},
		&Page{URL: root + "new", StatusCode: http.StatusOK, Digest: Digest([]byte("new"))},
		&Page{URL: root + "a", StatusCode: http.StatusOK, Digest: Digest([]byte("a2"))},
		&Page{URL: root + "status", StatusCode: http.StatusNonAuthoritativeInfo, Digest: Digest([]byte("s"))},
	)

	d := Compare(older, newer)

	if !d.HasChanges() {
		t.Fatal("expected changes")
	}
	if !slices.Equal(d.Added, []string{root + "new"}) {
		t.Errorf("Added = %v", d.Added)
	}
	if !slices.Equal(d.Removed, []string{root + "gone"}) {
		t.Errorf("Removed = %v", d.Removed)
	}
	if len(d.Changed) != 2 || d.Changed[0].URL != root+"a" || d.Changed[1].URL != root+"status" {
		t.Fatalf("Changed = %+v", d.Changed)
	}
	if d.Changed[1].OldStatus != http.StatusOK || d.Changed[1].NewStatus != http.StatusNonAuthoritativeInfo {
		t.Errorf("unexpected status change: %+v", d.Changed[1])
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
}

func TestCompareIdentical(t *testing.T) {
	t.Parallel()

	root := "http://example.test/"
	page := &Page{URL: root, StatusCode: http.StatusOK, Digest: Digest([]byte("home"))}

	d := Compare(reportOf(root, page), reportOf(root, page))
	if d.HasChanges() {
		t.Errorf("expected no changes, got %+v", d)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
}
