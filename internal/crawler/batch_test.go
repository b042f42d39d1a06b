package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nao1215/fetchq/internal/fetch"
)

// TestBatch tests concurrent crawling of several roots.
func TestBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in root order", func(t *testing.T) {
		t.Parallel()

		first := cyclicSite(t)
		second := newTestSite(t, map[string]testPage{"/": htmlPage("Solo")})
		roots := []string{first.server.URL, "not a url", second.server.URL}

		batch := NewBatch(func(string) *Spider { return NewSpider() }, WithConcurrency(2))
		results, err := batch.Run(context.Background(), roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, r := range results {
			if r.Root != roots[i] {
				t.Errorf("results[%d].Root = %q, want %q", i, r.Root, roots[i])
			}
		}
		if len(results[0].Pages) != 4 || results[0].Stats.PagesVisited != 4 {
			t.Errorf("expected 4 pages for first root, got %d", len(results[0].Pages))
		}
		if !errors.Is(results[1].Err, ErrInvalidRoot) {
			t.Errorf("expected ErrInvalidRoot, got %v", results[1].Err)
		}
		if len(results[2].Pages) != 1 || results[2].Pages[0].Content.Title != "Solo" {
			t.Errorf("unexpected second root pages %+v", results[2].Pages)
		}
	})

	t.Run("uses one session per root", func(t *testing.T) {
		t.Parallel()

		site := cyclicSite(t)
		var mu sync.Mutex
		sessions := 0
		factory := func(string) (*fetch.Session, error) {
			mu.Lock()
			sessions++
			mu.Unlock()
			return fetch.NewSession(fetch.DefaultConfig())
		}

		batch := NewBatch(func(string) *Spider { return NewSpider(WithMaxDepth(0)) }, WithSessionFactory(factory))
		results, err := batch.Run(context.Background(), []string{site.server.URL, site.server.URL})
		if err != nil {
			t.Fatal(err)
		}
		if sessions != 2 {
			t.Errorf("expected 2 sessions, got %d", sessions)
		}
		for _, r := range results {
			if len(r.Pages) != 1 || r.Pages[0].Info.ID != 1 {
				t.Errorf("expected each root to start at fetch id 1, got %+v", r.Pages)
			}
		}
	})

	t.Run("reports session errors per root", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		batch := NewBatch(func(string) *Spider { return NewSpider() },
			WithSessionFactory(func(string) (*fetch.Session, error) { return nil, boom }))
		results, err := batch.Run(context.Background(), []string{"http://example.test/"})
		if err != nil {
			t.Fatal(err)
		}
		if !errors.Is(results[0].Err, boom) {
			t.Errorf("expected boom, got %v", results[0].Err)
		}
	})

	t.Run("callback sees every root", func(t *testing.T) {
		t.Parallel()

		site := cyclicSite(t)
		var mu sync.Mutex
		seen := make(map[int]bool)
		batch := NewBatch(func(string) *Spider { return NewSpider(WithMaxDepth(0)) })
		err := batch.RunWithCallback(context.Background(), []string{site.server.URL, site.server.URL, site.server.URL},
			func(index int, _ Result) {
				mu.Lock()
				seen[index] = true
				mu.Unlock()
			})
		if err != nil {
			t.Fatal(err)
		}
		if len(seen) != 3 {
			t.Errorf("expected 3 callbacks, got %v", seen)
		}
	})
}
