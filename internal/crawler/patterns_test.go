package crawler

import (
	"net/url"
	"testing"
)

// TestMatchPattern tests glob pattern matching on URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		// Prefix patterns with /*
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"nested admin", "/admin/*", "/admin/users/edit", true},

		// Extension patterns with *.
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension nested", "*.pdf", "/a/b/c/report.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},

		// Exact match patterns
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},

		// Wildcards
		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},
		{"segment glob", "logout*", "/account/logout-now", true},

		// Root path
		{"root path", "/", "/", true},
		{"root no match prefix", "/admin/*", "/", false},

		// Malformed
		{"bad pattern", "[", "/[", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := matchPattern(tt.pattern, tt.path)
			if got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestPathPatterns tests the follow predicate built from ignore and follow
// patterns.
func TestPathPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ignore []string
		follow []string
		url    string
		want   bool
	}{
		{"no patterns", nil, nil, "http://example.test/anything", true},
		{"empty path is root", nil, []string{"/"}, "http://example.test", true},
		{"ignored", []string{"/admin/*"}, nil, "http://example.test/admin/x", false},
		{"not ignored", []string{"/admin/*"}, nil, "http://example.test/blog", true},
		{"followed", nil, []string{"/blog/*"}, "http://example.test/blog/post", true},
		{"not followed", nil, []string{"/blog/*"}, "http://example.test/shop", false},
		{"ignore wins", []string{"*.pdf"}, []string{"/docs/*"}, "http://example.test/docs/a.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatal(err)
			}
			if got := PathPatterns(tt.ignore, tt.follow)(u); got != tt.want {
				t.Errorf("PathPatterns(%v, %v)(%s) = %v, want %v", tt.ignore, tt.follow, tt.url, got, tt.want)
			}
		})
	}
}
