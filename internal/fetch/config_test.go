package fetch

import (
	"net/url"
	"testing"
	"time"
)

// TestDefaultConfig tests the default configuration values.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Timeout() != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, cfg.Timeout())
	}
	if cfg.UserAgent() != DefaultUserAgent {
		t.Errorf("expected user agent %q, got %q", DefaultUserAgent, cfg.UserAgent())
	}
	if cfg.Decompression() != DecompressAll {
		t.Errorf("expected all decompression, got %#x", cfg.Decompression())
	}
	if cfg.Proxy() != nil {
		t.Error("expected no proxy")
	}
	if cfg.InsecureSkipVerify() {
		t.Error("expected certificate validation enabled")
	}
}

// TestConfigIsImmutable tests that With* methods never modify the receiver.
func TestConfigIsImmutable(t *testing.T) {
	t.Parallel()

	t.Run("scalar fields", func(t *testing.T) {
		t.Parallel()

		base := DefaultConfig()
		changed := base.WithTimeout(time.Second).WithUserAgent("x").WithInsecureSkipVerify(true)

		if base.Timeout() != DefaultTimeout || base.UserAgent() != DefaultUserAgent || base.InsecureSkipVerify() {
			t.Error("base config was modified")
		}
		if changed.Timeout() != time.Second || changed.UserAgent() != "x" || !changed.InsecureSkipVerify() {
			t.Error("changed config does not carry new values")
		}
	})

	t.Run("headers are copied on write", func(t *testing.T) {
		t.Parallel()

		a := DefaultConfig().WithHeader("X-Test", "a")
		b := a.WithHeaderAdded("X-Test", "b")
		c := a.WithoutHeader("X-Test")

		if got := a.Header().Values("X-Test"); len(got) != 1 || got[0] != "a" {
			t.Errorf("expected [a], got %v", got)
		}
		if got := b.Header().Values("X-Test"); len(got) != 2 || got[1] != "b" {
			t.Errorf("expected [a b], got %v", got)
		}
		if got := c.Header().Values("X-Test"); len(got) != 0 {
			t.Errorf("expected no values, got %v", got)
		}
	})

	t.Run("returned header is a copy", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig().WithHeader("X-Test", "a")
		h := cfg.Header()
		h.Set("X-Test", "mutated")

		if got := cfg.Header().Get("X-Test"); got != "a" {
			t.Errorf("expected config header unchanged, got %q", got)
		}
	})

	t.Run("proxy is copied", func(t *testing.T) {
		t.Parallel()

		u, err := url.Parse("http://127.0.0.1:8080")
		if err != nil {
			t.Fatal(err)
		}
		cfg := DefaultConfig().WithProxy(u)
		u.Host = "changed:1"

		if got := cfg.Proxy().Host; got != "127.0.0.1:8080" {
			t.Errorf("expected proxy host unchanged, got %q", got)
		}
	})
}

// TestDecompressionHas tests the decompression flag helper.
func TestDecompressionHas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  Decompression
		flag Decompression
		want bool
	}{
		{"all has gzip", DecompressAll, DecompressGzip, true},
		{"all has brotli", DecompressAll, DecompressBrotli, true},
		{"gzip lacks deflate", DecompressGzip, DecompressDeflate, false},
		{"none has none", DecompressNone, DecompressNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.set.Has(tt.flag); got != tt.want {
				t.Errorf("Has() = %v, want %v", got, tt.want)
			}
		})
	}
}
