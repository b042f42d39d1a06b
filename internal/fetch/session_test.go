package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	sess, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func send(t *testing.T, sess *Session, cfg Config, req *http.Request) (*Info, []byte) {
	t.Helper()
	info, body, err := sess.Send(context.Background(), cfg, req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer body.Close()
	r, err := body.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return info, data
}

// TestSessionNextID tests that fetch ids start at 1 and strictly increase.
func TestSessionNextID(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, DefaultConfig())

	prev := int64(0)
	for i := range 100 {
		id := sess.NextID()
		if i == 0 && id != 1 {
			t.Fatalf("expected first id 1, got %d", id)
		}
		if id <= prev {
			t.Fatalf("expected id > %d, got %d", prev, id)
		}
		prev = id
	}
}

// TestSessionSend tests a basic round trip and Info population.
func TestSessionSend(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Server", "test")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	sess := newTestSession(t, DefaultConfig())
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/path", nil)
	info, data := send(t, sess, sess.Config(), req)

	if info.ID != 1 {
		t.Errorf("expected id 1, got %d", info.ID)
	}
	if info.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418, got %d", info.StatusCode)
	}
	if info.Reason != "I'm a teapot" {
		t.Errorf("expected reason %q, got %q", "I'm a teapot", info.Reason)
	}
	if info.IsSuccess() {
		t.Error("expected 418 to be unsuccessful")
	}
	if info.URL.Path != "/path" {
		t.Errorf("expected path /path, got %q", info.URL.Path)
	}
	if info.Header.Get("X-Server") != "test" {
		t.Error("expected X-Server in Header")
	}
	if info.ContentHeader.Get("Content-Type") == "" {
		t.Error("expected Content-Type in ContentHeader")
	}
	if info.Header.Get("Content-Type") != "" {
		t.Error("expected Content-Type not in Header")
	}
	if info.MediaType() != "text/plain" {
		t.Errorf("expected text/plain, got %q", info.MediaType())
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}
}

// TestSessionHeaders tests the outbound header merge rules.
func TestSessionHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer server.Close()

	sess := newTestSession(t, DefaultConfig())
	cfg := sess.Config().
		WithUserAgent("config-agent").
		WithHeader("Accept", "text/html").
		WithHeader("Referer", "http://config.test/").
		WithHeader("X-Extra", "config")

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "request-agent")
	req.Header.Set("X-Extra", "request")
	send(t, sess, cfg, req)
	got := <-headers

	t.Run("request user agent wins", func(t *testing.T) {
		if ua := got.Get("User-Agent"); ua != "request-agent" {
			t.Errorf("expected request-agent, got %q", ua)
		}
	})

	t.Run("config fills absent preferred headers", func(t *testing.T) {
		if accept := got.Get("Accept"); accept != "text/html" {
			t.Errorf("expected text/html, got %q", accept)
		}
		if ref := got.Get("Referer"); ref != "http://config.test/" {
			t.Errorf("expected config referer, got %q", ref)
		}
	})

	t.Run("other headers are appended", func(t *testing.T) {
		values := got.Values("X-Extra")
		if len(values) != 2 {
			t.Fatalf("expected 2 X-Extra values, got %v", values)
		}
		if values[0] != "request" || values[1] != "config" {
			t.Errorf("expected [request config], got %v", values)
		}
	})
}

// TestSessionUserAgentOverride tests that a User-Agent header override
// replaces the default user agent unless the request carries its own.
func TestSessionUserAgentOverride(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("User-Agent"))
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name      string
		requestUA string
		want      string
	}{
		{"override beats default", "", "custom/1"},
		{"request beats override", "request/2", "request/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := newTestSession(t, DefaultConfig())
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			if tt.requestUA != "" {
				req.Header.Set("User-Agent", tt.requestUA)
			}
			_, data := send(t, sess, sess.Config().WithHeader("User-Agent", "custom/1"), req)

			if string(data) != tt.want {
				t.Errorf("User-Agent = %q, want %q", data, tt.want)
			}
		})
	}

	t.Run("default without override", func(t *testing.T) {
		t.Parallel()

		sess := newTestSession(t, DefaultConfig())
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, data := send(t, sess, sess.Config(), req)

		if string(data) != DefaultConfig().UserAgent() {
			t.Errorf("User-Agent = %q, want the default", data)
		}
	})
}

// TestSessionInvalidHeader tests that malformed headers are rejected before
// anything is sent.
func TestSessionInvalidHeader(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	tests := []struct {
		name string
		cfg  func(Config) Config
	}{
		{"invalid value", func(c Config) Config { return c.WithHeader("X-Bad", "line\nbreak") }},
		{"invalid name", func(c Config) Config { return c.WithHeader("Bad Name", "v") }},
		{"invalid user agent", func(c Config) Config { return c.WithUserAgent("agent\r\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := newTestSession(t, DefaultConfig())
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			_, _, err := sess.Send(context.Background(), tt.cfg(sess.Config()), req)

			if !errors.Is(err, ErrInvalidHeader) {
				t.Fatalf("expected ErrInvalidHeader, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if id := sess.NextID(); id != 1 {
				t.Errorf("expected no fetch id consumed, next id is %d", id)
			}
			if n := hits.Load(); n != 0 {
				t.Errorf("expected no requests to reach the server, got %d", n)
			}
		})
	}
}

// TestNewSessionTransportOptions tests eager transport validation.
func TestNewSessionTransportOptions(t *testing.T) {
	t.Parallel()

	mustURL := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		return u
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no proxy", DefaultConfig(), false},
		{"http proxy", DefaultConfig().WithProxy(mustURL("http://127.0.0.1:3128")), false},
		{"socks5 proxy", DefaultConfig().WithProxy(mustURL("socks5://127.0.0.1:9050")), false},
		{"ftp proxy", DefaultConfig().WithProxy(mustURL("ftp://127.0.0.1:21")), true},
		{"unknown decompression", DefaultConfig().WithDecompression(Decompression(0x80)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess, err := NewSession(tt.cfg)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				sess.Close()
				return
			}
			if !errors.Is(err, ErrUnsupportedOption) {
				t.Fatalf("expected ErrUnsupportedOption, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}
}

// TestSessionClose tests that a closed session refuses to send.
func TestSessionClose(t *testing.T) {
	t.Parallel()

	sess, err := NewSession(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/", nil)
	if _, _, err := sess.Send(context.Background(), sess.Config(), req); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

// TestSessionCookieJarSurvivesRebuild tests that cookies persist when the
// transport projection changes.
func TestSessionCookieJarSurvivesRebuild(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	}))
	defer server.Close()

	sess := newTestSession(t, DefaultConfig())

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/set", nil)
	send(t, sess, sess.Config(), req)

	req, _ = http.NewRequest(http.MethodGet, server.URL+"/check", nil)
	info, data := send(t, sess, sess.Config().WithTimeout(5*time.Second), req)

	if info.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", info.StatusCode)
	}
	if string(data) != "abc" {
		t.Errorf("expected cookie value abc, got %q", data)
	}
}

// TestSessionBasicAuth tests credentials handling.
func TestSessionBasicAuth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			_, _ = w.Write([]byte(r.Header.Get("Authorization")))
			return
		}
		_, _ = w.Write([]byte(user + ":" + pass))
	}))
	defer server.Close()

	sess := newTestSession(t, DefaultConfig())
	cfg := sess.Config().WithCredentials("alice", "secret")

	t.Run("credentials sent as basic auth", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, data := send(t, sess, cfg, req)
		if string(data) != "alice:secret" {
			t.Errorf("expected alice:secret, got %q", data)
		}
	})

	t.Run("explicit authorization wins", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		req.Header.Set("Authorization", "Bearer token")
		_, data := send(t, sess, cfg, req)
		if string(data) != "Bearer token" {
			t.Errorf("expected bearer token, got %q", data)
		}
	})
}

// TestSessionDecompression tests transparent content decoding.
func TestSessionDecompression(t *testing.T) {
	t.Parallel()

	const payload = "compressed payload"

	var gzipped bytes.Buffer
	gz := gzip.NewWriter(&gzipped)
	_, _ = gz.Write([]byte(payload))
	_ = gz.Close()

	var zlibbed bytes.Buffer
	zw := zlib.NewWriter(&zlibbed)
	_, _ = zw.Write([]byte(payload))
	_ = zw.Close()

	var rawDeflated bytes.Buffer
	fw, _ := flate.NewWriter(&rawDeflated, flate.DefaultCompression)
	_, _ = fw.Write([]byte(payload))
	_ = fw.Close()

	var brotlied bytes.Buffer
	br := brotli.NewWriter(&brotlied)
	_, _ = br.Write([]byte(payload))
	_ = br.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Accept-Encoding", r.Header.Get("Accept-Encoding"))
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzipped.Bytes())
		case "/deflate":
			w.Header().Set("Content-Encoding", "deflate")
			_, _ = w.Write(zlibbed.Bytes())
		case "/raw-deflate":
			w.Header().Set("Content-Encoding", "deflate")
			_, _ = w.Write(rawDeflated.Bytes())
		case "/empty-deflate":
			w.Header().Set("Content-Encoding", "deflate")
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(brotlied.Bytes())
		}
	}))
	t.Cleanup(server.Close)

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()

		sess := newTestSession(t, DefaultConfig())
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/gzip", nil)
		info, data := send(t, sess, sess.Config(), req)

		if string(data) != payload {
			t.Errorf("expected decoded payload, got %q", data)
		}
		if info.ContentHeader.Get("Content-Encoding") != "" {
			t.Error("expected Content-Encoding removed after decoding")
		}
		if !strings.Contains(info.Header.Get("X-Accept-Encoding"), "gzip") {
			t.Errorf("expected gzip to be negotiated, got %q", info.Header.Get("X-Accept-Encoding"))
		}
	})

	t.Run("deflate", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			path string
			want string
		}{
			{"/deflate", payload},
			{"/raw-deflate", payload},
			{"/empty-deflate", ""},
		}
		for _, tt := range tests {
			sess := newTestSession(t, DefaultConfig())
			req, _ := http.NewRequest(http.MethodGet, server.URL+tt.path, nil)
			info, data := send(t, sess, sess.Config(), req)

			if string(data) != tt.want {
				t.Errorf("%s: expected %q, got %q", tt.path, tt.want, data)
			}
			if info.ContentHeader.Get("Content-Encoding") != "" {
				t.Errorf("%s: expected Content-Encoding removed after decoding", tt.path)
			}
		}
	})

	t.Run("brotli", func(t *testing.T) {
		t.Parallel()

		sess := newTestSession(t, DefaultConfig())
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/br", nil)
		_, data := send(t, sess, sess.Config(), req)

		if string(data) != payload {
			t.Errorf("expected decoded payload, got %q", data)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		sess := newTestSession(t, DefaultConfig().WithDecompression(DecompressNone))
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/gzip", nil)
		info, data := send(t, sess, sess.Config(), req)

		if !bytes.Equal(data, gzipped.Bytes()) {
			t.Error("expected raw gzip bytes")
		}
		if info.ContentHeader.Get("Content-Encoding") != "gzip" {
			t.Error("expected Content-Encoding to be kept")
		}
	})
}
