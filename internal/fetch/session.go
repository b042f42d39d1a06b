package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
)

// Session is the HTTP client, cookie jar and fetch id counter shared by a
// pipeline run. Fetch ids start at 1 and are never reused.
//
// A Session may be reused for several runs. Driving two traversals over the
// same Session at once is not supported.
type Session struct {
	// base is the Config every stage setup transforms.
	base Config

	// jar is the session cookie jar. It survives client rebuilds.
	jar http.CookieJar

	logger *slog.Logger

	lastID atomic.Int64
	closed atomic.Bool

	mu     sync.Mutex
	key    transportKey
	client *http.Client
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used for request/response debug logs.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCookieJar replaces the session-owned cookie jar.
func WithCookieJar(jar http.CookieJar) SessionOption {
	return func(s *Session) {
		if jar != nil {
			s.jar = jar
		}
	}
}

// NewSession creates a session whose stages start from base.
// The transport for base is built eagerly, so unsupported transport options
// are reported here as a *ConfigError.
func NewSession(base Config, opts ...SessionOption) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &Session{
		base:   base,
		jar:    jar,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.clientFor(base); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the base configuration of the session.
func (s *Session) Config() Config {
	return s.base
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Jar returns the session cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// NextID returns the next fetch id.
func (s *Session) NextID() int64 {
	return s.lastID.Add(1)
}

// Send sends req with the headers and transport described by cfg.
// The caller must close the returned Body. Non-2xx responses are not errors
// here; status policy belongs to the pipeline stage.
func (s *Session) Send(ctx context.Context, cfg Config, req *http.Request) (*Info, *Body, error) {
	if s.closed.Load() {
		return nil, nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if err := applyHeaders(req, cfg); err != nil {
		return nil, nil, err
	}

	client, err := s.clientFor(cfg)
	if err != nil {
		return nil, nil, err
	}

	id := s.NextID()
	req = req.WithContext(ctx)

	s.logger.Debug("sending request",
		"id", id,
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %d %s %s: %w", id, req.Method, req.URL.Redacted(), err)
	}

	info := NewInfo(id, resp)
	s.logger.Debug("received response",
		"id", id,
		"status", resp.StatusCode,
		"proto", resp.Proto,
		"url", info.URL.Redacted(),
		"media_type", info.MediaType(),
		"headers", info.Header,
	)

	return info, NewBody(resp.Body), nil
}

// clientFor returns the client for cfg, rebuilding it only when the
// transport projection changed.
func (s *Session) clientFor(cfg Config) (*http.Client, error) {
	key := cfg.transportKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || key != s.key {
		client, err := buildClient(key, cfg.proxy)
		if err != nil {
			return nil, err
		}
		if s.client != nil {
			s.logger.Debug("rebuilding transport", "timeout", key.timeout, "proxy_set", key.proxy != "")
			s.client.CloseIdleConnections()
		}
		s.client = client
		s.key = key
	}

	jar := s.jar
	if cfg.jar != nil {
		jar = cfg.jar
	}
	c := *s.client
	c.Jar = jar
	return &c, nil
}

// Close releases idle connections. Send fails with ErrSessionClosed
// afterwards.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	return nil
}
