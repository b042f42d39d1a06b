package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/fetchq/internal/fetch"
)

// Request returns a stage that sends the request built by build.
// build is called on every run, so the request body may be recreated.
func Request(build func(ctx context.Context) (*http.Request, error)) Query[*Response] {
	return Query[*Response]{
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(*Response) error) error {
			req, err := build(ctx)
			if err != nil {
				return err
			}
			return send(ctx, sess, inherited.Merge(tail), req, yield)
		},
	}
}

// Get returns a stage that fetches rawURL.
func Get(rawURL string) Query[*Response] {
	return Request(func(ctx context.Context) (*http.Request, error) {
		return newRequest(ctx, http.MethodGet, rawURL, nil, "")
	})
}

// Post returns a stage that posts body with the given content type.
func Post(rawURL, contentType string, body []byte) Query[*Response] {
	return Request(func(ctx context.Context) (*http.Request, error) {
		return newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(body), contentType)
	})
}

// PostForm returns a stage that posts values as
// application/x-www-form-urlencoded.
func PostForm(rawURL string, values url.Values) Query[*Response] {
	encoded := values.Encode()
	return Request(func(ctx context.Context) (*http.Request, error) {
		return newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(encoded), "application/x-www-form-urlencoded")
	})
}

func newRequest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, ErrRelativeURL)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
