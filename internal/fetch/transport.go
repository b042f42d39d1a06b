package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"
)

// maxRedirects is the number of redirects followed before the last
// response is returned as is.
const maxRedirects = 10

// transportKey is the transport-affecting projection of a Config.
// Two configs with equal keys share one *http.Client.
type transportKey struct {
	timeout       time.Duration
	credentials   Credentials
	decompression Decompression
	proxy         string
	insecure      bool
}

func (c Config) transportKey() transportKey {
	key := transportKey{
		timeout:       c.timeout,
		credentials:   c.credentials,
		decompression: c.decompression,
		insecure:      c.insecure,
	}
	if c.proxy != nil {
		key.proxy = c.proxy.String()
	}
	return key
}

// buildClient creates an HTTP client for the given projection.
// The cookie jar is set per request by the session.
func buildClient(key transportKey, proxyURL *url.URL) (*http.Client, error) {
	if key.decompression&^DecompressAll != 0 {
		return nil, &ConfigError{
			Field: "decompression",
			Value: fmt.Sprintf("%#x", uint8(key.decompression)),
			Err:   ErrUnsupportedOption,
		}
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: key.insecure, //nolint:gosec // explicit opt-in via Config
		},
		// Content codings are negotiated and decoded by decompressingTransport.
		DisableCompression: true,
	}

	if proxyURL != nil {
		switch strings.ToLower(proxyURL.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, &ConfigError{Field: "proxy", Value: proxyURL.Redacted(), Err: errors.Join(ErrUnsupportedOption, err)}
			}
			transport.Proxy = nil
			if cd, ok := d.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return d.Dial(network, addr)
				}
			}
		default:
			return nil, &ConfigError{Field: "proxy", Value: proxyURL.Redacted(), Err: ErrUnsupportedOption}
		}
	}

	var rt http.RoundTripper = transport
	if !key.credentials.IsZero() {
		rt = &basicAuthTransport{base: rt, credentials: key.credentials}
	}
	if key.decompression != DecompressNone {
		rt = &decompressingTransport{base: rt, codings: key.decompression}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   key.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// closeIdler is implemented by transports that pool connections.
type closeIdler interface {
	CloseIdleConnections()
}

// basicAuthTransport adds basic auth to requests without an Authorization
// header.
type basicAuthTransport struct {
	base        http.RoundTripper
	credentials Credentials
}

// RoundTrip implements http.RoundTripper.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.credentials.Username, t.credentials.Password)
	return t.base.RoundTrip(clone)
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *basicAuthTransport) CloseIdleConnections() {
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// decompressingTransport negotiates the enabled content codings and decodes
// matching responses. Decoded responses lose their Content-Encoding and
// Content-Length headers.
type decompressingTransport struct {
	base    http.RoundTripper
	codings Decompression
}

// RoundTrip implements http.RoundTripper.
func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", t.acceptEncoding())
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	coding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var decoded io.Reader
	switch {
	case coding == "gzip" && t.codings.Has(DecompressGzip):
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		decoded = gz
	case coding == "deflate" && t.codings.Has(DecompressDeflate):
		zr, err := deflateReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to create deflate reader: %w", err)
		}
		decoded = zr
	case coding == "br" && t.codings.Has(DecompressBrotli):
		decoded = brotli.NewReader(resp.Body)
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// deflateReader decodes the HTTP deflate coding, which is zlib-wrapped
// DEFLATE. Bodies without a zlib header are read as raw DEFLATE, as some
// servers send them. An empty body stays empty.
func deflateReader(body io.Reader) (io.Reader, error) {
	br := bufio.NewReader(body)
	header, err := br.Peek(2)
	if len(header) < 2 {
		if errors.Is(err, io.EOF) {
			return br, nil
		}
		return nil, err
	}
	if header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *decompressingTransport) CloseIdleConnections() {
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

func (t *decompressingTransport) acceptEncoding() string {
	var codings []string
	if t.codings.Has(DecompressGzip) {
		codings = append(codings, "gzip")
	}
	if t.codings.Has(DecompressDeflate) {
		codings = append(codings, "deflate")
	}
	if t.codings.Has(DecompressBrotli) {
		codings = append(codings, "br")
	}
	return strings.Join(codings, ", ")
}

// decodedBody closes both the decoder (when it is a Closer) and the raw body.
type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

// Close implements io.Closer.
func (b *decodedBody) Close() error {
	var errs []error
	if c, ok := b.Reader.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, b.raw.Close())
	return errors.Join(errs...)
}
