package fetch

import (
	"net/http"
	"net/url"
	"slices"
	"time"
)

const (
	// DefaultTimeout is the request timeout used by DefaultConfig.
	DefaultTimeout = 100 * time.Second

	// DefaultUserAgent is the User-Agent header used by DefaultConfig.
	DefaultUserAgent = "fetchq/1.0 (+https://github.com/nao1215/fetchq)"
)

// Decompression is a set of content codings the transport decodes
// transparently.
type Decompression uint8

const (
	// DecompressGzip decodes "gzip" responses.
	DecompressGzip Decompression = 1 << iota

	// DecompressDeflate decodes "deflate" responses.
	DecompressDeflate

	// DecompressBrotli decodes "br" responses.
	DecompressBrotli
)

const (
	// DecompressNone disables transparent decompression.
	DecompressNone Decompression = 0

	// DecompressAll enables every supported content coding.
	DecompressAll = DecompressGzip | DecompressDeflate | DecompressBrotli
)

// Has reports whether every coding in o is enabled in d.
func (d Decompression) Has(o Decompression) bool {
	return d&o == o
}

// Credentials are sent as HTTP basic auth unless a request already carries
// an Authorization header.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Config is an immutable set of request and transport settings.
// Every With* method returns a modified copy; header maps are copied on
// write so that no two Config values share mutable state.
type Config struct {
	timeout       time.Duration
	credentials   Credentials
	proxy         *url.URL
	decompression Decompression
	insecure      bool
	userAgent     string
	header        http.Header
	jar           http.CookieJar
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		timeout:       DefaultTimeout,
		decompression: DecompressAll,
		userAgent:     DefaultUserAgent,
	}
}

// Timeout returns the whole-request timeout. Zero means no timeout.
func (c Config) Timeout() time.Duration { return c.timeout }

// Credentials returns the basic auth credentials.
func (c Config) Credentials() Credentials { return c.credentials }

// Proxy returns a copy of the proxy URL, or nil when requests go direct.
func (c Config) Proxy() *url.URL {
	if c.proxy == nil {
		return nil
	}
	u := *c.proxy
	return &u
}

// Decompression returns the enabled content codings.
func (c Config) Decompression() Decompression { return c.decompression }

// InsecureSkipVerify reports whether certificate validation is disabled.
func (c Config) InsecureSkipVerify() bool { return c.insecure }

// UserAgent returns the default User-Agent.
func (c Config) UserAgent() string { return c.userAgent }

// CookieJar returns the configured jar. Nil means the session's own jar.
func (c Config) CookieJar() http.CookieJar { return c.jar }

// Header returns a copy of the header overrides.
func (c Config) Header() http.Header {
	return c.header.Clone()
}

// WithTimeout returns a copy with the given timeout.
func (c Config) WithTimeout(d time.Duration) Config {
	c.timeout = d
	return c
}

// WithCredentials returns a copy with the given basic auth credentials.
func (c Config) WithCredentials(username, password string) Config {
	c.credentials = Credentials{Username: username, Password: password}
	return c
}

// WithProxy returns a copy that routes requests through the proxy.
// Nil removes the proxy. The scheme is validated when a transport is built.
func (c Config) WithProxy(proxy *url.URL) Config {
	if proxy == nil {
		c.proxy = nil
		return c
	}
	u := *proxy
	c.proxy = &u
	return c
}

// WithDecompression returns a copy with the given content codings enabled.
func (c Config) WithDecompression(d Decompression) Config {
	c.decompression = d
	return c
}

// WithInsecureSkipVerify returns a copy with certificate validation
// disabled (or enabled again).
func (c Config) WithInsecureSkipVerify(skip bool) Config {
	c.insecure = skip
	return c
}

// WithUserAgent returns a copy with the given default User-Agent.
func (c Config) WithUserAgent(ua string) Config {
	c.userAgent = ua
	return c
}

// WithCookieJar returns a copy that uses jar instead of the session jar.
func (c Config) WithCookieJar(jar http.CookieJar) Config {
	c.jar = jar
	return c
}

// WithHeader returns a copy where name is set to values, replacing any
// previous override for name.
func (c Config) WithHeader(name string, values ...string) Config {
	h := c.header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h[http.CanonicalHeaderKey(name)] = slices.Clone(values)
	c.header = h
	return c
}

// WithHeaderAdded returns a copy where values are appended to the override
// for name.
func (c Config) WithHeaderAdded(name string, values ...string) Config {
	h := c.header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	key := http.CanonicalHeaderKey(name)
	h[key] = append(slices.Clone(h[key]), values...)
	c.header = h
	return c
}

// WithoutHeader returns a copy without any override for name.
func (c Config) WithoutHeader(name string) Config {
	if c.header == nil {
		return c
	}
	h := c.header.Clone()
	h.Del(name)
	c.header = h
	return c
}
