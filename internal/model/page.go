package model

import (
	"encoding/hex"

	"github.com/nao1215/fetchq/internal/fetch"
	"golang.org/x/crypto/sha3"
)

// Page represents one crawled page.
//
// Design decision: We keep a digest instead of the body so a report of a
// large crawl stays small; the digest is enough to detect changed pages
// between crawls.
type Page struct {
	// URL is the final URL of the page, after redirects.
	URL string `json:"url"`

	// FetchID is the session-unique id of the fetch that produced the page.
	FetchID int64 `json:"fetch_id"`

	// Depth is the number of link hops from the crawl root.
	Depth int `json:"depth"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains all HTTP response headers, content headers included.
	// Keys are canonical header names.
	Headers map[string][]string `json:"headers,omitempty"`

	// MediaType is the media type of the body without parameters.
	MediaType string `json:"media_type"`

	// Title is the page title extracted from <title> tag.
	// Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Links are the absolute links found on an HTML page, in document order.
	Links []string `json:"links,omitempty"`

	// Meta holds the meta tags of an HTML page by lower-cased name, e.g.
	// "description" or "og:title".
	Meta map[string]string `json:"meta,omitempty"`

	// Size is the number of body bytes read.
	Size int `json:"size"`

	// Digest is the hex SHA3-256 digest of the body bytes read.
	// Empty for an empty body.
	Digest string `json:"digest,omitempty"`
}

// NewPage builds a Page from a fetch and the values the crawler extracted.
func NewPage(info *fetch.Info, depth int, title string, links []string, body []byte) *Page {
	p := &Page{
		FetchID:    info.ID,
		Depth:      depth,
		StatusCode: info.StatusCode,
		Headers:    make(map[string][]string, len(info.Header)+len(info.ContentHeader)),
		MediaType:  info.MediaType(),
		Title:      title,
		Links:      links,
		Size:       len(body),
		Digest:     Digest(body),
	}
	if info.URL != nil {
		p.URL = info.URL.String()
	}
	for k, v := range info.Header {
		p.Headers[k] = v
	}
	for k, v := range info.ContentHeader {
		p.Headers[k] = v
	}
	return p
}

// Digest returns the hex SHA3-256 digest of data, or "" for empty data.
func Digest(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetHeader returns the first value of the specified header.
// Returns empty string if the header is not present.
// Keys are stored in canonical form, so name must be canonical too.
func (p *Page) GetHeader(name string) string {
	if values, ok := p.Headers[name]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// IsHTML returns true if the page media type indicates HTML.
func (p *Page) IsHTML() bool {
	return p.MediaType == "text/html" || p.MediaType == "application/xhtml+xml"
}

// IsSuccess reports whether the status code is 2xx.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}
