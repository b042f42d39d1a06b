package query

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/fetchq/internal/fetch"
)

// DefaultLinkSelector selects anchors and areas with an href.
const DefaultLinkSelector = "a[href], area[href]"

// Document is a parsed HTML page and the URL its relative references
// resolve against.
type Document struct {
	*goquery.Document

	base *url.URL
}

// NewDocument parses r as HTML. pageURL is the URL the page was fetched
// from; a <base href> in the page overrides it for resolution.
func NewDocument(pageURL *url.URL, r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Url = pageURL

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && pageURL != nil {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageURL.ResolveReference(ref)
		}
	}
	return &Document{Document: doc, base: base}, nil
}

// Base returns the URL relative references resolve against.
func (d *Document) Base() *url.URL {
	return d.base
}

// Resolve returns ref as an absolute http or https URL without fragment.
// ok is false for references that do not lead to a web page, such as
// javascript:, mailto: or an empty href.
func (d *Document) Resolve(ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	if d.base != nil {
		u = d.base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}

// HTMLReader parses the body as HTML using the declared charset.
func HTMLReader() fetch.Reader[*Document] {
	return fetch.ReaderFunc[*Document](func(ctx context.Context, info *fetch.Info, body *fetch.Body) iter.Seq2[*Document, error] {
		return func(yield func(*Document, error) bool) {
			r, err := fetch.DecodedStream(ctx, info, body)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(NewDocument(info.URL, r))
		}
	})
}

// HTML parses each response as an HTML document.
func HTML(q Query[*Response]) Query[Fetch[*Document]] {
	return Read(q, HTMLReader())
}

// Links yields the absolute URL of every element matched by selector that
// carries an href (or src) attribute, in document order. An empty selector
// means DefaultLinkSelector. References that do not resolve to http or
// https are skipped.
func Links(q Query[Fetch[*Document]], selector string) Query[Fetch[string]] {
	if selector == "" {
		selector = DefaultLinkSelector
	}
	return Query[Fetch[string]]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(Fetch[string]) error) error {
			return q.run(ctx, sess, inherited, tail, func(page Fetch[*Document]) error {
				var links []string
				page.Content.Find(selector).Each(func(_ int, s *goquery.Selection) {
					ref, ok := s.Attr("href")
					if !ok {
						ref, ok = s.Attr("src")
					}
					if !ok {
						return
					}
					if u, ok := page.Content.Resolve(ref); ok {
						links = append(links, u.String())
					}
				})
				for _, link := range links {
					if err := yield(Fetch[string]{Info: page.Info, Content: link}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// FollowLinks fetches every link Links finds, one after another, sending
// the page URL as Referer.
func FollowLinks(q Query[Fetch[*Document]], selector string) Query[*Response] {
	return Then(Links(q, selector), func(link Fetch[string]) Query[*Response] {
		return Get(link.Content).Header("Referer", link.Info.URL.String())
	})
}
