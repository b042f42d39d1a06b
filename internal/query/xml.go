package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/antchfx/xmlquery"
	"github.com/nao1215/fetchq/internal/fetch"
)

// XMLReader parses the body as an XML document. The document's own
// encoding declaration selects the charset.
func XMLReader() fetch.Reader[*xmlquery.Node] {
	return fetch.ReaderFunc[*xmlquery.Node](func(_ context.Context, _ *fetch.Info, body *fetch.Body) iter.Seq2[*xmlquery.Node, error] {
		return func(yield func(*xmlquery.Node, error) bool) {
			r, err := body.Open()
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := xmlquery.Parse(r)
			if err != nil {
				yield(nil, fmt.Errorf("failed to parse XML: %w", err))
				return
			}
			yield(doc, nil)
		}
	})
}

// XML parses each response as an XML document.
func XML(q Query[*Response]) Query[Fetch[*xmlquery.Node]] {
	return Read(q, XMLReader())
}

// XPath yields every node matching expr in each document, in document
// order.
func XPath(q Query[Fetch[*xmlquery.Node]], expr string) Query[Fetch[*xmlquery.Node]] {
	return Query[Fetch[*xmlquery.Node]]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(Fetch[*xmlquery.Node]) error) error {
			return q.run(ctx, sess, inherited, tail, func(doc Fetch[*xmlquery.Node]) error {
				nodes, err := xmlquery.QueryAll(doc.Content, expr)
				if err != nil {
					return fmt.Errorf("invalid XPath %q: %w", expr, err)
				}
				for _, n := range nodes {
					if err := yield(Fetch[*xmlquery.Node]{Info: doc.Info, Content: n}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
