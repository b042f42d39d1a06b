package query

import (
	"context"
	"slices"
	"strings"

	"github.com/nao1215/fetchq/internal/fetch"
)

// Read materializes every response of q with r. All values of a response
// are read and its body is released before the first value is passed
// downstream. Line readers therefore hold all lines of one response in
// memory, and a consumer that stops after the first line still reads that
// whole body. A read error surfaces before any value of its response.
func Read[T any](q Query[*Response], r fetch.Reader[T]) Query[Fetch[T]] {
	return Query[Fetch[T]]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(Fetch[T]) error) error {
			return q.run(ctx, sess, inherited, tail, func(resp *Response) error {
				var values []T
				for v, err := range r.Read(ctx, resp.Info, resp.Body) {
					if err != nil {
						return err
					}
					values = append(values, v)
				}
				if err := resp.Body.Close(); err != nil {
					sess.Logger().Debug("failed to close body", "id", resp.Info.ID, "error", err)
				}
				for _, v := range values {
					if err := yield(Fetch[T]{Info: resp.Info, Content: v}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// Text reads each response as a string decoded with its declared charset.
func Text(q Query[*Response]) Query[Fetch[string]] {
	return Read(q, fetch.AutoTextReader())
}

// Bytes reads each response body in full.
func Bytes(q Query[*Response]) Query[Fetch[[]byte]] {
	return Read(q, fetch.BytesReader())
}

// Lines reads each response line by line.
func Lines(q Query[*Response]) Query[Fetch[string]] {
	return Read(q, fetch.AutoLinesReader())
}

// Discard releases each response body unread.
func Discard(q Query[*Response]) Query[Fetch[fetch.Unit]] {
	return Read(q, fetch.DiscardReader())
}

// Infos yields the Info of each response.
func Infos(q Query[*Response]) Query[*fetch.Info] {
	return Map(q, func(resp *Response) (*fetch.Info, error) {
		return resp.Info, nil
	})
}

// Accept fails with an *fetch.UnacceptableMediaError when a response's
// media type is not one of mediaTypes. Comparison ignores case and
// parameters. An empty list accepts everything.
func Accept(q Query[*Response], mediaTypes ...string) Query[*Response] {
	expected := make([]string, 0, len(mediaTypes))
	for _, mt := range mediaTypes {
		mt, _, _ = strings.Cut(mt, ";")
		expected = append(expected, strings.ToLower(strings.TrimSpace(mt)))
	}

	return Query[*Response]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(*Response) error) error {
			return q.run(ctx, sess, inherited, tail, func(resp *Response) error {
				if len(expected) > 0 && !slices.Contains(expected, resp.Info.MediaType()) {
					return &fetch.UnacceptableMediaError{Actual: resp.Info.MediaType(), Expected: expected}
				}
				return yield(resp)
			})
		},
	}
}
