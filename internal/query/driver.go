package query

import (
	"context"
	"errors"
	"iter"

	"github.com/nao1215/fetchq/internal/fetch"
)

// All runs q over sess and yields its results in order. The first error
// ends the sequence. Breaking out of the loop stops the run; no further
// requests are sent.
//
// Values that hold a response body (*Response) are only usable inside the
// loop body of the iteration that produced them.
func All[T any](ctx context.Context, sess *fetch.Session, q Query[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		stopped := false
		err := q.run(ctx, sess, fetch.DefaultSetup(), fetch.DefaultSetup(), func(v T) error {
			if !yield(v, nil) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if err == nil || stopped || errors.Is(err, errStopped) {
			return
		}
		var zero T
		yield(zero, err)
	}
}

// Collect runs q over sess and returns every result.
func Collect[T any](ctx context.Context, sess *fetch.Session, q Query[T]) ([]T, error) {
	var out []T
	for v, err := range All(ctx, sess, q) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Run runs q over a new session built from fetch.DefaultConfig. The
// session is closed when the iteration ends.
func Run[T any](ctx context.Context, q Query[T], opts ...fetch.SessionOption) iter.Seq2[T, error] {
	return RunWith(ctx, fetch.DefaultConfig(), q, opts...)
}

// RunWith is Run with an explicit base configuration.
func RunWith[T any](ctx context.Context, base fetch.Config, q Query[T], opts ...fetch.SessionOption) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		sess, err := fetch.NewSession(base, opts...)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		defer sess.Close()

		for v, err := range All(ctx, sess, q) {
			if !yield(v, err) {
				return
			}
		}
	}
}

// Shared is a query bound to a session, so that several runs share cookies,
// connections and the fetch id counter.
type Shared[T any] struct {
	query   Query[T]
	session *fetch.Session
}

// Share binds q to sess.
func Share[T any](q Query[T], sess *fetch.Session) Shared[T] {
	return Shared[T]{query: q, session: sess}
}

// Session returns the bound session.
func (s Shared[T]) Session() *fetch.Session {
	return s.session
}

// All runs the query over the bound session.
func (s Shared[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return All(ctx, s.session, s.query)
}

// Collect runs the query over the bound session and returns every result.
func (s Shared[T]) Collect(ctx context.Context) ([]T, error) {
	return Collect(ctx, s.session, s.query)
}
