package query

import (
	"context"

	"github.com/nao1215/fetchq/internal/fetch"
)

// Then returns a dependent stage. Every result of q is collected before
// the first dependent query runs; the dependent queries then run one after
// another in the order q produced their inputs. A failure in q stops the
// stage before any dependent query starts.
//
// Dependent queries inherit the setup in effect for q merged with the setup
// attached to the returned stage. Response bodies of q are closed by the
// time next is called; read content with Read before Then when it is
// needed.
func Then[T, U any](q Query[T], next func(T) Query[U]) Query[U] {
	return Query[U]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(U) error) error {
			var items []T
			err := q.run(ctx, sess, inherited, fetch.Setup{}, func(v T) error {
				items = append(items, v)
				return nil
			})
			if err != nil {
				return err
			}

			childSetup := q.effective(inherited).Merge(tail)
			for _, v := range items {
				if err := next(v).run(ctx, sess, childSetup, fetch.Setup{}, yield); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Map transforms every result of q. An error from f ends the run.
// Response bodies stay open while f runs.
func Map[T, U any](q Query[T], f func(T) (U, error)) Query[U] {
	return Query[U]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(U) error) error {
			return q.run(ctx, sess, inherited, tail, func(v T) error {
				u, err := f(v)
				if err != nil {
					return err
				}
				return yield(u)
			})
		},
	}
}

// Where keeps the results of q for which keep returns true.
func Where[T any](q Query[T], keep func(T) bool) Query[T] {
	return Query[T]{
		down: q.effective,
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(T) error) error {
			return q.run(ctx, sess, inherited, tail, func(v T) error {
				if !keep(v) {
					return nil
				}
				return yield(v)
			})
		},
	}
}

// Flatten runs each query in declaration order, one after another, and
// yields their results in that order. Setup attached to the returned stage
// is inherited by every query.
func Flatten[T any](qs ...Query[T]) Query[T] {
	return Query[T]{
		exec: func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(T) error) error {
			setup := inherited.Merge(tail)
			for _, q := range qs {
				if err := q.run(ctx, sess, setup, fetch.Setup{}, yield); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Empty returns a query that yields nothing.
func Empty[T any]() Query[T] {
	return Query[T]{}
}

// Fail returns a query that fails with err when run.
func Fail[T any](err error) Query[T] {
	return Query[T]{
		exec: func(context.Context, *fetch.Session, fetch.Setup, fetch.Setup, func(T) error) error {
			return err
		},
	}
}

// Values returns a query that yields vs without fetching anything.
func Values[T any](vs ...T) Query[T] {
	return Query[T]{
		exec: func(_ context.Context, _ *fetch.Session, _, _ fetch.Setup, yield func(T) error) error {
			for _, v := range vs {
				if err := yield(v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
