package query

import (
	"context"
	"net/http"
	"time"

	"github.com/nao1215/fetchq/internal/fetch"
)

// Fetch pairs a content value with the Info of the request it came from.
type Fetch[T any] struct {
	Info    *fetch.Info
	Content T
}

// Response is the output of a request stage: the request Info and its
// single-use body. The body is open only while the downstream consumer
// handles the response.
type Response struct {
	Info *fetch.Info
	Body *fetch.Body
}

// Query is an immutable description of a pipeline stage and its
// predecessors. Nothing is fetched until a driver such as All runs it.
//
// The zero Query yields nothing.
type Query[T any] struct {
	// own is the setup attached to this stage by modifiers.
	own fetch.Setup

	// down returns the setup this stage's predecessors pass on, given the
	// setup inherited from the enclosing stage. Nil means the inherited
	// setup unchanged.
	down func(inherited fetch.Setup) fetch.Setup

	// exec runs the stage. tail holds setup contributions of this stage
	// and of the pass-through stages that follow it, in application order.
	exec func(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(T) error) error
}

// run executes q, appending q's own setup in front of tail.
func (q Query[T]) run(ctx context.Context, sess *fetch.Session, inherited, tail fetch.Setup, yield func(T) error) error {
	if q.exec == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.exec(ctx, sess, inherited, q.own.Merge(tail), yield)
}

// effective returns the setup q passes on to dependent stages.
func (q Query[T]) effective(inherited fetch.Setup) fetch.Setup {
	s := inherited
	if q.down != nil {
		s = q.down(inherited)
	}
	return s.Merge(q.own)
}

// Setup returns the setup attached to this stage.
func (q Query[T]) Setup() fetch.Setup {
	return q.own
}

// WithSetup returns a copy whose stage setup is merged with s.
func (q Query[T]) WithSetup(s fetch.Setup) Query[T] {
	q.own = q.own.Merge(s)
	return q
}

// Configure returns a copy that transforms the configuration with f after
// every transform already in effect.
func (q Query[T]) Configure(f func(fetch.Config) fetch.Config) Query[T] {
	q.own = q.own.WithConfigurer(f)
	return q
}

// UserAgent sets the default User-Agent.
func (q Query[T]) UserAgent(ua string) Query[T] {
	return q.Configure(func(c fetch.Config) fetch.Config {
		return c.WithUserAgent(ua)
	})
}

// Header sets a header override.
func (q Query[T]) Header(name string, values ...string) Query[T] {
	return q.Configure(func(c fetch.Config) fetch.Config {
		return c.WithHeader(name, values...)
	})
}

// Timeout sets the whole-request timeout.
func (q Query[T]) Timeout(d time.Duration) Query[T] {
	return q.Configure(func(c fetch.Config) fetch.Config {
		return c.WithTimeout(d)
	})
}

// Filter drops responses for which p returns false. Filters accumulate.
func (q Query[T]) Filter(p func(*fetch.Info) bool) Query[T] {
	q.own = q.own.WithFilter(p)
	return q
}

// ReturnErroneousFetch passes non-2xx responses downstream instead of
// failing.
func (q Query[T]) ReturnErroneousFetch() Query[T] {
	q.own = q.own.WithOptions(fetch.Options{ReturnErroneousFetch: true})
	return q
}

// Strict restores failing on non-2xx responses.
func (q Query[T]) Strict() Query[T] {
	q.own = q.own.WithOptions(fetch.Options{})
	return q
}

// send performs one request with setup and hands the response to yield.
// The body is closed when yield returns.
func send(ctx context.Context, sess *fetch.Session, setup fetch.Setup, req *http.Request, yield func(*Response) error) error {
	cfg := setup.Configure(sess.Config())
	info, body, err := sess.Send(ctx, cfg, req)
	if err != nil {
		return err
	}
	defer body.Close()

	if !setup.Options().ReturnErroneousFetch && !info.IsSuccess() {
		return &fetch.StatusError{Info: info}
	}
	if !setup.Accept(info) {
		sess.Logger().Debug("response filtered", "id", info.ID, "status", info.StatusCode, "url", info.URL.Redacted())
		return nil
	}
	return yield(&Response{Info: info, Body: body})
}
