package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/fetchq/internal/fetch"
)

// newTestServer serves a few fixed routes and counts requests.
func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	})
	mux.HandleFunc("/text/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(r.PathValue("name")))
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("a\nb\nc"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newSession(t *testing.T) *fetch.Session {
	t.Helper()
	sess, err := fetch.NewSession(fetch.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func contents[T any](fetches []Fetch[T]) []T {
	out := make([]T, 0, len(fetches))
	for _, f := range fetches {
		out = append(out, f.Content)
	}
	return out
}

// TestZeroQuery tests that an empty pipeline yields nothing.
func TestZeroQuery(t *testing.T) {
	t.Parallel()

	sess := newSession(t)

	var zero Query[int]
	got, err := Collect(context.Background(), sess, zero)
	if err != nil || len(got) != 0 {
		t.Errorf("expected no results and no error, got %v, %v", got, err)
	}

	got, err = Collect(context.Background(), sess, Empty[int]())
	if err != nil || len(got) != 0 {
		t.Errorf("expected no results and no error, got %v, %v", got, err)
	}
}

// TestFetchIDsIncrease tests that fetch ids increase in execution order.
func TestFetchIDsIncrease(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	sess := newSession(t)

	q := Text(Then(Lines(Get(server.URL+"/list")), func(line Fetch[string]) Query[*Response] {
		return Get(server.URL + "/text/" + line.Content)
	}))

	got, err := Collect(context.Background(), sess, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	prev := int64(1)
	for i, f := range got {
		if f.Info.ID <= prev {
			t.Errorf("result %d: expected id > %d, got %d", i, prev, f.Info.ID)
		}
		prev = f.Info.ID
	}
	if strings.Join(contents(got), "") != "abc" {
		t.Errorf("expected results in source order, got %v", contents(got))
	}
}

// TestSetupComposition tests that configuration transforms apply in order
// regardless of how the pipeline is nested.
func TestSetupComposition(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	appendUA := func(s string) func(fetch.Config) fetch.Config {
		return func(c fetch.Config) fetch.Config {
			return c.WithUserAgent(c.UserAgent() + s)
		}
	}

	tests := []struct {
		name string
		q    Query[Fetch[string]]
	}{
		{
			name: "flat chain",
			q: Text(Get(server.URL + "/ua").
				UserAgent("").
				Configure(appendUA("1")).
				Configure(appendUA("2")).
				Configure(appendUA("3"))),
		},
		{
			name: "modifier on reader stage",
			q: Text(Get(server.URL + "/ua").UserAgent("").Configure(appendUA("1")).Configure(appendUA("2"))).
				Configure(appendUA("3")),
		},
		{
			name: "inherited through then",
			q: Text(Then(Get(server.URL+"/text/x").UserAgent("").Configure(appendUA("1")), func(*Response) Query[*Response] {
				return Get(server.URL + "/ua").Configure(appendUA("3"))
			}).Configure(appendUA("2"))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Collect(context.Background(), newSession(t), tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Content != "123" {
				t.Errorf("expected user agent 123, got %v", contents(got))
			}
		})
	}
}

// TestStatusHandling tests strict and tolerant handling of non-2xx
// responses.
func TestStatusHandling(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	t.Run("strict fails", func(t *testing.T) {
		t.Parallel()

		_, err := Collect(context.Background(), newSession(t), Text(Get(server.URL+"/missing")))
		var statusErr *fetch.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *fetch.StatusError, got %v", err)
		}
		if statusErr.Info.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", statusErr.Info.StatusCode)
		}
		if !errors.Is(err, fetch.ErrHTTPStatus) {
			t.Error("expected errors.Is(err, ErrHTTPStatus)")
		}
	})

	t.Run("tolerant passes the response", func(t *testing.T) {
		t.Parallel()

		got, err := Collect(context.Background(), newSession(t), Text(Get(server.URL+"/missing")).ReturnErroneousFetch())
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Info.StatusCode != http.StatusNotFound {
			t.Fatalf("expected one 404 result, got %v", got)
		}
	})

	t.Run("tolerance is inherited by dependent stages", func(t *testing.T) {
		t.Parallel()

		q := Then(Get(server.URL+"/text/x").ReturnErroneousFetch(), func(*Response) Query[*Response] {
			return Get(server.URL + "/missing")
		})
		got, err := Collect(context.Background(), newSession(t), Infos(q))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].StatusCode != http.StatusNotFound {
			t.Errorf("expected the child 404 to pass, got %v", got)
		}
	})

	t.Run("child can restore strictness", func(t *testing.T) {
		t.Parallel()

		q := Then(Get(server.URL+"/text/x").ReturnErroneousFetch(), func(*Response) Query[*Response] {
			return Get(server.URL + "/missing").Strict()
		})
		if _, err := Collect(context.Background(), newSession(t), Infos(q)); !errors.Is(err, fetch.ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
	})
}

// TestFilter tests that predicates drop responses silently and only narrow.
func TestFilter(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	urls := []string{server.URL + "/text/a", server.URL + "/missing", server.URL + "/text/b"}

	build := func() Query[*Response] {
		qs := make([]Query[*Response], 0, len(urls))
		for _, u := range urls {
			qs = append(qs, Get(u))
		}
		return Flatten(qs...).ReturnErroneousFetch()
	}

	all, err := Collect(context.Background(), newSession(t), Text(build()))
	if err != nil {
		t.Fatal(err)
	}

	narrowed, err := Collect(context.Background(), newSession(t), Text(build().Filter(func(i *fetch.Info) bool {
		return i.IsSuccess()
	})))
	if err != nil {
		t.Fatal(err)
	}

	if len(all) != 3 {
		t.Fatalf("expected 3 results without filter, got %d", len(all))
	}
	if len(narrowed) != 2 {
		t.Fatalf("expected 2 results with filter, got %d", len(narrowed))
	}
	for _, f := range narrowed {
		if !f.Info.IsSuccess() {
			t.Errorf("unexpected result %d", f.Info.StatusCode)
		}
	}
}

// TestThenFailFast tests that no dependent request is sent after the
// predecessor fails.
func TestThenFailFast(t *testing.T) {
	t.Parallel()

	server, hits := newTestServer(t)
	sess := newSession(t)

	parent := Flatten(Get(server.URL+"/text/a"), Get(server.URL+"/missing"))
	q := Then(parent, func(*Response) Query[*Response] {
		return Get(server.URL + "/text/child")
	})

	_, err := Collect(context.Background(), sess, Infos(q))
	if !errors.Is(err, fetch.ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected only the 2 parent requests, got %d", n)
	}
}

// TestAcceptMediaType tests media type validation.
func TestAcceptMediaType(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	t.Run("unacceptable", func(t *testing.T) {
		t.Parallel()

		_, err := Collect(context.Background(), newSession(t), HTML(Accept(Get(server.URL+"/image"), "text/html")))
		var mediaErr *fetch.UnacceptableMediaError
		if !errors.As(err, &mediaErr) {
			t.Fatalf("expected *fetch.UnacceptableMediaError, got %v", err)
		}
		if mediaErr.Actual != "image/png" {
			t.Errorf("expected actual image/png, got %q", mediaErr.Actual)
		}
		if len(mediaErr.Expected) != 1 || mediaErr.Expected[0] != "text/html" {
			t.Errorf("expected [text/html], got %v", mediaErr.Expected)
		}
	})

	t.Run("acceptable ignores parameters and case", func(t *testing.T) {
		t.Parallel()

		got, err := Collect(context.Background(), newSession(t), Text(Accept(Get(server.URL+"/text/ok"), "TEXT/PLAIN; charset=utf-8")))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Content != "ok" {
			t.Errorf("expected [ok], got %v", contents(got))
		}
	})
}

// TestStopIteration tests that breaking out of the loop stops fetching.
func TestStopIteration(t *testing.T) {
	t.Parallel()

	server, hits := newTestServer(t)
	sess := newSession(t)

	qs := make([]Query[*Response], 0, 5)
	for i := range 5 {
		qs = append(qs, Get(fmt.Sprintf("%s/text/%d", server.URL, i)))
	}

	count := 0
	for _, err := range All(context.Background(), sess, Text(Flatten(qs...))) {
		if err != nil {
			t.Fatal(err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

// TestLinesStopAfterFirstLine tests that lines of one response are read in
// full before the first is yielded, and that stopping there ends the run.
func TestLinesStopAfterFirstLine(t *testing.T) {
	t.Parallel()

	server, hits := newTestServer(t)
	sess := newSession(t)

	q := Lines(Flatten(Get(server.URL+"/list"), Get(server.URL+"/text/next")))

	var got []string
	for f, err := range All(context.Background(), sess, q) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, f.Content)
		break
	}
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("expected the first line only, got %q", got)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

// TestCancellation tests that a cancelled context ends the run.
func TestCancellation(t *testing.T) {
	t.Parallel()

	server, hits := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, newSession(t), Text(Get(server.URL+"/text/a")))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

// TestRunAndShare tests the session-owning and session-sharing drivers.
func TestRunAndShare(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	q := Text(Get(server.URL + "/text/a"))

	t.Run("run owns a session", func(t *testing.T) {
		t.Parallel()

		for f, err := range Run(context.Background(), q) {
			if err != nil {
				t.Fatal(err)
			}
			if f.Info.ID != 1 {
				t.Errorf("expected id 1 in a fresh session, got %d", f.Info.ID)
			}
		}
	})

	t.Run("shared runs continue the id sequence", func(t *testing.T) {
		t.Parallel()

		shared := Share(q, newSession(t))
		first, err := shared.Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		second, err := shared.Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if first[0].Info.ID != 1 || second[0].Info.ID != 2 {
			t.Errorf("expected ids 1 and 2, got %d and %d", first[0].Info.ID, second[0].Info.ID)
		}
	})
}

// TestMapWhereValues tests the pure combinators.
func TestMapWhereValues(t *testing.T) {
	t.Parallel()

	sess := newSession(t)
	q := Map(Where(Values(1, 2, 3, 4), func(v int) bool { return v%2 == 0 }), func(v int) (string, error) {
		return fmt.Sprint(v * 10), nil
	})

	got, err := Collect(context.Background(), sess, q)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "20,40" {
		t.Errorf("expected 20,40, got %v", got)
	}

	wantErr := errors.New("boom")
	failing := Map(Values(1), func(int) (int, error) { return 0, wantErr })
	if _, err := Collect(context.Background(), sess, failing); !errors.Is(err, wantErr) {
		t.Errorf("expected mapped error, got %v", err)
	}
}
