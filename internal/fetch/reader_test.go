package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func testBody(s string) *Body {
	return NewBody(io.NopCloser(strings.NewReader(s)))
}

func collect[T any](t *testing.T, r Reader[T], info *Info, body *Body) ([]T, error) {
	t.Helper()
	var out []T
	for v, err := range r.Read(context.Background(), info, body) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// TestBodySingleUse tests that a body can be opened only once.
func TestBodySingleUse(t *testing.T) {
	t.Parallel()

	t.Run("second open fails", func(t *testing.T) {
		t.Parallel()

		body := testBody("x")
		if _, err := body.Open(); err != nil {
			t.Fatalf("first Open() error = %v", err)
		}
		if _, err := body.Open(); !errors.Is(err, ErrBodyConsumed) {
			t.Errorf("expected ErrBodyConsumed, got %v", err)
		}
	})

	t.Run("second reader fails", func(t *testing.T) {
		t.Parallel()

		info := testInfo(http.Header{})
		body := testBody("x")
		if _, err := collect(t, BytesReader(), info, body); err != nil {
			t.Fatalf("first read error = %v", err)
		}
		if _, err := collect(t, TextReader(nil), info, body); !errors.Is(err, ErrBodyConsumed) {
			t.Errorf("expected ErrBodyConsumed, got %v", err)
		}
	})

	t.Run("closed body cannot be opened", func(t *testing.T) {
		t.Parallel()

		body := testBody("x")
		if err := body.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := body.Open(); !errors.Is(err, ErrBodyConsumed) {
			t.Errorf("expected ErrBodyConsumed, got %v", err)
		}
	})
}

// TestAutoTextReader tests charset-aware decoding.
func TestAutoTextReader(t *testing.T) {
	t.Parallel()

	t.Run("utf-8 by default", func(t *testing.T) {
		t.Parallel()

		got, err := collect(t, AutoTextReader(), testInfo(http.Header{}), testBody("héllo"))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != "héllo" {
			t.Errorf("expected [héllo], got %q", got)
		}
	})

	t.Run("latin-1 declared", func(t *testing.T) {
		t.Parallel()

		info := testInfo(http.Header{"Content-Type": {"text/plain; charset=iso-8859-1"}})
		got, err := collect(t, AutoTextReader(), info, testBody("caf\xe9"))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != "café" {
			t.Errorf("expected [café], got %q", got)
		}
	})

	t.Run("unknown charset", func(t *testing.T) {
		t.Parallel()

		info := testInfo(http.Header{"Content-Type": {"text/plain; charset=no-such-charset"}})
		body := testBody("x")
		_, err := collect(t, AutoTextReader(), info, body)
		if !errors.Is(err, ErrInvalidCharset) {
			t.Fatalf("expected ErrInvalidCharset, got %v", err)
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Value != "no-such-charset" {
			t.Errorf("expected *ConfigError naming the charset, got %v", err)
		}
		if body.Consumed() {
			t.Error("expected body untouched after charset error")
		}
	})
}

// TestLinesReader tests line splitting.
func TestLinesReader(t *testing.T) {
	t.Parallel()

	got, err := collect(t, AutoLinesReader(), testInfo(http.Header{}), testBody("one\r\ntwo\nthree"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestLimitedBytesReader tests truncation.
func TestLimitedBytesReader(t *testing.T) {
	t.Parallel()

	got, err := collect(t, LimitedBytesReader(3), testInfo(http.Header{}), testBody("abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || string(got[0]) != "abc" {
		t.Errorf("expected [abc], got %q", got)
	}
}

// TestDiscardReader tests that discarding yields exactly one Unit.
func TestDiscardReader(t *testing.T) {
	t.Parallel()

	body := testBody("ignored")
	got, err := collect(t, DiscardReader(), testInfo(http.Header{}), body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected one value, got %d", len(got))
	}
	if !body.Consumed() {
		t.Error("expected body to be consumed")
	}
}

// TestMapReader tests mapping without re-reading the body.
func TestMapReader(t *testing.T) {
	t.Parallel()

	lengths := MapReader(AutoLinesReader(), func(_ *Info, line string) (int, error) {
		return len(line), nil
	})

	got, err := collect(t, lengths, testInfo(http.Header{}), testBody("a\nbbb"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("expected [1 3], got %v", got)
	}

	failing := MapReader(BytesReader(), func(*Info, []byte) (string, error) {
		return "", io.ErrUnexpectedEOF
	})
	if _, err := collect(t, failing, testInfo(http.Header{}), testBody("x")); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected mapped error, got %v", err)
	}
}
