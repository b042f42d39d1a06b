package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineSize bounds a single line produced by LinesReader.
const maxLineSize = 1024 * 1024

// Unit is the content of a discarded body.
type Unit struct{}

// Reader turns a response into a sequence of content values.
// A Reader opens the body at most once; opening it a second time fails with
// ErrBodyConsumed.
type Reader[T any] interface {
	Read(ctx context.Context, info *Info, body *Body) iter.Seq2[T, error]
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc[T any] func(ctx context.Context, info *Info, body *Body) iter.Seq2[T, error]

// Read calls f.
func (f ReaderFunc[T]) Read(ctx context.Context, info *Info, body *Body) iter.Seq2[T, error] {
	return f(ctx, info, body)
}

// single yields exactly one value or one error.
func single[T any](v T, err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		yield(v, err)
	}
}

// DiscardReader releases the body without reading it and yields Unit.
func DiscardReader() Reader[Unit] {
	return ReaderFunc[Unit](func(_ context.Context, _ *Info, body *Body) iter.Seq2[Unit, error] {
		if _, err := body.Open(); err != nil {
			return single(Unit{}, err)
		}
		return single(Unit{}, body.Close())
	})
}

// BytesReader yields the whole body.
func BytesReader() Reader[[]byte] {
	return LimitedBytesReader(0)
}

// LimitedBytesReader yields at most limit bytes of the body. A limit of
// zero or less reads everything.
func LimitedBytesReader(limit int64) Reader[[]byte] {
	return ReaderFunc[[]byte](func(ctx context.Context, _ *Info, body *Body) iter.Seq2[[]byte, error] {
		r, err := body.Open()
		if err != nil {
			return single[[]byte](nil, err)
		}
		if limit > 0 {
			r = io.LimitReader(r, limit)
		}
		data, err := io.ReadAll(contextReader{ctx: ctx, r: r})
		if err != nil {
			return single[[]byte](nil, fmt.Errorf("failed to read body: %w", err))
		}
		return single(data, nil)
	})
}

// TextReader yields the body decoded with enc. A nil enc means UTF-8.
func TextReader(enc encoding.Encoding) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context, _ *Info, body *Body) iter.Seq2[string, error] {
		r, err := decodedStream(ctx, body, enc)
		if err != nil {
			return single("", err)
		}
		var sb strings.Builder
		if _, err := io.Copy(&sb, r); err != nil {
			return single("", fmt.Errorf("failed to read body: %w", err))
		}
		return single(sb.String(), nil)
	})
}

// AutoTextReader yields the body decoded with the charset the response
// declares, defaulting to UTF-8.
func AutoTextReader() Reader[string] {
	return ReaderFunc[string](func(ctx context.Context, info *Info, body *Body) iter.Seq2[string, error] {
		enc, err := EncodingFor(info)
		if err != nil {
			return single("", err)
		}
		return TextReader(enc).Read(ctx, info, body)
	})
}

// LinesReader yields the body line by line, decoded with enc. Line
// terminators are stripped. A nil enc means UTF-8.
func LinesReader(enc encoding.Encoding) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context, _ *Info, body *Body) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			r, err := decodedStream(ctx, body, enc)
			if err != nil {
				yield("", err)
				return
			}
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
			for scanner.Scan() {
				if !yield(scanner.Text(), nil) {
					return
				}
			}
			if err := scanner.Err(); err != nil {
				yield("", fmt.Errorf("failed to read lines: %w", err))
			}
		}
	})
}

// AutoLinesReader is LinesReader with the charset the response declares.
func AutoLinesReader() Reader[string] {
	return ReaderFunc[string](func(ctx context.Context, info *Info, body *Body) iter.Seq2[string, error] {
		enc, err := EncodingFor(info)
		if err != nil {
			return single("", err)
		}
		return LinesReader(enc).Read(ctx, info, body)
	})
}

// MapReader applies f to every value produced by r without reading the
// body again.
func MapReader[T, U any](r Reader[T], f func(*Info, T) (U, error)) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context, info *Info, body *Body) iter.Seq2[U, error] {
		return func(yield func(U, error) bool) {
			for v, err := range r.Read(ctx, info, body) {
				var zero U
				if err != nil {
					yield(zero, err)
					return
				}
				u, err := f(info, v)
				if err != nil {
					yield(zero, err)
					return
				}
				if !yield(u, nil) {
					return
				}
			}
		}
	})
}

// EncodingFor returns the decoder for the charset info declares.
// An empty charset means UTF-8; an unknown one is a *ConfigError wrapping
// ErrInvalidCharset.
func EncodingFor(info *Info) (encoding.Encoding, error) {
	name := strings.TrimSpace(info.Charset())
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, &ConfigError{Field: "charset", Value: name, Err: ErrInvalidCharset}
	}
	return enc, nil
}

// DecodedStream opens body and wraps it with the charset decoder declared
// by info. It is the building block for readers that parse text formats.
func DecodedStream(ctx context.Context, info *Info, body *Body) (io.Reader, error) {
	enc, err := EncodingFor(info)
	if err != nil {
		return nil, err
	}
	return decodedStream(ctx, body, enc)
}

func decodedStream(ctx context.Context, body *Body, enc encoding.Encoding) (io.Reader, error) {
	r, err := body.Open()
	if err != nil {
		return nil, err
	}
	if enc == nil {
		enc = unicode.UTF8
	}
	return transform.NewReader(contextReader{ctx: ctx, r: r}, enc.NewDecoder()), nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
