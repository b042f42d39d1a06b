package fetch

import (
	"io"
	"sync"
	"sync/atomic"
)

// Body is a single-use response body. The first Open returns the stream;
// every later Open fails with ErrBodyConsumed. The pipeline closes the body
// once the downstream consumer returns.
type Body struct {
	rc        io.ReadCloser
	opened    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewBody wraps rc as a single-use body.
func NewBody(rc io.ReadCloser) *Body {
	if rc == nil {
		rc = io.NopCloser(eofReader{})
	}
	return &Body{rc: rc}
}

// Open returns the response stream. It may be called once.
func (b *Body) Open() (io.Reader, error) {
	if !b.opened.CompareAndSwap(false, true) {
		return nil, ErrBodyConsumed
	}
	return b.rc, nil
}

// Consumed reports whether Open has been called.
func (b *Body) Consumed() bool {
	return b.opened.Load()
}

// Close releases the underlying stream. Close is idempotent and also marks
// the body as consumed.
func (b *Body) Close() error {
	b.opened.Store(true)
	b.closeOnce.Do(func() {
		b.closeErr = b.rc.Close()
	})
	return b.closeErr
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
