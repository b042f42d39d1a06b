package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/fetchq/internal/fetch"
)

const (
	// DefaultRetryBudget bounds how long Download keeps trying fresh names
	// after name collisions.
	DefaultRetryBudget = 5 * time.Second

	// tempPrefix prefixes generated file names.
	tempPrefix = "fetchq-"

	// retryPause is the pause between two attempts.
	retryPause = 10 * time.Millisecond
)

// Namer returns a file name for a response.
type Namer func(info *fetch.Info) string

// DownloadOption configures Download.
type DownloadOption func(*downloader)

// WithNamer sets the file name generator.
func WithNamer(namer Namer) DownloadOption {
	return func(d *downloader) {
		if namer != nil {
			d.namer = namer
		}
	}
}

// WithRetryBudget sets how long name collisions are retried.
func WithRetryBudget(budget time.Duration) DownloadOption {
	return func(d *downloader) {
		d.budget = budget
	}
}

type downloader struct {
	dir    string
	namer  Namer
	budget time.Duration
}

// UniqueName returns "fetchq-<uuid><ext>", where ext is taken from the
// Content-Disposition filename or else the media type.
func UniqueName(info *fetch.Info) string {
	return tempPrefix + uuid.NewString() + extension(info)
}

func extension(info *fetch.Info) string {
	if name := info.Filename(); name != "" {
		if ext := path.Ext(name); ext != "" {
			return ext
		}
	}
	if mediaType := info.MediaType(); mediaType != "" {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

// DownloadReader writes the body to a new file in dir and yields its path.
// An empty dir means os.TempDir(). Files are created exclusively; on a name
// collision a fresh name is tried until the retry budget runs out, after
// which a *TempFileError carrying every attempt's error is returned.
func DownloadReader(dir string, opts ...DownloadOption) fetch.Reader[string] {
	d := &downloader{
		dir:    dir,
		namer:  UniqueName,
		budget: DefaultRetryBudget,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dir == "" {
		d.dir = os.TempDir()
	}

	return fetch.ReaderFunc[string](func(ctx context.Context, info *fetch.Info, body *fetch.Body) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			yield(d.download(ctx, info, body))
		}
	})
}

// Download writes each response body to a file and yields the file path.
func Download(q Query[*Response], dir string, opts ...DownloadOption) Query[Fetch[string]] {
	return Read(q, DownloadReader(dir, opts...))
}

func (d *downloader) download(ctx context.Context, info *fetch.Info, body *fetch.Body) (string, error) {
	r, err := body.Open()
	if err != nil {
		return "", err
	}

	f, err := d.create(ctx, info)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// create opens a new file exclusively, retrying with fresh names while
// the name exists and the budget allows.
func (d *downloader) create(ctx context.Context, info *fetch.Info) (*os.File, error) {
	deadline := time.Now().Add(d.budget)
	var attempts []error

	for {
		name := filepath.Join(d.dir, filepath.Base(d.namer(info)))
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		attempts = append(attempts, err)

		if !time.Now().Before(deadline) {
			return nil, &TempFileError{Dir: d.dir, Attempts: len(attempts), Err: errors.Join(attempts...)}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryPause):
		}
	}
}
