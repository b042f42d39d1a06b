package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/nao1215/fetchq/internal/fetch"
)

// EXIFTag is one metadata tag of an image.
type EXIFTag struct {
	// IFD is the path of the directory holding the tag, e.g. "IFD/Exif".
	IFD string `json:"ifd"`

	// Name is the tag name, e.g. "Model" or "GPSLatitude".
	Name string `json:"name"`

	// Value is the human-readable form of the tag value.
	Value string `json:"value"`
}

// EXIFReader yields the EXIF tags embedded in the body, in directory
// order. A body without EXIF data yields nothing.
func EXIFReader() fetch.Reader[EXIFTag] {
	return fetch.ReaderFunc[EXIFTag](func(_ context.Context, _ *fetch.Info, body *fetch.Body) iter.Seq2[EXIFTag, error] {
		return func(yield func(EXIFTag, error) bool) {
			r, err := body.Open()
			if err != nil {
				yield(EXIFTag{}, err)
				return
			}
			data, err := io.ReadAll(r)
			if err != nil {
				yield(EXIFTag{}, err)
				return
			}

			raw, err := exif.SearchAndExtractExif(data)
			if errors.Is(err, exif.ErrNoExif) {
				return
			}
			if err != nil {
				yield(EXIFTag{}, fmt.Errorf("failed to find EXIF data: %w", err))
				return
			}

			entries, _, err := exif.GetFlatExifData(raw, nil)
			if err != nil {
				yield(EXIFTag{}, fmt.Errorf("failed to parse EXIF data: %w", err))
				return
			}
			for _, entry := range entries {
				tag := EXIFTag{IFD: entry.IfdPath, Name: entry.TagName, Value: entry.Formatted}
				if !yield(tag, nil) {
					return
				}
			}
		}
	})
}

// EXIF reads the EXIF tags of each response.
func EXIF(q Query[*Response]) Query[Fetch[EXIFTag]] {
	return Read(q, EXIFReader())
}
