package query

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/nao1215/fetchq/internal/fetch"
)

// CSVReader yields the records of a CSV body, decoded with the declared
// charset. Records may have varying field counts.
func CSVReader() fetch.Reader[[]string] {
	return fetch.ReaderFunc[[]string](func(ctx context.Context, info *fetch.Info, body *fetch.Body) iter.Seq2[[]string, error] {
		return func(yield func([]string, error) bool) {
			r, err := fetch.DecodedStream(ctx, info, body)
			if err != nil {
				yield(nil, err)
				return
			}
			cr := csv.NewReader(r)
			cr.FieldsPerRecord = -1
			for {
				record, err := cr.Read()
				if errors.Is(err, io.EOF) {
					return
				}
				if err != nil {
					yield(nil, fmt.Errorf("failed to read CSV: %w", err))
					return
				}
				if !yield(record, nil) {
					return
				}
			}
		}
	})
}

// CSV reads each response as CSV records.
func CSV(q Query[*Response]) Query[Fetch[[]string]] {
	return Read(q, CSVReader())
}
