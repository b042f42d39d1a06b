package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/fetchq/internal/model"
)

// JSONWriter outputs reports as one JSON document per call, followed by a
// newline. HTML characters are not escaped so URLs with query strings stay
// readable.
//
// Design decision: encoding/json is enough here; the report types are plain
// data with struct tags.
type JSONWriter struct {
	baseWriter
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents nested values by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) { w.indent = "  " }
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report, building its summary first when missing.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	report.Summary = summaryOf(report)
	return w.encode(report)
}

// WriteSummary outputs only the summary.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.encode(summary)
}

func (w *JSONWriter) encode(v any) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", w.indent)
	err := enc.Encode(v)
	return cw.n, err
}

// countingWriter counts the bytes passed to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// JSONReport is the document written by the crawl command: every report of
// one run together with the fetchq version that produced them.
type JSONReport struct {
	Version string               `json:"version"`
	Reports []*model.CrawlReport `json:"reports"`
}

// NewJSONReport wraps reports, building any missing summary.
func NewJSONReport(version string, reports ...*model.CrawlReport) *JSONReport {
	for _, r := range reports {
		r.Summary = summaryOf(r)
	}
	return &JSONReport{Version: version, Reports: reports}
}

// FullJSONWriter writes reports wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a FullJSONWriter stamping version on every
// document.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{JSONWriter: NewJSONWriter(output, opts...), version: version}
}

// Write outputs a document holding the single report.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.WriteAll(report)
}

// WriteAll outputs several reports as one JSON document.
func (w *FullJSONWriter) WriteAll(reports ...*model.CrawlReport) (int, error) {
	return w.encode(NewJSONReport(w.version, reports...))
}
