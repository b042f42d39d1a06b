package report

import (
	"io"

	"github.com/nao1215/fetchq/internal/model"
)

// Writer renders crawl reports in one output format.
type Writer interface {
	// Write outputs the full crawl report and returns the bytes written.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the summary of a crawl.
	WriteSummary(summary *model.Summary) (int, error)
}

// MultiWriter fans a report out to several Writers in order, stopping at
// the first error. The crawl command uses it to print a text copy of a
// report saved to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer and returns the total bytes.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(report) })
}

// WriteSummary outputs the summary to every Writer.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	total := 0
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// summaryOf returns the report summary, building it when Finish was not
// called.
func summaryOf(report *model.CrawlReport) *model.Summary {
	if report.Summary != nil {
		return report.Summary
	}
	return model.NewSummary(report)
}

// statusText returns the crawl status line shared by the text writers.
func statusText(summary *model.Summary) string {
	switch {
	case summary.Cancelled:
		return "CANCELLED (partial results)"
	case summary.Error != "":
		return "ERROR - " + summary.Error
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
