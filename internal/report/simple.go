package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/fetchq/internal/model"
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without entries are shown.
	showEmpty bool

	// verbose adds the list of crawled pages to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with every crawled page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	summary := summaryOf(report)

	w.writeHeader(&sb, summary)
	w.writeStatistics(&sb, summary)
	w.writeMediaTypes(&sb, summary)
	if w.verbose {
		w.writePages(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStatistics(&sb, summary)
	w.writeMediaTypes(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          FETCHQ CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Root:           %s\n", summary.Root)
	fmt.Fprintf(sb, "Crawl Date:     %s\n", summary.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(summary))
	sb.WriteString("\n")
}

// writeStatistics writes the page counters.
func (w *SimpleWriter) writeStatistics(sb *strings.Builder, summary *model.Summary) {
	writeSection(sb, "STATISTICS")

	fmt.Fprintf(sb, "  PAGES:    %d\n", summary.PagesCrawled)
	fmt.Fprintf(sb, "  QUEUED:   %d\n", summary.URLsQueued)
	fmt.Fprintf(sb, "  DROPPED:  %d\n", summary.Dropped)
	fmt.Fprintf(sb, "  DEPTH:    %d\n", summary.MaxDepth)
	fmt.Fprintf(sb, "  BYTES:    %d\n", summary.TotalBytes)
	sb.WriteString("\n")
}

// writeMediaTypes writes the per media type page counts.
func (w *SimpleWriter) writeMediaTypes(sb *strings.Builder, summary *model.Summary) {
	if len(summary.MediaTypes) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "MEDIA TYPES")

	if len(summary.MediaTypes) == 0 {
		sb.WriteString("  No pages crawled\n")
	}
	for _, c := range summary.MediaTypes {
		fmt.Fprintf(sb, "  [+] %-40s %d\n", c.Name, c.Count)
	}
	sb.WriteString("\n")
}

// writePages writes one line per crawled page.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAGES")

	for _, p := range report.Pages {
		indicator := "+"
		if !p.IsSuccess() {
			indicator = "!"
		}
		fmt.Fprintf(sb, "  [%s] %d %s\n", indicator, p.StatusCode, p.URL)
		if p.Title != "" {
			fmt.Fprintf(sb, "      Title: %s\n", truncateString(p.Title, 60))
		}
		fmt.Fprintf(sb, "      Depth: %d  Type: %s  Size: %d\n", p.Depth, p.MediaType, p.Size)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by fetchq\n")
	sb.WriteString("https://github.com/nao1215/fetchq\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
