package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/fetchq/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which covers tables, alerts, details blocks and mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, summary)
	w.writeStatistics(md, summary)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStatistics(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("fetchq Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root", "`" + summary.Root + "`"},
			{"Crawl Date", summary.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on summary state.
func (w *MarkdownWriter) getStatusText(summary *model.Summary) string {
	if summary.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if summary.Error != "" {
		return "❌ Error - " + summary.Error
	}
	return "✅ Complete"
}

// writeStatistics writes the counters, the media type chart and an alert.
func (w *MarkdownWriter) writeStatistics(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages crawled", strconv.Itoa(summary.PagesCrawled)},
			{"URLs queued", strconv.Itoa(summary.URLsQueued)},
			{"Dropped", strconv.Itoa(summary.Dropped)},
			{"Deepest page", strconv.Itoa(summary.MaxDepth)},
			{"Bytes read", strconv.Itoa(summary.TotalBytes)},
		},
	})
	md.PlainText("")

	if len(summary.MediaTypes) > 1 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the media type distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Media Types"),
		piechart.WithShowData(true),
	)

	for _, c := range summary.MediaTypes {
		chart.LabelAndIntValue(c.Name, uint64(c.Count)) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the crawl outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Error != "" && !summary.Cancelled:
		md.Cautionf("The crawl failed: %s", summary.Error)
	case summary.Cancelled:
		md.Warningf("The crawl was cancelled after %d page(s).", summary.PagesCrawled)
	case summary.Dropped > 0:
		md.Importantf("%d URL(s) could not be fetched or returned an error status.", summary.Dropped)
	case !summary.HasPages():
		md.Note("No pages were crawled.")
	default:
		md.Tip("Every queued URL was fetched successfully.")
	}
	md.PlainText("")
}

// writePages writes a table of crawled pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(p.Depth),
			strconv.Itoa(p.StatusCode),
			truncateString(p.URL, 60),
			truncateString(title, 40),
			p.MediaType,
			strconv.Itoa(p.Size),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Status", "URL", "Title", "Type", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, p := range report.Pages {
		if len(p.Links) > 0 {
			md.Details(p.URL, markdown.NewMarkdown(io.Discard).BulletList(p.Links...).String())
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [fetchq](https://github.com/nao1215/fetchq)*")
}
