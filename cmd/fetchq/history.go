package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/fetchq/internal/config"
	"github.com/nao1215/fetchq/internal/database"
	"github.com/nao1215/fetchq/internal/model"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// errRootRequired is returned when a history operation lacks its root.
var errRootRequired = errors.New("root URL is required (use --list-roots to see crawled roots)")

// historyOptions select what the history command does.
type historyOptions struct {
	list      bool
	listRoots bool
	pages     bool
	links     bool
	from      string
	withID    int64
	json      bool
	markdown  bool
}

// NewHistoryCmd creates the history command.
// This command compares crawl results stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Compare stored crawls of a site",
		Long: `History shows how a site changed between two stored crawls.

Pages are matched by URL and compared by the digest of their content:
- Added pages were found only by the newer crawl
- Removed pages were found only by the older crawl
- Changed pages have a different content digest or status code

By default the latest two crawls of the root are compared.

Examples:
  # Compare the latest two crawls
  fetchq history https://example.com/

  # List stored crawls of a root
  fetchq history --list https://example.com/

  # Compare the latest crawl with a specific one
  fetchq history --with-id 5 https://example.com/

  # Show the stored pages and link graph of a root
  fetchq history --pages https://example.com/
  fetchq history --links --from https://example.com/docs/ https://example.com/

  # List every crawled root
  fetchq history --list-roots`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List stored crawls of the root")
	cmd.Flags().BoolP("list-roots", "L", false,
		"List every crawled root in the database")
	cmd.Flags().Bool("pages", false,
		"Show the latest stored record of every page of the root")
	cmd.Flags().Bool("links", false,
		"Show the stored link graph of the root")
	cmd.Flags().String("from", "",
		"With --links, only show links found on this page")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare the latest crawl with the crawl of this ID (see --list)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var opts historyOptions
	var err error

	if opts.listRoots, err = cmd.Flags().GetBool("list-roots"); err != nil {
		return err
	}
	if opts.list, err = cmd.Flags().GetBool("list"); err != nil {
		return err
	}
	if opts.pages, err = cmd.Flags().GetBool("pages"); err != nil {
		return err
	}
	if opts.links, err = cmd.Flags().GetBool("links"); err != nil {
		return err
	}
	if opts.from, err = cmd.Flags().GetString("from"); err != nil {
		return err
	}
	if opts.withID, err = cmd.Flags().GetInt64("with-id"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var root string
	if !opts.listRoots {
		if len(args) == 0 {
			return errRootRequired
		}
		root = normalizeRoot(args[0])
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, root, opts, cmd.OutOrStdout())
}

// runHistory performs the selected history operation.
func runHistory(ctx context.Context, db *database.CrawlDB, root string, opts historyOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.listRoots:
		return listCrawledRoots(ctx, db, out)
	case opts.list:
		return listCrawlHistory(ctx, db, root, out)
	case opts.pages:
		return listPages(ctx, db, root, opts.json, out)
	case opts.links:
		return listLinks(ctx, db, root, opts.from, opts.json, out)
	}

	diff, err := compareCrawls(ctx, db, root, opts.withID)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return encodeJSON(out, diff)
	case opts.markdown:
		return outputDiffMarkdown(out, diff)
	default:
		return outputDiffText(out, diff)
	}
}

// listCrawledRoots lists every root with a stored crawl.
func listCrawledRoots(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	roots, err := db.ListCrawledRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}

	if len(roots) == 0 {
		fmt.Fprintln(out, "No crawls found in the database.")
		fmt.Fprintln(out, "\nUse 'fetchq crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled roots (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  • %s\n", root)
	}
	fmt.Fprintln(out, "\nUse 'fetchq history --list <url>' to see the crawls of a root.")
	return nil
}

// listCrawlHistory lists the stored crawls of root, newest first.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, root string, out io.Writer) error {
	history, err := db.GetCrawlHistory(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", root)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", root, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %s\n", "ID", "Date", "Pages", "Dropped")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 48))
	for _, meta := range history {
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %d\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Pages,
			meta.Dropped,
		)
	}
	return nil
}

// listPages prints the stored record of every page of root.
func listPages(ctx context.Context, db *database.CrawlDB, root string, asJSON bool, out io.Writer) error {
	records, err := db.ListCrawlRecords(ctx, root)
	if err != nil {
		return err
	}
	if asJSON {
		return encodeJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No pages stored for %s\n", root)
		return nil
	}

	fmt.Fprintf(out, "Pages of %s (%d):\n\n", root, len(records))
	fmt.Fprintf(out, "  %-5s  %-6s  %-20s  %-20s  %s\n", "Depth", "Status", "Type", "Crawled", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, r := range records {
		fmt.Fprintf(out, "  %-5d  %-6d  %-20s  %-20s  %s\n",
			r.Depth, r.StatusCode, r.MediaType, formatTime(r.Timestamp), r.URL)
	}
	return nil
}

// listLinks prints the stored link graph of root, optionally only the
// links found on page from.
func listLinks(ctx context.Context, db *database.CrawlDB, root, from string, asJSON bool, out io.Writer) error {
	links, err := db.QueryLinks(ctx, root, from)
	if err != nil {
		return err
	}
	if asJSON {
		return encodeJSON(out, links)
	}

	if len(links) == 0 {
		fmt.Fprintf(out, "No links stored for %s\n", root)
		return nil
	}

	fmt.Fprintf(out, "Links of %s (%d):\n\n", root, len(links))
	for _, l := range links {
		fmt.Fprintf(out, "  %s -> %s\n", l.From, l.To)
	}
	return nil
}

func encodeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// compareCrawls compares the latest crawl of root with the previous one,
// or with the crawl withID when it is set.
func compareCrawls(ctx context.Context, db *database.CrawlDB, root string, withID int64) (*model.Diff, error) {
	history, err := db.GetCrawlHistory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", root)
	}
	if len(history) < 2 && withID == 0 {
		return nil, fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(history))
	}

	current, err := db.GetLatestCrawlReport(ctx, root)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("no crawl history found for %s", root)
	}

	previousID := withID
	if previousID == 0 {
		previousID = history[1].ID
	}
	previous, err := db.GetCrawlReportByID(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl with ID %d: %w", previousID, err)
	}
	if previous == nil {
		return nil, fmt.Errorf("crawl with ID %d not found", previousID)
	}
	if previous.Root != root {
		return nil, fmt.Errorf("crawl ID %d belongs to %s, not %s", previousID, previous.Root, root)
	}

	return model.Compare(previous, current), nil
}

// outputDiffText outputs the comparison in human-readable text format.
func outputDiffText(out io.Writer, diff *model.Diff) error {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", diff.Root)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nPrevious crawl: %s\n", formatTime(diff.From))
	fmt.Fprintf(out, "Current crawl:  %s\n", formatTime(diff.To))

	if !diff.HasChanges() {
		fmt.Fprintf(out, "\nNo changes (%d pages unchanged)\n", diff.Unchanged)
		return nil
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(out, "\nAdded (%d):\n", len(diff.Added))
		for _, u := range diff.Added {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved (%d):\n", len(diff.Removed))
		for _, u := range diff.Removed {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(out, "\nChanged (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(out, "  [~] %s%s\n", c.URL, statusChange(c))
		}
	}
	fmt.Fprintf(out, "\nUnchanged: %d pages\n", diff.Unchanged)
	return nil
}

// outputDiffMarkdown outputs the comparison in Markdown format.
func outputDiffMarkdown(out io.Writer, diff *model.Diff) error {
	md := markdown.NewMarkdown(out)

	md.H1("Crawl Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root", "`" + diff.Root + "`"},
			{"Previous crawl", formatTime(diff.From)},
			{"Current crawl", formatTime(diff.To)},
			{"Added", strconv.Itoa(len(diff.Added))},
			{"Removed", strconv.Itoa(len(diff.Removed))},
			{"Changed", strconv.Itoa(len(diff.Changed))},
			{"Unchanged", strconv.Itoa(diff.Unchanged)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Note("No page changed between the two crawls.")
		return md.Build()
	}

	if len(diff.Added) > 0 {
		md.H2("Added")
		md.BulletList(diff.Added...)
		md.PlainText("")
	}
	if len(diff.Removed) > 0 {
		md.H2("Removed")
		md.BulletList(diff.Removed...)
		md.PlainText("")
	}
	if len(diff.Changed) > 0 {
		md.H2("Changed")
		rows := make([][]string, len(diff.Changed))
		for i, c := range diff.Changed {
			rows[i] = []string{c.URL, strconv.Itoa(c.OldStatus), strconv.Itoa(c.NewStatus)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Previous status", "Current status"},
			Rows:   rows,
		})
	}

	return md.Build()
}

func statusChange(c model.PageChange) string {
	if c.OldStatus == c.NewStatus {
		return ""
	}
	return fmt.Sprintf(" (status %d -> %d)", c.OldStatus, c.NewStatus)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
