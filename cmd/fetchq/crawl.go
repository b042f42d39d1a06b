package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/fetchq/internal/config"
	"github.com/nao1215/fetchq/internal/crawler"
	"github.com/nao1215/fetchq/internal/database"
	"github.com/nao1215/fetchq/internal/fetch"
	"github.com/nao1215/fetchq/internal/model"
	"github.com/nao1215/fetchq/internal/report"
	"github.com/spf13/cobra"
)

// crawlFlags are crawl options that are not part of config.Config.
type crawlFlags struct {
	follow []string
	ignore []string
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl sites breadth-first and report what was found",
		Long: `Crawl walks each site breadth-first from the given root URL.

Only links to the root's host are followed, every URL is fetched at most
once, and links are taken only from HTML pages. Pages that fail or answer
with an error status are counted as dropped; the crawl goes on.

Results are printed as a report and stored in the database, so that
'fetchq history' can compare crawls later.

Examples:
  # Crawl a site with the default depth
  fetchq crawl https://example.com/

  # Crawl two sites concurrently, two levels deep
  fetchq crawl -d 2 https://example.com/ https://example.org/

  # Only crawl the documentation, skip PDFs
  fetchq crawl --follow '/docs/*' --ignore '*.pdf' https://example.com/

  # Write a Markdown report to a file
  fetchq crawl --markdown -o report.md https://example.com/

  # Crawl through a SOCKS proxy
  fetchq crawl --proxy socks5h://127.0.0.1:9050 https://example.com/

  # Crawl an onion service through an embedded Tor daemon
  fetchq crawl --tor http://example.onion/

  # Crawl at most once a day
  fetchq crawl --skip-recent 24h https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit of each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http, https, socks5 or socks5h)")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")
	addTorFlags(cmd)

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum crawl depth (-1 for unbounded)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per root (0 for no limit)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between two requests of one crawl")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum body bytes kept per page (0 for no limit)")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl paths matching these glob patterns")
	cmd.Flags().StringSlice("ignore", nil,
		"Skip paths matching these glob patterns")

	// Batch crawling flags
	cmd.Flags().IntP("concurrency", "b", config.DefaultBatchSize,
		"Number of roots crawled concurrently")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Storage flags
	cmd.Flags().Bool("no-db", false,
		"Do not store crawl results in the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl database")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip roots stored within this duration, e.g. 24h (0 crawls every root)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, flags, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose, getBoolFlag(cmd, "log-json"))
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	stopTor, err := startTor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopTor()

	return runCrawl(ctx, cfg, flags, cmd.OutOrStdout(), logger)
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, crawlFlags, error) {
	cfg := config.NewConfig()
	var flags crawlFlags
	var err error

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.ConfigFilePath = getConfigFlag(cmd)

	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, flags, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, flags, err
	}
	if cfg.Proxy, err = cmd.Flags().GetString("proxy"); err != nil {
		return nil, flags, err
	}
	if err := readTorFlags(cmd, cfg); err != nil {
		return nil, flags, err
	}
	if cfg.Insecure, err = cmd.Flags().GetBool("insecure"); err != nil {
		return nil, flags, err
	}
	if cfg.CrawlDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return nil, flags, err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, flags, err
	}
	if cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay"); err != nil {
		return nil, flags, err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
		return nil, flags, err
	}
	if flags.follow, err = cmd.Flags().GetStringSlice("follow"); err != nil {
		return nil, flags, err
	}
	if flags.ignore, err = cmd.Flags().GetStringSlice("ignore"); err != nil {
		return nil, flags, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return nil, flags, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, flags, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, flags, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, flags, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, flags, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, flags, err
	}
	if cfg.SkipRecent, err = cmd.Flags().GetDuration("skip-recent"); err != nil {
		return nil, flags, err
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, flags, err
	}

	cfg.Targets = make([]string, len(args))
	for i, arg := range args {
		cfg.Targets[i] = normalizeRoot(arg)
	}

	return cfg, flags, nil
}

// runCrawl crawls every target and writes one report per root.
func runCrawl(ctx context.Context, cfg *config.Config, flags crawlFlags, stdout io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"depth", cfg.CrawlDepth,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	targets, err := recentlyCrawled(ctx, db, cfg.Targets, cfg.SkipRecent, os.Stderr)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	batch := crawler.NewBatch(
		func(root string) *crawler.Spider {
			return newSpider(cfg, cfg.SiteFor(root), flags, logger)
		},
		crawler.WithConcurrency(cfg.BatchSize),
		crawler.WithBatchLogger(logger),
		crawler.WithSessionFactory(func(root string) (*fetch.Session, error) {
			base, err := cfg.FetchConfig(cfg.SiteFor(root))
			if err != nil {
				return nil, err
			}
			return fetch.NewSession(base, fetch.WithLogger(logger))
		}),
	)

	startTime := time.Now()
	reports := make([]*model.CrawlReport, len(targets))
	var writeErr error
	var mu sync.Mutex

	err = batch.RunWithCallback(ctx, targets, func(index int, result crawler.Result) {
		crawlReport := buildReport(result)

		mu.Lock()
		defer mu.Unlock()

		reports[index] = crawlReport
		fmt.Fprintf(os.Stderr, "[%d/%d] Crawl completed: %s (%d pages)\n",
			index+1, len(targets), result.Root, len(crawlReport.Pages))

		// JSON is written once, as a single document.
		if !cfg.JSONReport {
			if _, err := newReportWriter(cfg, output, stdout).Write(crawlReport); err != nil {
				writeErr = errors.Join(writeErr, err)
			}
		}

		if err := saveCrawl(context.WithoutCancel(ctx), db, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl", "root", result.Root, "error", err)
		}
	})

	if cfg.JSONReport {
		if _, err := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint()).WriteAll(compact(reports)...); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
	}

	logger.Info("crawl finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}
	return err
}

// recentlyCrawled returns the targets without a stored crawl of their root
// page within window, reporting every skipped root on out. Nothing is
// written to the report output, so JSON stays one document.
func recentlyCrawled(ctx context.Context, db *database.CrawlDB, targets []string, window time.Duration, out io.Writer) ([]string, error) {
	if db == nil || window <= 0 {
		return targets, nil
	}

	kept := make([]string, 0, len(targets))
	for _, target := range targets {
		recent, err := db.HasRecentCrawl(ctx, target, window)
		if err != nil {
			return nil, err
		}
		if recent {
			fmt.Fprintf(out, "Skipping %s: crawled within the last %s\n", target, window)
			continue
		}
		kept = append(kept, target)
	}
	return kept, nil
}

// newSpider creates the spider of one root from the global and site
// configuration. Pattern flags are added to the site's patterns.
func newSpider(cfg *config.Config, site config.SiteConfig, flags crawlFlags, logger *slog.Logger) *crawler.Spider {
	ignore := append(append([]string{}, site.IgnorePatterns...), flags.ignore...)
	follow := append(append([]string{}, site.FollowPatterns...), flags.follow...)

	return crawler.NewSpider(
		crawler.WithMaxDepth(cfg.Depth(site)),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithIgnorePatterns(ignore),
		crawler.WithFollowPatterns(follow),
		crawler.WithSpiderLogger(logger),
	)
}

// buildReport converts a crawl result into a finished report.
func buildReport(result crawler.Result) *model.CrawlReport {
	crawlReport := model.NewCrawlReport(result.Root)
	crawlReport.StartedAt = time.Now().Add(-result.Duration)
	for _, page := range result.Pages {
		p := model.NewPage(
			page.Info,
			page.Content.Depth,
			page.Content.Title,
			page.Content.Links,
			page.Content.Body,
		)
		if len(page.Content.Meta) > 0 {
			p.Meta = page.Content.Meta
		}
		crawlReport.AddPage(p)
	}
	crawlReport.Finish(result.Stats.URLsQueued, result.Stats.Dropped, result.Err)
	return crawlReport
}

// openOutput returns the report destination: the report file when set,
// otherwise stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may list URLs of authenticated areas; keep them owner-only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter returns the writer of the requested format. When the
// report goes to a file, a human-readable copy is printed to stdout.
func newReportWriter(cfg *config.Config, output, stdout io.Writer) report.Writer {
	var w report.Writer
	if cfg.MarkdownReport {
		w = report.NewMarkdownWriter(output)
	} else {
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile != "" {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(stdout))
	}
	return w
}

// saveCrawl stores the report in the database. A nil db is a no-op.
func saveCrawl(ctx context.Context, db *database.CrawlDB, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveCrawl(ctx, crawlReport)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	logger.Info("crawl saved to database", "root", crawlReport.Root, "id", id)
	return nil
}

// compact drops the reports of roots that never finished.
func compact(reports []*model.CrawlReport) []*model.CrawlReport {
	out := make([]*model.CrawlReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
