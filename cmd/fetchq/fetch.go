package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/nao1215/fetchq/internal/config"
	"github.com/nao1215/fetchq/internal/fetch"
	"github.com/nao1215/fetchq/internal/query"
	"github.com/spf13/cobra"
)

// errConflictingModes is returned when more than one output mode is set.
var errConflictingModes = errors.New("conflicting output modes: use only one of --text, --lines, --headers, --links, --xpath, --csv, --exif and --download")

// errInvalidHeader is returned for a --header value without a colon.
var errInvalidHeader = errors.New(`invalid header: must be "Name: value"`)

// fetchOptions select what the fetch command prints.
type fetchOptions struct {
	text     bool
	lines    bool
	headers  bool
	links    string
	xpath    string
	csv      bool
	exif     bool
	download string
	accept   []string
	tolerate bool
	header   []string
}

// validate checks that at most one output mode is set and that every
// extra header has a name.
func (o fetchOptions) validate() error {
	n := 0
	for _, set := range []bool{o.text, o.lines, o.headers, o.links != "", o.xpath != "", o.csv, o.exif, o.download != ""} {
		if set {
			n++
		}
	}
	if n > 1 {
		return errConflictingModes
	}
	for _, h := range o.header {
		if !strings.Contains(h, ":") {
			return fmt.Errorf("%w: %q", errInvalidHeader, h)
		}
	}
	return nil
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [url]...",
		Short: "Fetch URLs and print their content",
		Long: `Fetch requests each URL in order over one session and prints the result.

By default the body is printed as text decoded with its declared charset.
A non-2xx response fails the command unless --tolerate is given.

Examples:
  # Print a page
  fetchq fetch https://example.com/

  # Print response headers only
  fetchq fetch --headers https://example.com/

  # Print every link of a page
  fetchq fetch --links 'a[href]' https://example.com/

  # Print the titles of an RSS feed
  fetchq fetch --xpath '//item/title' https://example.com/feed.xml

  # Print the camera metadata of a photo
  fetchq fetch --exif https://example.com/photo.jpg

  # Save files, failing unless they are PDFs
  fetchq fetch --accept application/pdf --download ./files https://example.com/a.pdf`,
		Args: cobra.ArbitraryArgs,
		RunE: runFetchCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit of each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header ("Name: value"), repeatable`)
	cmd.Flags().StringP("user", "u", "",
		"Basic auth credentials (user:password)")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http, https, socks5 or socks5h)")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")
	addTorFlags(cmd)

	// Response handling flags
	cmd.Flags().StringSlice("accept", nil,
		"Fail unless the response media type is one of these")
	cmd.Flags().Bool("tolerate", false,
		"Print non-2xx responses instead of failing")

	// Output mode flags
	cmd.Flags().Bool("text", false, "Print the body as text (default)")
	cmd.Flags().Bool("lines", false, "Print the body line by line")
	cmd.Flags().Bool("headers", false, "Print the status line and headers")
	cmd.Flags().String("links", "", "Print the links matched by this CSS selector")
	cmd.Flags().String("xpath", "", "Print the text of the XML nodes matched by this XPath")
	cmd.Flags().Bool("csv", false, "Print CSV records, tab separated")
	cmd.Flags().Bool("exif", false, "Print the EXIF tags of images")
	cmd.Flags().String("download", "", "Save bodies into this directory and print the file paths")

	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildFetchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := opts.validate(); err != nil {
		return err
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

	return runFetch(ctx, cfg, opts, cmd.OutOrStdout(), logger)
}

// buildFetchConfig creates a Config and the output options from flags.
func buildFetchConfig(cmd *cobra.Command, args []string) (*config.Config, fetchOptions, error) {
	cfg := config.NewConfig()
	var opts fetchOptions
	var err error

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.ConfigFilePath = getConfigFlag(cmd)
	cfg.SaveToDB = false

	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, opts, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, opts, err
	}
	if cfg.Proxy, err = cmd.Flags().GetString("proxy"); err != nil {
		return nil, opts, err
	}
	if err := readTorFlags(cmd, cfg); err != nil {
		return nil, opts, err
	}
	if cfg.Insecure, err = cmd.Flags().GetBool("insecure"); err != nil {
		return nil, opts, err
	}
	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return nil, opts, err
	}
	cfg.Username, cfg.Password, _ = strings.Cut(user, ":")

	if opts.header, err = cmd.Flags().GetStringArray("header"); err != nil {
		return nil, opts, err
	}
	if opts.accept, err = cmd.Flags().GetStringSlice("accept"); err != nil {
		return nil, opts, err
	}
	if opts.tolerate, err = cmd.Flags().GetBool("tolerate"); err != nil {
		return nil, opts, err
	}
	if opts.text, err = cmd.Flags().GetBool("text"); err != nil {
		return nil, opts, err
	}
	if opts.lines, err = cmd.Flags().GetBool("lines"); err != nil {
		return nil, opts, err
	}
	if opts.headers, err = cmd.Flags().GetBool("headers"); err != nil {
		return nil, opts, err
	}
	if opts.links, err = cmd.Flags().GetString("links"); err != nil {
		return nil, opts, err
	}
	if opts.xpath, err = cmd.Flags().GetString("xpath"); err != nil {
		return nil, opts, err
	}
	if opts.csv, err = cmd.Flags().GetBool("csv"); err != nil {
		return nil, opts, err
	}
	if opts.exif, err = cmd.Flags().GetBool("exif"); err != nil {
		return nil, opts, err
	}
	if opts.download, err = cmd.Flags().GetString("download"); err != nil {
		return nil, opts, err
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, opts, err
	}

	cfg.Targets = args
	return cfg, opts, nil
}

// runFetch fetches every target in order over one session and prints the
// results in the selected mode.
func runFetch(ctx context.Context, cfg *config.Config, opts fetchOptions, out io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	base, err := cfg.FetchConfig(config.SiteConfig{})
	if err != nil {
		return err
	}
	sess, err := fetch.NewSession(base, fetch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := buildFetchQuery(cfg, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.headers:
		return printAll(ctx, sess, query.Infos(q), out, formatHeaders)
	case opts.lines:
		return printAll(ctx, sess, query.Lines(q), out, content[string])
	case opts.links != "":
		return printAll(ctx, sess, query.Links(query.HTML(q), opts.links), out, content[string])
	case opts.xpath != "":
		return printAll(ctx, sess, query.XPath(query.XML(q), opts.xpath), out, func(f query.Fetch[*xmlquery.Node]) string {
			return strings.TrimSpace(f.Content.InnerText())
		})
	case opts.csv:
		return printAll(ctx, sess, query.CSV(q), out, func(f query.Fetch[[]string]) string {
			return strings.Join(f.Content, "\t")
		})
	case opts.exif:
		return printAll(ctx, sess, query.EXIF(q), out, func(f query.Fetch[query.EXIFTag]) string {
			return f.Content.IFD + "\t" + f.Content.Name + "\t" + f.Content.Value
		})
	case opts.download != "":
		return printAll(ctx, sess, query.Download(q, opts.download), out, content[string])
	default:
		return printAll(ctx, sess, query.Text(q), out, func(f query.Fetch[string]) string {
			return strings.TrimSuffix(f.Content, "\n")
		})
	}
}

// buildFetchQuery builds one request per target, each configured for its
// site, and runs them in order.
func buildFetchQuery(cfg *config.Config, opts fetchOptions) (query.Query[*query.Response], error) {
	requests := make([]query.Query[*query.Response], 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		siteCfg, err := cfg.FetchConfig(cfg.SiteFor(target))
		if err != nil {
			return query.Query[*query.Response]{}, err
		}

		q := query.Get(target).Configure(func(fetch.Config) fetch.Config {
			return siteCfg
		})
		for _, h := range opts.header {
			name, value, _ := strings.Cut(h, ":")
			q = q.Header(strings.TrimSpace(name), strings.TrimSpace(value))
		}
		if opts.tolerate {
			q = q.ReturnErroneousFetch()
		}
		requests = append(requests, q)
	}

	q := query.Flatten(requests...)
	if len(opts.accept) > 0 {
		q = query.Accept(q, opts.accept...)
	}
	return q, nil
}

// printAll runs q and prints one formatted line per result.
func printAll[T any](ctx context.Context, sess *fetch.Session, q query.Query[T], out io.Writer, format func(T) string) error {
	for v, err := range query.All(ctx, sess, q) {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, format(v)); err != nil {
			return err
		}
	}
	return nil
}

func content[T any](f query.Fetch[T]) string {
	return fmt.Sprint(f.Content)
}

// formatHeaders renders the status line and the sorted response headers
// of info, followed by a blank line.
func formatHeaders(info *fetch.Info) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d %s\n", info.Proto, info.StatusCode, info.Reason)

	all := make(map[string][]string, len(info.Header)+len(info.ContentHeader))
	for name, values := range info.Header {
		all[name] = values
	}
	for name, values := range info.ContentHeader {
		all[name] = values
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, v := range all[name] {
			fmt.Fprintf(&sb, "%s: %s\n", name, v)
		}
	}
	return sb.String()
}
