package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nao1215/fetchq/internal/config"
	"github.com/nao1215/fetchq/internal/log"
	"github.com/nao1215/fetchq/internal/tor"
	"github.com/spf13/cobra"
)

// getBoolFlag retrieves a bool flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getConfigFlag retrieves the --config flag from the command or the root.
func getConfigFlag(cmd *cobra.Command) string {
	v, err := cmd.Flags().GetString("config")
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates a sanitizing structured logger on stderr.
func setupLogger(verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return log.NewSecureJSONLogger(os.Stderr, verbose)
	}
	return log.NewSecureLogger(os.Stderr, verbose)
}

// loadSiteConfigs loads the site file into cfg.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty site configuration is used when no file is found.
func loadSiteConfigs(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		sites, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = sites
	case explicitConfigPath:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// normalizeRoot trims the URL, drops the fragment and turns an empty path
// into "/", so that a root is stored under one key.
func normalizeRoot(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// addTorFlags registers the embedded Tor flags shared by fetch and crawl.
func addTorFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("tor", false,
		"Route requests through an embedded Tor daemon (requires the tor binary)")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Time limit of the Tor daemon bootstrap")
}

// readTorFlags copies the embedded Tor flags into cfg.
func readTorFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Tor, err = cmd.Flags().GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return err
	}
	return nil
}

// startTor launches the embedded daemon when cfg.Tor is set and points
// cfg.Proxy at it. The returned stop function is never nil.
func startTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
	if !cfg.Tor {
		return func() {}, nil
	}

	daemon := tor.NewDaemon(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := daemon.Start(ctx); err != nil {
		return func() {}, err
	}
	stop := func() {
		if err := daemon.Stop(); err != nil {
			logger.Warn("failed to stop embedded Tor daemon", "error", err)
		}
	}

	proxy, err := daemon.ProxyURL()
	if err != nil {
		stop()
		return func() {}, err
	}
	cfg.Proxy = proxy
	return stop, nil
}
