package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/fetchq/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/fetchq.yaml
var configTemplate []byte

// errInitTargetConflict is returned when --output and --global are both set.
var errInitTargetConflict = errors.New("conflicting targets: --output and --global cannot be used together")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a site configuration template",
		Long: `Init writes a commented .fetchq site file.

The site file holds per-host request settings (headers, cookie, user agent)
and crawl settings (depth, ignore and follow patterns), plus a defaults
block applied to every host. fetch and crawl look for it in the current
directory, then the XDG config directory, then the home directory.

Examples:
  # Create .fetchq in the current directory
  fetchq init

  # Create the per-user file in the XDG config directory
  fetchq init --global

  # Create the file at a specific path, replacing an existing one
  fetchq init -o sites.yaml -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Path of the site file to write")
	cmd.Flags().BoolP("global", "g", false,
		"Write the per-user site file ("+config.GlobalConfigFile()+")")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if global {
		if cmd.Flags().Changed("output") {
			return errInitTargetConflict
		}
		outputPath = config.GlobalConfigFile()
	}

	if err := writeTemplate(outputPath, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created site file: %s\n", outputPath)
	fmt.Fprintln(out, "\nUncomment and edit the sites block to set, per host:")
	fmt.Fprintln(out, "  - headers, cookie and user agent of every request")
	fmt.Fprintln(out, "  - crawl depth")
	fmt.Fprintln(out, "  - path patterns to ignore or follow")
	return nil
}

// writeTemplate writes the site file template to path. Without force an
// existing file is left untouched and reported.
func writeTemplate(path string, force bool) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}

	// Cookies and tokens may end up in this file.
	f, err := os.OpenFile(path, flags, 0600) //nolint:gosec // User-provided output path is intentional
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("site file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create site file: %w", err)
	}

	if _, err := f.Write(configTemplate); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write site file: %w", err)
	}
	return f.Close()
}
