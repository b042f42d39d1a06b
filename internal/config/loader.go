package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default site file name.
const DefaultConfigFile = ".fetchq"

var (
	// ErrConfigNotFound is returned when the site file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidSiteConfig is returned when a site file parses but holds
	// values fetchq cannot use.
	ErrInvalidSiteConfig = errors.New("invalid site configuration")
)

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Unknown keys are rejected so that a misspelled option is not silently
// ignored. An empty file is an empty configuration.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	if err := cf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cf, nil
}

// validate checks every site entry and the defaults.
func (cf *File) validate() error {
	if err := validateSite("defaults", cf.Defaults); err != nil {
		return err
	}
	for host, site := range cf.Sites {
		if strings.TrimSpace(host) == "" || strings.Contains(host, "/") {
			return fmt.Errorf("%w: site key %q must be a host with an optional port", ErrInvalidSiteConfig, host)
		}
		if err := validateSite(host, site); err != nil {
			return err
		}
	}
	return nil
}

func validateSite(name string, site SiteConfig) error {
	if site.Depth < -1 {
		return fmt.Errorf("%w: %s: depth must be -1 (unbounded) or greater", ErrInvalidSiteConfig, name)
	}
	for _, pattern := range append(append([]string{}, site.IgnorePatterns...), site.FollowPatterns...) {
		if _, err := filepath.Match(pattern, "/"); err != nil {
			return fmt.Errorf("%w: %s: pattern %q: %v", ErrInvalidSiteConfig, name, pattern, err)
		}
	}
	return nil
}

// GlobalConfigFile returns the path of the per-user site file in the XDG
// config directory.
func GlobalConfigFile() string {
	return filepath.Join(XDGConfigDir(), DefaultConfigFile)
}

// SearchPaths returns the locations FindConfigFile checks, in order:
// the current directory, the XDG config directory and the home directory.
func SearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, GlobalConfigFile())
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// FindConfigFile returns configPath when it is set and exists, or else the
// first existing file of SearchPaths. It returns "" when nothing is found;
// an explicit configPath that does not exist is never replaced by a
// search result.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
