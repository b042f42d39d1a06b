// Package config provides configuration structures and utilities for fetchq.
// It defines the options of the command line tool: request settings, crawl
// limits, report format and the per-host site file.
package config
