// Package main provides the entry point for the fetchq CLI.
//
// fetchq fetches web resources through composable queries and crawls sites
// breadth-first, storing crawl results for later comparison.
//
// Usage:
//
//	fetchq fetch <url>...
//	fetchq crawl <url>...
//	fetchq history <url>
//
// See --help for all available options.
package main

// main is the entry point for fetchq.
func main() {
	Execute()
}
