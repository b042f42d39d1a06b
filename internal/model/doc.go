// Package model defines the crawl result structures shared by the command,
// the report writers and the database.
//
// This package contains the following main types:
//   - Page: One crawled page with its response metadata and content digest
//   - CrawlReport: The result of crawling one root
//   - Summary: A condensed view of a CrawlReport for display
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The report and database packages both need these types, and
// neither should depend on the other.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
