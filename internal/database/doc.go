// Package database stores crawl results in a local SQLite file.
//
// A CrawlDB holds three tables: crawls (one record per URL and root, with
// status, media type and sha3 digest), links (the link graph found while
// crawling) and crawl_reports (complete reports as JSON, used by the
// history command to compare a crawl with an earlier one).
//
// Design decision: modernc.org/sqlite is a CGO-free driver, so the binary
// cross-compiles and the database is a single file in the XDG data
// directory. WAL mode is enabled by default.
package database
