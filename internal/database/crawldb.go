package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/fetchq/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "fetchq.db"

// CrawlDB provides SQLite-based storage for crawl data and crawl reports.
//
// Design decision: We use a single database file for every root rather
// than one file per site. This keeps history queries and backups simple.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// execer is the subset shared by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Crawl records store the latest fetch of each URL per crawl root
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		root TEXT NOT NULL,
		fetch_id INTEGER,
		depth INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		media_type TEXT,
		title TEXT,
		digest TEXT,
		size INTEGER,
		headers TEXT,
		UNIQUE(url, root)
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_url ON crawls(url);
	CREATE INDEX IF NOT EXISTS idx_crawls_root ON crawls(root);
	CREATE INDEX IF NOT EXISTS idx_crawls_timestamp ON crawls(timestamp);

	-- Links are the edges of the crawled link graph
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root TEXT NOT NULL,
		from_url TEXT NOT NULL,
		to_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(root, from_url, to_url)
	);

	CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_url);
	CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_url);

	-- Crawl reports store complete crawl results as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		pages INTEGER,
		dropped INTEGER,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_root ON crawl_reports(root);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CrawlRecord represents a stored page fetch.
type CrawlRecord struct {
	ID         int64               `json:"id"`
	URL        string              `json:"url"`
	Root       string              `json:"root"`
	FetchID    int64               `json:"fetch_id"`
	Depth      int                 `json:"depth"`
	Timestamp  time.Time           `json:"timestamp"`
	StatusCode int                 `json:"status_code"`
	MediaType  string              `json:"media_type"`
	Title      string              `json:"title,omitempty"`
	Digest     string              `json:"digest,omitempty"`
	Size       int                 `json:"size"`
	Headers    map[string][]string `json:"headers,omitempty"`
}

// RecordFromPage converts a crawled page of root into a CrawlRecord.
func RecordFromPage(root string, page *model.Page) *CrawlRecord {
	return &CrawlRecord{
		URL:        page.URL,
		Root:       root,
		FetchID:    page.FetchID,
		Depth:      page.Depth,
		StatusCode: page.StatusCode,
		MediaType:  page.MediaType,
		Title:      page.Title,
		Digest:     page.Digest,
		Size:       page.Size,
		Headers:    page.Headers,
	}
}

// insertCrawlRecord upserts record; URL and root identify it.
func insertCrawlRecord(ctx context.Context, ex execer, record *CrawlRecord) error {
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO crawls (url, root, fetch_id, depth, status_code, media_type, title, digest, size, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, root) DO UPDATE SET
		fetch_id = excluded.fetch_id,
		depth = excluded.depth,
		status_code = excluded.status_code,
		media_type = excluded.media_type,
		title = excluded.title,
		digest = excluded.digest,
		size = excluded.size,
		headers = excluded.headers,
		timestamp = CURRENT_TIMESTAMP
	`

	_, err = ex.ExecContext(ctx, query,
		record.URL,
		record.Root,
		record.FetchID,
		record.Depth,
		record.StatusCode,
		record.MediaType,
		record.Title,
		record.Digest,
		record.Size,
		string(headersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl record: %w", err)
	}
	return nil
}

const crawlColumns = `id, url, root, fetch_id, depth, timestamp, status_code, media_type, title, digest, size, headers`

// scanner is the subset shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCrawlRecord(s scanner) (*CrawlRecord, error) {
	var record CrawlRecord
	var headersJSON string
	var timestamp string

	err := s.Scan(
		&record.ID,
		&record.URL,
		&record.Root,
		&record.FetchID,
		&record.Depth,
		&timestamp,
		&record.StatusCode,
		&record.MediaType,
		&record.Title,
		&record.Digest,
		&record.Size,
		&headersJSON,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = parseTimestamp(timestamp)
	if headersJSON != "" && headersJSON != "null" {
		if err := json.Unmarshal([]byte(headersJSON), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}
	return &record, nil
}

// ListCrawlRecords returns every record of root ordered by depth, then URL.
func (cdb *CrawlDB) ListCrawlRecords(ctx context.Context, root string) ([]*CrawlRecord, error) {
	query := `SELECT ` + crawlColumns + ` FROM crawls WHERE root = ? ORDER BY depth, url`

	rows, err := cdb.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl records: %w", err)
	}
	defer rows.Close()

	var records []*CrawlRecord
	for rows.Next() {
		record, err := scanCrawlRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// HasRecentCrawl checks if a URL was crawled within the specified duration.
func (cdb *CrawlDB) HasRecentCrawl(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM crawls
	WHERE url = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := cdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}

	return count > 0, nil
}

// Link is an edge of the crawled link graph.
type Link struct {
	ID        int64     `json:"id"`
	Root      string    `json:"root"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// insertLinks records the links found on page from during the crawl of
// root. Links already known are ignored.
func insertLinks(ctx context.Context, ex execer, root, from string, to []string) error {
	query := `INSERT OR IGNORE INTO links (root, from_url, to_url) VALUES (?, ?, ?)`
	for _, target := range to {
		if _, err := ex.ExecContext(ctx, query, root, from, target); err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
	}
	return nil
}

// QueryLinks queries the link graph of root. An empty from returns every
// edge of root.
func (cdb *CrawlDB) QueryLinks(ctx context.Context, root, from string) ([]Link, error) {
	query := `
	SELECT id, root, from_url, to_url, timestamp
	FROM links
	WHERE root = ?
	`
	args := []any{root}

	if from != "" {
		query += " AND from_url = ?"
		args = append(args, from)
	}

	query += " ORDER BY id"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var results []Link
	for rows.Next() {
		var link Link
		var timestamp string

		if err := rows.Scan(&link.ID, &link.Root, &link.From, &link.To, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}

		link.Timestamp = parseTimestamp(timestamp)
		results = append(results, link)
	}

	return results, rows.Err()
}

// SaveCrawl stores a finished crawl in one transaction: a record and the
// links of every page, then the report itself. It returns the report id.
func (cdb *CrawlDB) SaveCrawl(ctx context.Context, report *model.CrawlReport) (int64, error) {
	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after Commit
	}()

	for _, page := range report.Pages {
		if err := insertCrawlRecord(ctx, tx, RecordFromPage(report.Root, page)); err != nil {
			return 0, err
		}
		if err := insertLinks(ctx, tx, report.Root, page.URL, page.Links); err != nil {
			return 0, err
		}
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_reports (root, pages, dropped, report_json)
	VALUES (?, ?, ?, ?)
	`, report.Root, len(report.Pages), report.Dropped, string(reportJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return id, nil
}

func decodeReport(reportJSON string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetLatestCrawlReport retrieves the most recent crawl report of root.
// It returns nil without error when there is none.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, root string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_reports
	WHERE root = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, root).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	return decodeReport(reportJSON)
}

// GetCrawlReportByID retrieves a crawl report by its database ID.
// It returns nil without error when there is none.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	return decodeReport(reportJSON)
}

// ListCrawledRoots returns every root with a stored report.
func (cdb *CrawlDB) ListCrawledRoots(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT root FROM crawl_reports ORDER BY root`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}

	return roots, rows.Err()
}

// CrawlReportMetadata contains summary information about a stored report.
// This is used for displaying crawl history without loading the full report.
type CrawlReportMetadata struct {
	// ID is the unique identifier of the report in the database.
	ID int64

	// Root is the crawl root.
	Root string

	// Timestamp is when the report was stored.
	Timestamp time.Time

	// Pages is the number of pages crawled.
	Pages int

	// Dropped is the number of URLs dropped.
	Dropped int
}

// GetCrawlHistory retrieves report metadata of root, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, root string) ([]CrawlReportMetadata, error) {
	query := `
	SELECT id, root, timestamp, pages, dropped
	FROM crawl_reports
	WHERE root = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlReportMetadata
	for rows.Next() {
		var meta CrawlReportMetadata
		var timestamp string

		if err := rows.Scan(&meta.ID, &meta.Root, &timestamp, &meta.Pages, &meta.Dropped); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
