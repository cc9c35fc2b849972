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

	"github.com/nao1215/pageweight/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "pageweight.db"

// RunDB provides SQLite-based storage for audit reports.
// Every run is kept; page weights are also stored row by row so the
// history of one URL can be read without decoding whole reports.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per audit run; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		site TEXT NOT NULL,
		source TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		template_count INTEGER DEFAULT 0,
		pages_crawled INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		total_html_bytes INTEGER DEFAULT 0,
		flagged_bytes INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Page weights of every sampled page of every run
	CREATE TABLE IF NOT EXISTS page_weights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		template TEXT NOT NULL,
		status_code INTEGER,
		total_bytes INTEGER DEFAULT 0,
		flagged_bytes INTEGER DEFAULT 0,
		finding_count INTEGER DEFAULT 0,
		error TEXT,
		FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON page_weights(url);
	CREATE INDEX IF NOT EXISTS idx_pages_run ON page_weights(run_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a report and its page weights in one transaction.
// Saving a run ID twice replaces the earlier copy.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.Report) error {
	if report.RunID == "" {
		return errors.New("report has no run ID")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_weights WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("failed to replace page weights: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, site, source, started_at, finished_at, template_count,
		pages_crawled, pages_failed, total_html_bytes, flagged_bytes, cancelled, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		template_count = excluded.template_count,
		pages_crawled = excluded.pages_crawled,
		pages_failed = excluded.pages_failed,
		total_html_bytes = excluded.total_html_bytes,
		flagged_bytes = excluded.flagged_bytes,
		cancelled = excluded.cancelled,
		report_json = excluded.report_json
	`
	s := report.Summary
	_, err = tx.ExecContext(ctx, query,
		report.RunID,
		report.Site,
		report.Source,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		s.TemplateCount,
		s.PagesCrawled,
		s.PagesFailed,
		s.TotalHTMLBytes,
		s.FlaggedBytes,
		report.Cancelled,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO page_weights (run_id, url, template, status_code, total_bytes, flagged_bytes, finding_count, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for name, tr := range report.Templates {
		for _, p := range tr.Pages {
			_, err := stmt.ExecContext(ctx,
				report.RunID, p.URL, name, p.StatusCode,
				p.TotalBytes, p.FlaggedBytes, p.FindingCount, p.Error,
			)
			if err != nil {
				return fmt.Errorf("failed to save page weight: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a report by run ID. It returns nil, nil when the run
// does not exist.
func (rdb *RunDB) GetRun(ctx context.Context, runID string) (*model.Report, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeReport(reportJSON)
}

// LatestRuns returns up to limit reports of a site, newest first.
func (rdb *RunDB) LatestRuns(ctx context.Context, site string, limit int) ([]*model.Report, error) {
	query := `
	SELECT report_json FROM runs
	WHERE site = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := rdb.db.QueryContext(ctx, query, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading full reports.
type RunMetadata struct {
	RunID          string
	Site           string
	Source         string
	StartedAt      time.Time
	FinishedAt     time.Time
	TemplateCount  int
	PagesCrawled   int
	PagesFailed    int
	TotalHTMLBytes int
	FlaggedBytes   int
	Cancelled      bool
}

// ListRuns returns the metadata of every run of a site, newest first.
func (rdb *RunDB) ListRuns(ctx context.Context, site string) ([]RunMetadata, error) {
	query := `
	SELECT run_id, site, source, started_at, finished_at, template_count,
		pages_crawled, pages_failed, total_html_bytes, flagged_bytes, cancelled
	FROM runs
	WHERE site = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started string
		var finished sql.NullString

		err := rows.Scan(
			&meta.RunID,
			&meta.Site,
			&meta.Source,
			&started,
			&finished,
			&meta.TemplateCount,
			&meta.PagesCrawled,
			&meta.PagesFailed,
			&meta.TotalHTMLBytes,
			&meta.FlaggedBytes,
			&meta.Cancelled,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListSites returns every site with at least one stored run.
func (rdb *RunDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM runs ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// PageRecord is the weight of one page in one run.
type PageRecord struct {
	RunID        string
	StartedAt    time.Time
	URL          string
	Template     string
	StatusCode   int
	TotalBytes   int
	FlaggedBytes int
	FindingCount int
	Error        string
}

// PageHistory returns the recorded weights of a URL, newest run first.
func (rdb *RunDB) PageHistory(ctx context.Context, url string) ([]PageRecord, error) {
	query := `
	SELECT p.run_id, r.started_at, p.url, p.template, p.status_code,
		p.total_bytes, p.flagged_bytes, p.finding_count, p.error
	FROM page_weights p
	JOIN runs r ON r.run_id = p.run_id
	WHERE p.url = ?
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var rec PageRecord
		var started string
		var errText sql.NullString
		err := rows.Scan(
			&rec.RunID,
			&started,
			&rec.URL,
			&rec.Template,
			&rec.StatusCode,
			&rec.TotalBytes,
			&rec.FlaggedBytes,
			&rec.FindingCount,
			&errText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page record: %w", err)
		}
		rec.StartedAt = parseTimestamp(started)
		rec.Error = errText.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

func decodeReport(reportJSON string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// formatTimestamp stores times in UTC with a fixed width so that text
// ordering matches time ordering.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02T15:04:05.000000000Z",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp. If parsing fails with all
// formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
