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

	"github.com/nao1215/sitemirror/internal/model"
)

// DBFileName is the journal file name inside the database directory.
const DBFileName = "sitemirror.db"

// ErrRunNotStarted is returned when a resource or a final report refers to
// a run that StartRun never recorded.
var ErrRunNotStarted = errors.New("run not started")

// MirrorDB is the SQLite run journal. It records every mirror run and every
// resource dispatched during it.
//
// Design decision: The journal is an audit trail, not a cache. It is never
// read to skip or resume a crawl because:
//  1. Each run owns its visited set, so runs stay independent
//  2. A stale journal must not hide changes on the mirrored site
type MirrorDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures MirrorDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that the history command can
	// read while a mirror is writing.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a MirrorDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*MirrorDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	// busy_timeout lets a history reader wait for a running mirror.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; batch runs share this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MirrorDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (mdb *MirrorDB) Close() error {
	return mdb.db.Close()
}

// Path returns the database file path.
func (mdb *MirrorDB) Path() string {
	return mdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
// Timestamps are stored as RFC 3339 text in UTC.
func (mdb *MirrorDB) createTables() error {
	schema := `
	-- One row per mirror run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		seed TEXT NOT NULL,
		host TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		visited INTEGER DEFAULT 0,
		saved INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);

	-- One row per dispatched resource
	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		depth INTEGER NOT NULL,
		content_type TEXT,
		size INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_run ON resources(run_id);
	CREATE INDEX IF NOT EXISTS idx_resources_path ON resources(run_id, local_path);
	`

	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun records the beginning of a run.
func (mdb *MirrorDB) StartRun(ctx context.Context, report *model.MirrorReport) error {
	query := `
	INSERT INTO runs (run_id, seed, host, output_dir, max_depth, started_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.ExecContext(ctx, query,
		report.RunID,
		report.Seed,
		report.Host,
		report.OutputDir,
		report.MaxDepth,
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// RecordResource records one dispatched resource of run runID.
func (mdb *MirrorDB) RecordResource(ctx context.Context, runID string, res model.Resource) error {
	query := `
	INSERT INTO resources (run_id, url, local_path, depth, content_type, size, status, error, fetched_at)
	SELECT run_id, ?, ?, ?, ?, ?, ?, ?, ? FROM runs WHERE run_id = ?
	`

	result, err := mdb.db.ExecContext(ctx, query,
		res.URL,
		res.LocalPath,
		res.Depth,
		res.ContentType,
		res.Size,
		string(res.Status),
		res.Error,
		formatTimestamp(res.FetchedAt),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to record resource %s: %w", res.URL, err)
	}
	return requireRow(result, runID)
}

// FinishRun stores the final counters and the full report of a run.
func (mdb *MirrorDB) FinishRun(ctx context.Context, report *model.MirrorReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	UPDATE runs
	SET finished_at = ?, visited = ?, saved = ?, failed = ?, interrupted = ?, report_json = ?
	WHERE run_id = ?
	`

	result, err := mdb.db.ExecContext(ctx, query,
		formatTimestamp(report.FinishedAt),
		report.Visited,
		report.Saved,
		report.Failed,
		report.Interrupted,
		string(reportJSON),
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return requireRow(result, report.RunID)
}

// requireRow returns ErrRunNotStarted when result touched no row.
func requireRow(result sql.Result, runID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotStarted, runID)
	}
	return nil
}

// RunSummary contains summary information about a run.
// It is used for listing history without loading full reports.
type RunSummary struct {
	// ID is the journal's sequential identifier, used by "history --id".
	ID int64

	// RunID is the run's UUID.
	RunID string

	// Seed is the normalized seed URL.
	Seed string

	// Host is the mirrored host.
	Host string

	// OutputDir is where the mirror was written.
	OutputDir string

	// StartedAt is when the run started.
	StartedAt time.Time

	// FinishedAt is when the run ended. Zero for runs that never finished,
	// e.g. because the process was killed.
	FinishedAt time.Time

	// Visited, Saved and Failed are the final counters.
	Visited int
	Saved   int
	Failed  int

	// Interrupted reports whether the run was cancelled.
	Interrupted bool
}

// ListRuns returns the runs for host, newest first.
// An empty host lists every run.
func (mdb *MirrorDB) ListRuns(ctx context.Context, host string) ([]RunSummary, error) {
	query := `
	SELECT id, run_id, seed, host, output_dir, started_at, finished_at, visited, saved, failed, interrupted
	FROM runs
	WHERE ? = '' OR host = ?
	ORDER BY id DESC
	`

	rows, err := mdb.db.QueryContext(ctx, query, host, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var (
			run        RunSummary
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(
			&run.ID, &run.RunID, &run.Seed, &run.Host, &run.OutputDir,
			&startedAt, &finishedAt,
			&run.Visited, &run.Saved, &run.Failed, &run.Interrupted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		results = append(results, run)
	}

	return results, rows.Err()
}

// GetRunReport returns the final report of run id.
// It returns nil, nil when the run does not exist or never finished.
func (mdb *MirrorDB) GetRunReport(ctx context.Context, id int64) (*model.MirrorReport, error) {
	var reportJSON sql.NullString
	err := mdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	if !reportJSON.Valid {
		return nil, nil
	}

	var report model.MirrorReport
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetRunResources returns the journaled resources of run id in the order
// they were processed. Unlike GetRunReport this works for runs that never
// finished.
func (mdb *MirrorDB) GetRunResources(ctx context.Context, id int64) ([]model.Resource, error) {
	query := `
	SELECT r.url, r.local_path, r.depth, r.content_type, r.size, r.status, r.error, r.fetched_at
	FROM resources r
	JOIN runs ON runs.run_id = r.run_id
	WHERE runs.id = ?
	ORDER BY r.id
	`

	rows, err := mdb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var (
			res         model.Resource
			contentType sql.NullString
			status      string
			errMsg      sql.NullString
			fetchedAt   string
		)
		if err := rows.Scan(&res.URL, &res.LocalPath, &res.Depth, &contentType, &res.Size, &status, &errMsg, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		res.ContentType = contentType.String
		res.Status = model.ResourceStatus(status)
		res.Error = errMsg.String
		res.FetchedAt = parseTimestamp(fetchedAt)
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

// PathCollision lists distinct URLs of one run that were written to the
// same local file. Only the last one written survives on disk.
type PathCollision struct {
	// LocalPath is the shared file.
	LocalPath string

	// URLs are the colliding URLs in lexical order.
	URLs []string
}

// FindPathCollisions returns the local paths of run id that more than one
// URL was mapped to, e.g. hashed long paths or the fallback file.
func (mdb *MirrorDB) FindPathCollisions(ctx context.Context, id int64) ([]PathCollision, error) {
	query := `
	SELECT r.local_path, r.url
	FROM resources r
	JOIN runs ON runs.run_id = r.run_id
	WHERE runs.id = ? AND r.local_path IN (
		SELECT r2.local_path
		FROM resources r2
		WHERE r2.run_id = runs.run_id
		GROUP BY r2.local_path
		HAVING COUNT(DISTINCT r2.url) > 1
	)
	GROUP BY r.local_path, r.url
	ORDER BY r.local_path, r.url
	`

	rows, err := mdb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find path collisions: %w", err)
	}
	defer rows.Close()

	var collisions []PathCollision
	for rows.Next() {
		var localPath, url string
		if err := rows.Scan(&localPath, &url); err != nil {
			return nil, fmt.Errorf("failed to scan collision: %w", err)
		}
		if n := len(collisions); n > 0 && collisions[n-1].LocalPath == localPath {
			collisions[n-1].URLs = append(collisions[n-1].URLs, url)
			continue
		}
		collisions = append(collisions, PathCollision{LocalPath: localPath, URLs: []string{url}})
	}

	return collisions, rows.Err()
}

// formatTimestamp formats t for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
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
