package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nikbrunner/bmclean/internal/health"
)

const currentSchemaVersion = 1

// ReportStore archives completed audit reports in SQLite so past runs
// can be listed and reviewed. Reports are snapshots; nothing here feeds
// back into a tree.
type ReportStore struct {
	db   *sql.DB
	path string
}

// NewReportStore opens (or creates) the archive at the given path.
func NewReportStore(path string) (*ReportStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &ReportStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *ReportStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// migrate runs database migrations.
func (s *ReportStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the initial schema.
func (s *ReportStore) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS audit_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			total_checked INTEGER NOT NULL,
			total_issues INTEGER NOT NULL,
			health_score INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			new_url TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (run_id) REFERENCES audit_runs(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_audit_issues_run_id ON audit_issues(run_id);

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RunSummary is one archived audit run.
type RunSummary struct {
	ID           int64
	CreatedAt    time.Time
	TotalChecked int
	TotalIssues  int
	HealthScore  int
}

// IssueRecord is one archived issue row.
type IssueRecord struct {
	Title  string
	URL    string
	Path   string
	Status string
	NewURL string
	Detail string
}

// SaveReport archives a completed report and returns the run id.
func (s *ReportStore) SaveReport(report *health.Report) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
		INSERT INTO audit_runs (created_at, total_checked, total_issues, health_score)
		VALUES (?, ?, ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), report.TotalChecked, report.TotalIssues, report.HealthScore)
	if err != nil {
		return 0, err
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, issue := range report.Issues {
		_, err := tx.Exec(`
			INSERT INTO audit_issues (run_id, title, url, path, status, new_url, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, issue.Bookmark.Title, issue.Bookmark.URL, issue.Path,
			string(issue.Status), issue.NewURL, issue.Detail)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns archived runs, newest first.
func (s *ReportStore) ListRuns() ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, total_checked, total_issues, health_score
		FROM audit_runs
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var createdAt string
		if err := rows.Scan(&run.ID, &createdAt, &run.TotalChecked, &run.TotalIssues, &run.HealthScore); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Issues returns the archived issues for one run, in insert order.
func (s *ReportStore) Issues(runID int64) ([]IssueRecord, error) {
	rows, err := s.db.Query(`
		SELECT title, url, path, status, new_url, detail
		FROM audit_issues
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []IssueRecord
	for rows.Next() {
		var issue IssueRecord
		if err := rows.Scan(&issue.Title, &issue.URL, &issue.Path, &issue.Status, &issue.NewURL, &issue.Detail); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// DefaultStorePath returns the default archive path:
// ~/.config/bmclean/audits.db
func DefaultStorePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "bmclean", "audits.db"), nil
}
