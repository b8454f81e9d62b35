// Package history stores run outcomes in a local sqlite database so that
// recoveries can be detected and past runs listed.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is used when the config enables history without a path.
const DefaultPath = ".pagespec/history.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	files       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	file        TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	passed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one recorded invocation of the runner.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Files     int
	Passed    int
	Failed    int
	Skipped   int
	ExitCode  int
	Scenarios []ScenarioRecord
}

// Succeeded reports whether the run had no failures.
func (r *Run) Succeeded() bool {
	return r.Failed == 0 && r.ExitCode == 0
}

type ScenarioRecord struct {
	File     string
	Name     string
	Passed   bool
	Skipped  bool
	Duration time.Duration
	// Message is the first failure reason, if any.
	Message string
}

// Store is a sqlite-backed run history.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the history database. The sqlite:// and sqlite:
// prefixes are accepted.
func Open(path string) (*Store, error) {
	path = parseConnectionString(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise history schema: %w", err)
	}

	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores run and its scenarios in one transaction. An empty ID is
// replaced by a new UUID, which is returned.
func (s *Store) Record(ctx context.Context, run *Run) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, files, passed, failed, skipped, exit_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.Duration.Milliseconds(),
		run.Files, run.Passed, run.Failed, run.Skipped, run.ExitCode)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scenario_results (run_id, position, file, scenario, passed, skipped, duration_ms, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare scenario insert: %w", err)
	}
	defer stmt.Close()

	for i, sc := range run.Scenarios {
		if _, err := stmt.ExecContext(ctx, run.ID, i, sc.File, sc.Name, sc.Passed, sc.Skipped,
			sc.Duration.Milliseconds(), sc.Message); err != nil {
			return "", fmt.Errorf("insert scenario %q: %w", sc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// Recent returns up to limit runs, newest first, without their scenarios.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, files, passed, failed, skipped, exit_code
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// LastRun returns the newest run with its scenarios, or nil when the
// history is empty.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	run := runs[0]
	run.Scenarios, err = s.Scenarios(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Scenarios returns the scenario records of a run in execution order.
func (s *Store) Scenarios(ctx context.Context, runID string) ([]ScenarioRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT file, scenario, passed, skipped, duration_ms, message
		 FROM scenario_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []ScenarioRecord
	for rows.Next() {
		var (
			rec        ScenarioRecord
			durationMs int64
		)
		if err := rows.Scan(&rec.File, &rec.Name, &rec.Passed, &rec.Skipped, &durationMs, &rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Prune keeps the newest keep runs and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		startedAt  int64
		durationMs int64
	)
	if err := row.Scan(&run.ID, &startedAt, &durationMs, &run.Files,
		&run.Passed, &run.Failed, &run.Skipped, &run.ExitCode); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	run.StartedAt = time.Unix(0, startedAt)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}

func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)
	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	return strings.TrimPrefix(connStr, "sqlite:")
}
