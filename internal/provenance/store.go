package provenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound indicates a run id that is not in the store.
var ErrNotFound = errors.New("run not found")

// Run is one pipeline invocation.
type Run struct {
	ID            string
	Source        string
	Status        string
	ErrorMessage  string
	FrameRate     int
	ResizePercent int
	Backend       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// StageOutput records one stage of a run. ExitCode is only set for
// toolchain stages.
type StageOutput struct {
	RunID        string
	Stage        string
	InputFolder  string
	OutputFolder string
	Succeeded    int
	Failed       int
	Detail       string
	ExitCode     *int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	dsn := path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts run with status running.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, frame_rate, resize_percent, backend, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, StatusRunning, run.FrameRate, run.ResizePercent, nullableString(run.Backend), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status := StatusCompleted
	var message any
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, message, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordStage appends a stage output to its run.
func (s *Store) RecordStage(ctx context.Context, out StageOutput) error {
	if out.FinishedAt.IsZero() {
		out.FinishedAt = time.Now()
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = out.FinishedAt
	}
	var exitCode any
	if out.ExitCode != nil {
		exitCode = *out.ExitCode
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_outputs (
            run_id, stage, input_folder, output_folder, succeeded, failed, detail, exit_code, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.RunID, out.Stage, nullableString(out.InputFolder), nullableString(out.OutputFolder),
		out.Succeeded, out.Failed, nullableString(out.Detail), exitCode,
		formatTime(out.StartedAt), formatTime(out.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stage output: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source, status, error_message, frame_rate, resize_percent, backend, started_at, finished_at
        FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, error_message, frame_rate, resize_percent, backend, started_at, finished_at
        FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return run, err
}

// Stages returns a run's stage outputs in recording order.
func (s *Store) Stages(ctx context.Context, runID string) ([]StageOutput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, input_folder, output_folder, succeeded, failed, detail, exit_code, started_at, finished_at
        FROM stage_outputs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var outputs []StageOutput
	for rows.Next() {
		var (
			out                   StageOutput
			input, output, detail sql.NullString
			exitCode              sql.NullInt64
			started, finished     string
		)
		if err := rows.Scan(&out.RunID, &out.Stage, &input, &output, &out.Succeeded, &out.Failed, &detail, &exitCode, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out.InputFolder = input.String
		out.OutputFolder = output.String
		out.Detail = detail.String
		if exitCode.Valid {
			code := int(exitCode.Int64)
			out.ExitCode = &code
		}
		out.StartedAt = parseTime(started)
		out.FinishedAt = parseTime(finished)
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// LatestOutput returns the most recent output folder recorded for stage, or
// "" when none exists.
func (s *Store) LatestOutput(ctx context.Context, stage string) (string, error) {
	var folder sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT output_folder FROM stage_outputs WHERE stage = ? AND output_folder IS NOT NULL
        ORDER BY finished_at DESC, id DESC LIMIT 1`, stage).Scan(&folder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest output: %w", err)
	}
	return folder.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run             Run
		errMsg, backend sql.NullString
		started         string
		finished        sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Source, &run.Status, &errMsg, &run.FrameRate, &run.ResizePercent, &backend, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.ErrorMessage = errMsg.String
	run.Backend = backend.String
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
