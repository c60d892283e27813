package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("history: run not found")

const (
	defaultListLimit = 20
	maxListLimit     = 200

	// timeLayout is fixed-width so stored times sort correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Run is one recorded launch.
type Run struct {
	ID         string     `json:"id"`
	PID        int        `json:"pid"`
	Binary     string     `json:"binary"`
	DataPath   string     `json:"data_path"`
	Address    string     `json:"address"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	ExitStatus string     `json:"exit_status,omitempty"`
}

// Repository defines run history operations.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	Finish(ctx context.Context, id string, stoppedAt time.Time, exitStatus string) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	CloseStale(ctx context.Context, stoppedAt time.Time, exitStatus string) (int64, error)
}

// SQLiteRepository stores runs in the runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a run repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new run. StartedAt defaults to now.
func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("history: run ID is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, pid, binary_path, data_path, address, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.PID, run.Binary, run.DataPath, run.Address,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Finish records the stop time and exit description of a run.
func (r *SQLiteRepository) Finish(ctx context.Context, id string, stoppedAt time.Time, exitStatus string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET stopped_at = ?, exit_status = ? WHERE id = ?`,
		formatTime(stoppedAt), exitStatus, id,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// CloseStale finishes every run still open, for runs orphaned by a
// previous launcher session. Returns the number of rows closed.
func (r *SQLiteRepository) CloseStale(ctx context.Context, stoppedAt time.Time, exitStatus string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET stopped_at = ?, exit_status = ? WHERE stopped_at IS NULL`,
		formatTime(stoppedAt), exitStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("closing stale runs: %w", err)
	}
	return res.RowsAffected()
}

// Get returns a single run.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, pid, binary_path, data_path, address, started_at, stopped_at, exit_status
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first. limit defaults to 20, max 200.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pid, binary_path, data_path, address, started_at, stopped_at, exit_status
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		stoppedAt  sql.NullString
		exitStatus sql.NullString
	)
	if err := s.Scan(&run.ID, &run.PID, &run.Binary, &run.DataPath, &run.Address,
		&startedAt, &stoppedAt, &exitStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at of run %s: %w", run.ID, err)
	}
	run.StartedAt = t

	if stoppedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, stoppedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing stopped_at of run %s: %w", run.ID, err)
		}
		run.StoppedAt = &t
	}
	run.ExitStatus = exitStatus.String
	return &run, nil
}
