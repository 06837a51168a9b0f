package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no run with the requested id exists.
var ErrNotFound = errors.New("run not found")

// ConversionRun is one recorded conversion, written after the run settles.
type ConversionRun struct {
	ID                string
	FromFormat        string
	FromPath          string
	ToFormat          string
	ToPath            string
	State             string
	ImagesIngested    int
	ImagesEgested     int
	DetectionsDropped int
	Warnings          []string
	Error             string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Duration is the wall-clock time the run took.
func (r ConversionRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveRun records one run.
func (s *Store) SaveRun(ctx context.Context, run ConversionRun) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	return s.execWithRetry(ctx, `
		INSERT INTO conversion_runs (
			id, from_format, from_path, to_format, to_path, state,
			images_ingested, images_egested, detections_dropped,
			warnings, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.FromFormat, run.FromPath, run.ToFormat, run.ToPath, run.State,
		run.ImagesIngested, run.ImagesEgested, run.DetectionsDropped,
		string(encoded), run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
}

// Run returns the run with the given id, or ErrNotFound.
func (s *Store) Run(ctx context.Context, id string) (ConversionRun, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ConversionRun{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// selects a default page.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ConversionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []ConversionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `
	SELECT id, from_format, from_path, to_format, to_path, state,
	       images_ingested, images_egested, detections_dropped,
	       warnings, error, started_at, finished_at
	FROM conversion_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ConversionRun, error) {
	var (
		run      ConversionRun
		warnings string
		started  string
		finished string
	)
	err := row.Scan(&run.ID, &run.FromFormat, &run.FromPath, &run.ToFormat, &run.ToPath,
		&run.State, &run.ImagesIngested, &run.ImagesEgested, &run.DetectionsDropped,
		&warnings, &run.Error, &started, &finished)
	if err != nil {
		return ConversionRun{}, err
	}
	if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
		return ConversionRun{}, fmt.Errorf("decode warnings for %s: %w", run.ID, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return ConversionRun{}, fmt.Errorf("parse started_at for %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return ConversionRun{}, fmt.Errorf("parse finished_at for %s: %w", run.ID, err)
	}
	return run, nil
}
