// Package worker wraps the conversion engine with run bookkeeping: run ids,
// target-directory locking, timing, and history persistence. It is the
// invocation boundary the CLI talks to; the engine itself stays free of all
// of this.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/SAlberte/multi-annotator/store"
	"github.com/SAlberte/multi-annotator/vodconvert"
)

// lockFileName is created inside the target directory for the flock.
const lockFileName = ".vodconv.lock"

// ErrTargetBusy is returned when another run holds the target directory.
var ErrTargetBusy = errors.New("target directory is locked by another run")

// Runner executes conversions end to end.
type Runner struct {
	converter *vodconvert.Converter
	store     *store.Store
	logger    *slog.Logger
}

// New constructs a Runner. A nil store disables run history; a nil logger
// disables logging.
func New(converter *vodconvert.Converter, st *store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Runner{converter: converter, store: st, logger: logger}
}

// RunOutcome pairs the engine result with the run bookkeeping.
type RunOutcome struct {
	RunID    string
	Result   vodconvert.Result
	Duration time.Duration
}

// Run assigns a run id, prepares and locks the target directory, runs the
// conversion, and records the outcome. The conversion error, if any, is
// returned alongside the outcome so partial counts stay visible.
func (r *Runner) Run(ctx context.Context, req vodconvert.Request) (RunOutcome, error) {
	outcome := RunOutcome{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", outcome.RunID)

	if err := ensureWritableDir(req.ToPath); err != nil {
		return outcome, err
	}
	lock := flock.New(filepath.Join(req.ToPath, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return outcome, fmt.Errorf("acquire target lock: %w", err)
	}
	if !ok {
		return outcome, fmt.Errorf("%w: %s", ErrTargetBusy, req.ToPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release target lock", "error", err)
		}
	}()

	logger.Info("run started",
		"from_format", req.FromFormat, "from", req.FromPath,
		"to_format", req.ToFormat, "to", req.ToPath)
	started := time.Now()
	result, runErr := r.converter.Run(ctx, req)
	outcome.Result = result
	outcome.Duration = time.Since(started)
	logger.Info("run finished",
		"state", string(result.State), "duration", outcome.Duration.Round(time.Millisecond))

	if r.store != nil {
		// Persist with a fresh context so cancelled runs are recorded too.
		if err := r.store.SaveRun(context.Background(), runRecord(outcome, req, started, runErr)); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}
	return outcome, runErr
}

func runRecord(outcome RunOutcome, req vodconvert.Request, started time.Time, runErr error) store.ConversionRun {
	warnings := make([]string, 0, len(outcome.Result.Warnings))
	for _, w := range outcome.Result.Warnings {
		warnings = append(warnings, w.String())
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	return store.ConversionRun{
		ID:                outcome.RunID,
		FromFormat:        req.FromFormat,
		FromPath:          req.FromPath,
		ToFormat:          req.ToFormat,
		ToPath:            req.ToPath,
		State:             string(outcome.Result.State),
		ImagesIngested:    outcome.Result.ImagesIngested,
		ImagesEgested:     outcome.Result.ImagesEgested,
		DetectionsDropped: outcome.Result.DetectionsDropped,
		Warnings:          warnings,
		Error:             errText,
		StartedAt:         started,
		FinishedAt:        started.Add(outcome.Duration),
	}
}

// ensureWritableDir creates dir if needed and verifies it is writable.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create target directory %q: %w", dir, err)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("target directory %q is not writable: %v", dir, err)
	}
	return nil
}
