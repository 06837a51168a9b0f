package vodconvert

// The conversion pipeline.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// State is the phase a conversion run is in when its Result is produced.
type State string

const (
	StateValidating  State = "validating"
	StateIngesting   State = "ingesting"
	StateReconciling State = "reconciling"
	StateEgesting    State = "egesting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// ErrPolicyRequired is returned when a Request does not choose an unmapped
// label policy. There is no implicit default.
var ErrPolicyRequired = errors.New("unmapped label policy must be drop or keep")

// ValidationError reports a source dataset that failed structural validation.
// Nothing has been written when it is returned.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid dataset at %s: %s", e.Path, e.Reason)
}

// Request describes one conversion.
type Request struct {
	FromPath   string
	FromFormat string
	ToPath     string
	ToFormat   string

	// Folders overrides format-specific directory and file names; nil keeps
	// every default.
	Folders FolderNames

	// OnUnmappedLabel must be set explicitly; see ErrPolicyRequired.
	OnUnmappedLabel UnmappedLabelPolicy

	// Aliases overrides the label alias table. nil selects DefaultAliases;
	// an empty non-nil map disables aliasing.
	Aliases map[string]string

	// Thumbnails generates a _thumbnail directory next to the egested images.
	// Formats that embed their images ignore it.
	Thumbnails bool
}

// Result is the outcome of a conversion run, complete with the warning log
// and the summary counts. Counts are partial when State is not done.
type Result struct {
	State             State
	Warnings          []Warning
	ImagesIngested    int
	ImagesEgested     int
	DetectionsDropped int
}

// Converter runs conversions between registered formats.
type Converter struct {
	registry *Registry
	logger   *slog.Logger
}

// NewConverter returns a Converter over the built-in formats. A nil logger
// disables logging.
func NewConverter(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Converter{registry: NewRegistry(), logger: logger}
}

// Run executes one conversion. Format resolution and the policy check happen
// before any filesystem access; source validation happens before anything is
// written. After that, per-image problems become warnings in the Result
// rather than errors, and only cancellation or a structural failure aborts.
func (c *Converter) Run(ctx context.Context, req Request) (Result, error) {
	rep := NewReport(c.logger)
	fail := func(err error) (Result, error) {
		return c.result(StateFailed, rep), err
	}

	if !req.OnUnmappedLabel.Valid() {
		return fail(ErrPolicyRequired)
	}
	ingestor, err := c.registry.Ingestor(req.FromFormat)
	if err != nil {
		return fail(err)
	}
	egestor, err := c.registry.Egestor(req.ToFormat)
	if err != nil {
		return fail(err)
	}
	if ok, reason := ingestor.Validate(req.FromPath, req.Folders); !ok {
		return fail(&ValidationError{Path: req.FromPath, Reason: reason})
	}

	c.logger.Info("ingesting", "format", req.FromFormat, "path", req.FromPath)
	data, err := ingestor.Ingest(ctx, req.FromPath, req.Folders, rep)
	rep.AddIngested(len(data))
	if err != nil {
		return fail(err)
	}

	c.logger.Info("reconciling labels", "images", len(data), "policy", string(req.OnUnmappedLabel))
	aliases := req.Aliases
	if aliases == nil {
		aliases = DefaultAliases()
	}
	data = ReconcileLabels(data, egestor.ExpectedLabels(), aliases, req.OnUnmappedLabel, rep)

	c.logger.Info("egesting", "format", req.ToFormat, "path", req.ToPath)
	if err := egestor.Egest(ctx, data, req.ToPath, req.Folders, rep); err != nil {
		return fail(err)
	}

	if req.Thumbnails {
		if layout, ok := egestor.(imageDirLayout); ok {
			dir := layout.ImagesDir(req.ToPath, req.Folders)
			c.logger.Info("generating thumbnails", "path", dir)
			if err := GenerateThumbnails(ctx, dir, rep); err != nil {
				return fail(err)
			}
		} else {
			c.logger.Debug("target format embeds images, skipping thumbnails",
				"format", req.ToFormat)
		}
	}

	result := c.result(StateDone, rep)
	c.logger.Info("conversion complete",
		"ingested", result.ImagesIngested,
		"egested", result.ImagesEgested,
		"dropped", result.DetectionsDropped,
		"warnings", len(result.Warnings))
	return result, nil
}

func (c *Converter) result(state State, rep *Report) Result {
	ingested, egested, dropped := rep.Counts()
	return Result{
		State:             state,
		Warnings:          rep.Warnings(),
		ImagesIngested:    ingested,
		ImagesEgested:     egested,
		DetectionsDropped: dropped,
	}
}
