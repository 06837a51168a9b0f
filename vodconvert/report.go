package vodconvert

// Warning accumulation for a single conversion run.

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
)

// WarningKind classifies the non-fatal problems a conversion can hit.
type WarningKind string

const (
	// WarnParse marks a single detection row that failed to parse.
	WarnParse WarningKind = "parse"
	// WarnMissingAsset marks an image that could not be found, decoded or copied.
	WarnMissingAsset WarningKind = "missing_asset"
	// WarnUnmappedLabel marks a label with no counterpart in the target vocabulary.
	WarnUnmappedLabel WarningKind = "unmapped_label"
)

// Warning is one non-fatal problem, with enough context to locate it.
type Warning struct {
	Kind    WarningKind
	Source  string // File, or file:row, or label the warning refers to.
	Message string
}

func (w Warning) String() string {
	if w.Source == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Source, w.Message)
}

// Report collects the ordered warning log and the summary counts of one
// conversion run. Adapters append to it as they go; the pipeline reads it back
// once the run settles. Methods are safe for concurrent use so that fan-out
// helpers (thumbnails) can share one Report.
type Report struct {
	mu       sync.Mutex
	logger   *slog.Logger
	warnings []Warning
	ingested int
	egested  int
	dropped  int
}

// NewReport returns a Report that mirrors every warning to logger. A nil
// logger collects silently.
func NewReport(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Report{logger: logger}
}

// Warnf records a warning against source and logs it.
func (r *Report) Warnf(kind WarningKind, source, format string, args ...any) {
	w := Warning{Kind: kind, Source: source, Message: fmt.Sprintf(format, args...)}
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()
	r.logger.Warn(w.Message, "kind", string(kind), "source", source)
}

// merge appends pre-collected warnings in their given order. Used to fold
// per-worker buffers back into the run log in submission order.
func (r *Report) merge(warnings []Warning) {
	if len(warnings) == 0 {
		return
	}
	r.mu.Lock()
	r.warnings = append(r.warnings, warnings...)
	r.mu.Unlock()
	for _, w := range warnings {
		r.logger.Warn(w.Message, "kind", string(w.Kind), "source", w.Source)
	}
}

// AddIngested bumps the ingested-image count.
func (r *Report) AddIngested(n int) {
	r.mu.Lock()
	r.ingested += n
	r.mu.Unlock()
}

// AddEgested bumps the egested-image count.
func (r *Report) AddEgested(n int) {
	r.mu.Lock()
	r.egested += n
	r.mu.Unlock()
}

// AddDropped bumps the dropped-detection count. Both degenerate boxes and
// detections discarded by the unmapped-label policy land here.
func (r *Report) AddDropped(n int) {
	r.mu.Lock()
	r.dropped += n
	r.mu.Unlock()
}

// Warnings returns a copy of the warning log in collection order.
func (r *Report) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Counts returns the images-ingested, images-egested and detections-dropped
// totals recorded so far.
func (r *Report) Counts() (ingested, egested, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ingested, r.egested, r.dropped
}
