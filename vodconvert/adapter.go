package vodconvert

// The format adapter contracts.

import "context"

// FolderNames carries per-format overrides for directory and file names inside
// a dataset root (for example the VOC year directory or the manifest name).
// Adapters document the keys they honour; unknown keys are ignored.
type FolderNames map[string]string

// get returns the override for key, or fallback when the key is absent or empty.
func (f FolderNames) get(key, fallback string) string {
	if v, ok := f[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Ingestor reads a dataset in one on-disk format into the canonical model.
//
// Implementations are stateless; everything they need arrives as arguments, so
// a single value can serve concurrent conversions of different datasets.
type Ingestor interface {
	// Validate checks that path holds the directory substructure the format
	// requires. It is side-effect-free and must not fail on ordinary missing
	// files: it reports (false, reason) instead.
	Validate(path string, folders FolderNames) (bool, string)

	// Ingest reads every image the format's manifest references, in manifest
	// order, emitting one ImageDetections per image. Malformed rows and
	// missing images are reported to rep and skipped; they never abort the
	// run. The returned error is reserved for cancellation and for structure
	// that disappeared after Validate passed.
	Ingest(ctx context.Context, path string, folders FolderNames, rep *Report) ([]ImageDetections, error)
}

// Egestor writes the canonical model into one on-disk format.
type Egestor interface {
	// ExpectedLabels is the fixed vocabulary this format's consumers expect.
	// A nil result means the format accepts any label.
	ExpectedLabels() []string

	// Egest materialises data under root: creates the format's substructure,
	// copies each referenced image preserving its extension, appends ids to
	// the manifest only after a successful copy, and writes the per-image
	// annotation files. Copy failures are reported to rep and exclude the
	// image entirely.
	Egest(ctx context.Context, data []ImageDetections, root string, folders FolderNames, rep *Report) error
}

// imageDirLayout is implemented by egestors that place copied images in a
// directory; thumbnail generation uses it to find them.
type imageDirLayout interface {
	ImagesDir(root string, folders FolderNames) string
}
