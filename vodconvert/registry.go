package vodconvert

// Format registry: the only place format identifiers are resolved.

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedFormat is returned when a format identifier is unknown or the
// format lacks the requested direction. It is distinct from data-validation
// failures: nothing has been read or written when it occurs.
var ErrUnsupportedFormat = errors.New("format not supported")

// Adapter is the reader/writer pair registered for one format. Either half may
// be nil for formats that only support one direction.
type Adapter struct {
	Ingestor Ingestor
	Egestor  Egestor
}

// FormatInfo describes one registered format for listings.
type FormatInfo struct {
	Name      string
	CanIngest bool
	CanEgest  bool
}

// Registry maps format identifiers to their adapter pairs. It is read-only
// after construction.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry with all built-in formats registered:
// kitti, voc and coco in both directions, crowdai and autti as ingest-only,
// tfrecord as egest-only.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{
		FormatKITTI:    {Ingestor: KITTIIngestor{}, Egestor: KITTIEgestor{}},
		FormatVOC:      {Ingestor: VOCIngestor{}, Egestor: VOCEgestor{}},
		FormatCOCO:     {Ingestor: COCOIngestor{}, Egestor: COCOEgestor{}},
		FormatCrowdAI:  {Ingestor: CrowdAIIngestor{}},
		FormatAUTTI:    {Ingestor: AUTTIIngestor{}},
		FormatTFRecord: {Egestor: TFRecordEgestor{}},
	}}
}

// The built-in format identifiers.
const (
	FormatKITTI    = "kitti"
	FormatVOC      = "voc"
	FormatCOCO     = "coco"
	FormatCrowdAI  = "crowdai"
	FormatAUTTI    = "autti"
	FormatTFRecord = "tfrecord"
)

// Ingestor resolves the reader for format, or ErrUnsupportedFormat.
func (r *Registry) Ingestor(format string) (Ingestor, error) {
	a, ok := r.adapters[format]
	if !ok || a.Ingestor == nil {
		return nil, fmt.Errorf("%w: %q cannot be read", ErrUnsupportedFormat, format)
	}
	return a.Ingestor, nil
}

// Egestor resolves the writer for format, or ErrUnsupportedFormat.
func (r *Registry) Egestor(format string) (Egestor, error) {
	a, ok := r.adapters[format]
	if !ok || a.Egestor == nil {
		return nil, fmt.Errorf("%w: %q cannot be written", ErrUnsupportedFormat, format)
	}
	return a.Egestor, nil
}

// Formats lists the registered formats sorted by name.
func (r *Registry) Formats() []FormatInfo {
	infos := make([]FormatInfo, 0, len(r.adapters))
	for name, a := range r.adapters {
		infos = append(infos, FormatInfo{
			Name:      name,
			CanIngest: a.Ingestor != nil,
			CanEgest:  a.Egestor != nil,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
