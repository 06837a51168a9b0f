package vodconvert

// The canonical intermediate representation that every conversion passes through.

import "sort"

// ImageRecord describes one source image. Width and Height are the decoded pixel
// dimensions; coordinates in Detections are absolute pixels against them.
type ImageRecord struct {
	ID            string // Stable identifier, unique within the dataset.
	Path          string // Resolvable path to the pixel data.
	SegmentedPath string // Optional full-image segmentation mask; empty when absent.
	Width         int
	Height        int
	FileName      string // Original file name, kept for round-trip fidelity.
}

// Keypoint is a single landmark of a detection. Visibility follows COCO
// semantics: 0 not labelled, 1 labelled but not visible, 2 visible.
type Keypoint struct {
	X          float64
	Y          float64
	Visibility int
}

// Detection is one annotated object instance within an image.
//
// Coordinates are 0-based pixels from the top-left corner with Left < Right and
// Top < Bottom. Ingestors normalise whatever convention their format uses into
// this one; a detection violating it is degenerate and never leaves ingestion.
type Detection struct {
	ImageID      string // Back-reference to the owning ImageRecord ID.
	Label        string // Raw class name as it appears in the source format.
	Left         float64
	Top          float64
	Right        float64
	Bottom       float64
	Area         float64     // Zero means unset; see EffectiveArea.
	Segmentation [][]float64 // Polygons as flat x,y sequences; nil for box-only sources.
	IsBBox       bool        // True when the source geometry is a plain axis-aligned box.
	IsCrowd      bool        // True for indistinguishable-group instances.
	Keypoints    []Keypoint
}

// Width is the box width in pixels.
func (d Detection) Width() float64 {
	return d.Right - d.Left
}

// Height is the box height in pixels.
func (d Detection) Height() float64 {
	return d.Bottom - d.Top
}

// Degenerate reports whether the box has zero or negative extent.
func (d Detection) Degenerate() bool {
	return d.Left >= d.Right || d.Top >= d.Bottom
}

// EffectiveArea returns Area when set, otherwise the polygon area when a
// segmentation is present, otherwise the box area.
func (d Detection) EffectiveArea() float64 {
	if d.Area > 0 {
		return d.Area
	}
	if len(d.Segmentation) > 0 {
		if a := polygonArea(d.Segmentation); a > 0 {
			return a
		}
	}
	return d.Width() * d.Height()
}

// polygonArea sums the shoelace areas of the polygons.
func polygonArea(polygons [][]float64) float64 {
	var total float64
	for _, poly := range polygons {
		n := len(poly) / 2
		if n < 3 {
			continue
		}
		var acc float64
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			acc += poly[2*i]*poly[2*j+1] - poly[2*j]*poly[2*i+1]
		}
		if acc < 0 {
			acc = -acc
		}
		total += acc / 2
	}
	return total
}

// ImageDetections is the canonical unit exchanged between an Ingestor and an
// Egestor: one image plus its detections in source order.
type ImageDetections struct {
	Image      ImageRecord
	Detections []Detection
}

// dropDegenerate removes degenerate detections in place and returns the kept
// slice along with the number removed.
func dropDegenerate(detections []Detection) ([]Detection, int) {
	kept := detections[:0]
	for _, d := range detections {
		if d.Degenerate() {
			continue
		}
		kept = append(kept, d)
	}
	return kept, len(detections) - len(kept)
}

// collectLabels returns the distinct detection labels across data, sorted for
// deterministic reporting.
func collectLabels(data []ImageDetections) []string {
	seen := make(map[string]struct{})
	for _, id := range data {
		for _, d := range id.Detections {
			seen[d.Label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
