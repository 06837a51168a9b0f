package vodconvert

// Label reconciliation between a source dataset's vocabulary and the target
// format's expected labels.

import "strings"

// UnmappedLabelPolicy decides what happens to detections whose label has no
// counterpart in the target vocabulary. There is no default: callers choose,
// because silently dropping detections changes the dataset size.
type UnmappedLabelPolicy string

const (
	// DropUnmapped discards detections with unmappable labels.
	DropUnmapped UnmappedLabelPolicy = "drop"
	// KeepUnmapped passes unmappable labels through verbatim.
	KeepUnmapped UnmappedLabelPolicy = "keep"
)

// Valid reports whether p is one of the declared policies.
func (p UnmappedLabelPolicy) Valid() bool {
	return p == DropUnmapped || p == KeepUnmapped
}

// DefaultAliases returns the built-in label bridge between the KITTI devkit
// vocabulary and the lowercase VOC/COCO ones. Case-only differences are
// handled by reconciliation itself and need no entry here.
func DefaultAliases() map[string]string {
	return map[string]string{
		// KITTI devkit names into the lowercase vocabularies.
		"Van":            "car",
		"Tram":           "train",
		"Pedestrian":     "person",
		"Person_sitting": "person",
		"Cyclist":        "bicycle",
		// Lowercase names into the KITTI devkit vocabulary.
		"person":  "Pedestrian",
		"bicycle": "Cyclist",
		"train":   "Tram",
		// Udacity spellings.
		"biker":        "bicycle",
		"trafficLight": "traffic light",
	}
}

// ReconcileLabels maps the labels in data onto the expected vocabulary and
// returns the reconciled records. A nil expected vocabulary accepts
// everything. Labels resolve in three steps: exact match, alias lookup,
// case-insensitive match. Labels that still miss are reported once each (with
// their detection count) and handled per policy.
func ReconcileLabels(data []ImageDetections, expected []string, aliases map[string]string,
	policy UnmappedLabelPolicy, rep *Report) []ImageDetections {

	if expected == nil {
		return data
	}

	expectedSet := make(map[string]struct{}, len(expected))
	lowerIndex := make(map[string]string, len(expected))
	for _, l := range expected {
		expectedSet[l] = struct{}{}
		lowerIndex[strings.ToLower(l)] = l
	}

	resolve := func(label string) (string, bool) {
		if _, ok := expectedSet[label]; ok {
			return label, true
		}
		if a, ok := aliases[label]; ok {
			if _, ok := expectedSet[a]; ok {
				return a, true
			}
		}
		if c, ok := lowerIndex[strings.ToLower(label)]; ok {
			return c, true
		}
		return "", false
	}

	// First pass: decide every distinct label once and count the unmapped.
	renames := make(map[string]string)
	unmappedCount := make(map[string]int)
	var unmappedOrder []string
	for _, id := range data {
		for _, d := range id.Detections {
			if _, decided := renames[d.Label]; decided {
				continue
			}
			if _, miss := unmappedCount[d.Label]; miss {
				unmappedCount[d.Label]++
				continue
			}
			if mapped, ok := resolve(d.Label); ok {
				renames[d.Label] = mapped
			} else {
				unmappedCount[d.Label] = 1
				unmappedOrder = append(unmappedOrder, d.Label)
			}
		}
	}

	for _, label := range unmappedOrder {
		verb := "kept verbatim"
		if policy == DropUnmapped {
			verb = "detections dropped"
		}
		rep.Warnf(WarnUnmappedLabel, label,
			"no counterpart in target vocabulary (%d detections); %s", unmappedCount[label], verb)
	}

	// Second pass: apply renames and the policy.
	out := make([]ImageDetections, len(data))
	for i, id := range data {
		kept := make([]Detection, 0, len(id.Detections))
		for _, d := range id.Detections {
			if mapped, ok := renames[d.Label]; ok {
				d.Label = mapped
				kept = append(kept, d)
				continue
			}
			if policy == DropUnmapped {
				rep.AddDropped(1)
				continue
			}
			kept = append(kept, d)
		}
		out[i] = ImageDetections{Image: id.Image, Detections: kept}
	}

	return out
}
