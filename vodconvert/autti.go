package vodconvert

// Udacity AUTTI specific functionality.
//
// AUTTI is the second Udacity release: a space-delimited labels.csv with rows
// of the form
//
//	frame xmin ymin xmax ymax occluded "label" ["attribute"]
//
// and the frame images next to it. The occluded flag and the trailing
// attribute (traffic light state) are not carried over. Read-only, like
// CrowdAI.

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// AUTTIIngestor reads Udacity AUTTI datasets into the canonical model.
type AUTTIIngestor struct{}

// Validate checks the label file.
func (AUTTIIngestor) Validate(path string, folders FolderNames) (bool, string) {
	labels := filepath.Join(path, folders.get(udacityLabelsKey, udacityDefaultLabels))
	if !fileExists(labels) {
		return false, fmt.Sprintf("expected label file %s", labels)
	}
	return true, ""
}

// Ingest reads the rows, grouping them by frame in first-seen order.
func (AUTTIIngestor) Ingest(ctx context.Context, path string, folders FolderNames,
	rep *Report) ([]ImageDetections, error) {

	labelsPath := filepath.Join(path, folders.get(udacityLabelsKey, udacityDefaultLabels))
	lines, err := readLines(labelsPath)
	if err != nil {
		return nil, err
	}

	frames := newFrameCollector()
	for i, line := range lines {
		frame, d, err := auttiRowDetection(line)
		if err != nil {
			rep.Warnf(WarnParse, fmt.Sprintf("%s:%d", labelsPath, i+1), "skipping row: %v", err)
			continue
		}
		frames.add(frame, d)
	}
	return frames.records(ctx, path, rep)
}

func auttiRowDetection(line string) (string, Detection, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 7 {
		return "", Detection{}, fmt.Errorf("insufficient fields in %q", line)
	}

	var coords [4]float64
	for i := 1; i < 5; i++ {
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return "", Detection{}, fmt.Errorf("unexpected value in %q: %v", line, err)
		}
		coords[i-1] = v
	}
	label := strings.Trim(tokens[6], `"`)
	if label == "" {
		return "", Detection{}, fmt.Errorf("empty label in %q", line)
	}

	return tokens[0], Detection{
		Label:  label,
		Left:   coords[0],
		Top:    coords[1],
		Right:  coords[2],
		Bottom: coords[3],
		IsBBox: true,
	}, nil
}
