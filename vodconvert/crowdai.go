package vodconvert

// Udacity CrowdAI specific functionality.
//
// CrowdAI ships a labels.csv whose header names the columns
// (xmin,ymin,xmax,ymax,Frame,Label and optionally Preview URL) with the frame
// images sitting next to it. The format is read-only here; nothing writes it.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FolderNames key honoured by the Udacity adapters.
const udacityLabelsKey = "labels_file"

const udacityDefaultLabels = "labels.csv"

// frameCollector accumulates detections keyed by frame file name, preserving
// first-seen frame order so output follows the label file.
type frameCollector struct {
	order  []string
	byName map[string][]Detection
}

func newFrameCollector() *frameCollector {
	return &frameCollector{byName: make(map[string][]Detection)}
}

func (fc *frameCollector) add(frame string, d Detection) {
	if _, ok := fc.byName[frame]; !ok {
		fc.order = append(fc.order, frame)
	}
	fc.byName[frame] = append(fc.byName[frame], d)
}

// records resolves each frame against dir. Frames whose image cannot be read
// are skipped with a warning; degenerate boxes are dropped.
func (fc *frameCollector) records(ctx context.Context, dir string, rep *Report) ([]ImageDetections, error) {
	data := make([]ImageDetections, 0, len(fc.order))
	for _, frame := range fc.order {
		if err := ctx.Err(); err != nil {
			return data, err
		}
		imagePath := filepath.Join(dir, frame)
		width, height, err := imageDimensions(imagePath)
		if err != nil {
			rep.Warnf(WarnMissingAsset, imagePath, "%v", err)
			continue
		}
		detections, dropped := dropDegenerate(fc.byName[frame])
		rep.AddDropped(dropped)
		id := strings.TrimSuffix(frame, filepath.Ext(frame))
		for i := range detections {
			detections[i].ImageID = id
		}
		data = append(data, ImageDetections{
			Image: ImageRecord{
				ID:       id,
				Path:     imagePath,
				Width:    width,
				Height:   height,
				FileName: frame,
			},
			Detections: detections,
		})
	}
	return data, nil
}

// CrowdAIIngestor reads Udacity CrowdAI datasets into the canonical model.
type CrowdAIIngestor struct{}

// Validate checks the label file.
func (CrowdAIIngestor) Validate(path string, folders FolderNames) (bool, string) {
	labels := filepath.Join(path, folders.get(udacityLabelsKey, udacityDefaultLabels))
	if !fileExists(labels) {
		return false, fmt.Sprintf("expected label file %s", labels)
	}
	return true, ""
}

// Ingest reads the CSV, grouping rows by frame in first-seen order.
func (CrowdAIIngestor) Ingest(ctx context.Context, path string, folders FolderNames,
	rep *Report) (data []ImageDetections, err error) {

	labelsPath := filepath.Join(path, folders.get(udacityLabelsKey, udacityDefaultLabels))
	f, err := os.Open(labelsPath)
	if err != nil {
		return nil, err
	}
	defer closeWithErrCheck(f, &err)

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("unreadable header in %q: %w", labelsPath, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"xmin", "ymin", "xmax", "ymax", "Frame", "Label"} {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("label file %q has no %q column", labelsPath, name)
		}
	}

	frames := newFrameCollector()
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			source := labelsPath
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				source = fmt.Sprintf("%s:%d", labelsPath, pe.Line)
			}
			rep.Warnf(WarnParse, source, "skipping row: %v", err)
			continue
		}
		line, _ := r.FieldPos(0)
		frame, d, err := crowdAIRowDetection(row, columns)
		if err != nil {
			rep.Warnf(WarnParse, fmt.Sprintf("%s:%d", labelsPath, line), "skipping row: %v", err)
			continue
		}
		frames.add(frame, d)
	}
	return frames.records(ctx, path, rep)
}

func crowdAIRowDetection(row []string, columns map[string]int) (string, Detection, error) {
	field := func(name string) (string, error) {
		i := columns[name]
		if i >= len(row) {
			return "", fmt.Errorf("row has %d fields, %q needs field %d", len(row), name, i+1)
		}
		return strings.TrimSpace(row[i]), nil
	}

	var coords [4]float64
	for i, name := range []string{"xmin", "ymin", "xmax", "ymax"} {
		s, err := field(name)
		if err != nil {
			return "", Detection{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", Detection{}, fmt.Errorf("%s value %q: %v", name, s, err)
		}
		coords[i] = v
	}
	frame, err := field("Frame")
	if err != nil {
		return "", Detection{}, err
	}
	if frame == "" {
		return "", Detection{}, fmt.Errorf("empty Frame field")
	}
	label, err := field("Label")
	if err != nil {
		return "", Detection{}, err
	}

	return frame, Detection{
		Label:  label,
		Left:   coords[0],
		Top:    coords[1],
		Right:  coords[2],
		Bottom: coords[3],
		IsBBox: true,
	}, nil
}
