package vodconvert

// KITTI specific functionality.
//
// Per the devkit, a label row holds 15 space separated values (16 with the
// optional score): type, truncated, occluded, alpha, four bbox coordinates
// (left, top, right, bottom; 0-based pixels), three dimensions, three
// location values and rotation_y. Ingestion only consumes the type and the
// bbox; egestion writes fixed placeholders for everything else.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FolderNames keys honoured by the KITTI adapter.
const (
	kittiImagesKey   = "images_dir"
	kittiLabelsKey   = "labels_dir"
	kittiManifestKey = "manifest"
)

const (
	kittiImagesDir = "images"
	kittiLabelsDir = "labels"
	kittiManifest  = "train.txt"
)

// Image extensions are probed in this order.
var kittiImageExts = []string{"png", "jpg"}

// Egestion placeholders: non-truncated, fully visible, everything 3D unset.
const (
	kittiDefaultTruncated = "0.0"
	kittiDefaultOccluded  = "0"
	kittiUnsetField       = "-1"
)

// KITTIIngestor reads KITTI datasets into the canonical model.
type KITTIIngestor struct{}

// Validate checks for the images and labels subdirectories and the manifest.
func (KITTIIngestor) Validate(path string, folders FolderNames) (bool, string) {
	for _, sub := range []string{
		folders.get(kittiImagesKey, kittiImagesDir),
		folders.get(kittiLabelsKey, kittiLabelsDir),
	} {
		if !dirExists(filepath.Join(path, sub)) {
			return false, fmt.Sprintf("expected subdirectory %q within %s", sub, path)
		}
	}
	manifest := folders.get(kittiManifestKey, kittiManifest)
	if !fileExists(filepath.Join(path, manifest)) {
		return false, fmt.Sprintf("expected %s file within %s", manifest, path)
	}
	return true, ""
}

// Ingest emits one record per manifest id, in manifest order.
func (k KITTIIngestor) Ingest(ctx context.Context, path string, folders FolderNames,
	rep *Report) ([]ImageDetections, error) {

	ids, err := readLines(filepath.Join(path, folders.get(kittiManifestKey, kittiManifest)))
	if err != nil {
		return nil, err
	}

	data := make([]ImageDetections, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return data, err
		}
		if record, ok := k.ingestImage(path, strings.TrimSpace(id), folders, rep); ok {
			data = append(data, record)
		}
	}
	return data, nil
}

// ingestImage assembles the record for a single manifest id. Any per-image
// failure is reported and the id skipped.
func (KITTIIngestor) ingestImage(root, id string, folders FolderNames,
	rep *Report) (ImageDetections, bool) {

	imagesDir := filepath.Join(root, folders.get(kittiImagesKey, kittiImagesDir))
	ext, ok := findImageExt(imagesDir, id, kittiImageExts)
	if !ok {
		rep.Warnf(WarnMissingAsset, id, "no %s image found in %s",
			strings.Join(kittiImageExts, " or "), imagesDir)
		return ImageDetections{}, false
	}

	imagePath := filepath.Join(imagesDir, id+"."+ext)
	width, height, err := imageDimensions(imagePath)
	if err != nil {
		rep.Warnf(WarnMissingAsset, imagePath, "%v", err)
		return ImageDetections{}, false
	}

	labelsPath := filepath.Join(root, folders.get(kittiLabelsKey, kittiLabelsDir), id+".txt")
	detections, err := parseKITTILabels(labelsPath, id, rep)
	if err != nil {
		rep.Warnf(WarnMissingAsset, labelsPath, "%v", err)
		return ImageDetections{}, false
	}
	detections, dropped := dropDegenerate(detections)
	rep.AddDropped(dropped)

	return ImageDetections{
		Image: ImageRecord{
			ID:       id,
			Path:     imagePath,
			Width:    width,
			Height:   height,
			FileName: id + "." + ext,
		},
		Detections: detections,
	}, true
}

// parseKITTILabels parses one per-image label file. Rows that fail to parse
// are reported and skipped; parsing continues with the next row.
func parseKITTILabels(path, imageID string, rep *Report) ([]Detection, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	detections := make([]Detection, 0, len(lines))
	for i, line := range lines {
		d, err := parseKITTIRow(line)
		if err != nil {
			rep.Warnf(WarnParse, fmt.Sprintf("%s:%d", path, i+1), "skipping row: %v", err)
			continue
		}
		d.ImageID = imageID
		detections = append(detections, d)
	}
	return detections, nil
}

// parseKITTIRow parses the values for a single annotation.
func parseKITTIRow(line string) (Detection, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 8 {
		return Detection{}, fmt.Errorf("insufficient fields in %q", line)
	}

	var coords [4]float64
	for i := 4; i < 8; i++ {
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return Detection{}, fmt.Errorf("unexpected value in %q: %v", line, err)
		}
		coords[i-4] = v
	}

	return Detection{
		Label:  tokens[0],
		Left:   coords[0],
		Top:    coords[1],
		Right:  coords[2],
		Bottom: coords[3],
		IsBBox: true,
	}, nil
}

// KITTIEgestor writes the canonical model as a KITTI dataset.
type KITTIEgestor struct{}

// ExpectedLabels returns the KITTI devkit vocabulary.
func (KITTIEgestor) ExpectedLabels() []string {
	return []string{
		"Car", "Van", "Truck", "Pedestrian", "Person_sitting",
		"Cyclist", "Tram", "Misc", "DontCare",
	}
}

// ImagesDir returns the directory image copies land in.
func (KITTIEgestor) ImagesDir(root string, folders FolderNames) string {
	return filepath.Join(root, folders.get(kittiImagesKey, kittiImagesDir))
}

// Egest writes images/, labels/ and the manifest under root. An image whose
// copy fails is excluded entirely: no manifest line, no labels file.
func (e KITTIEgestor) Egest(ctx context.Context, data []ImageDetections, root string,
	folders FolderNames, rep *Report) error {

	imagesDir := e.ImagesDir(root, folders)
	labelsDir := filepath.Join(root, folders.get(kittiLabelsKey, kittiLabelsDir))
	for _, dir := range []string{imagesDir, labelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	manifestPath := filepath.Join(root, folders.get(kittiManifestKey, kittiManifest))

	for _, record := range data {
		if err := ctx.Err(); err != nil {
			return err
		}

		image := record.Image
		dst := filepath.Join(imagesDir, image.ID+filepath.Ext(image.Path))
		if err := copyFile(image.Path, dst); err != nil {
			rep.Warnf(WarnMissingAsset, image.Path, "copy failed, skipping image: %v", err)
			continue
		}

		if err := appendLine(manifestPath, image.ID); err != nil {
			return fmt.Errorf("append manifest %q: %w", manifestPath, err)
		}
		if err := writeKITTILabels(filepath.Join(labelsDir, image.ID+".txt"), record.Detections); err != nil {
			return err
		}
		rep.AddEgested(1)
	}
	return nil
}

// writeKITTILabels writes one 15 field row per detection.
func writeKITTILabels(path string, detections []Detection) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create labels file %q: %w", path, err)
	}
	defer closeWithErrCheck(file, &err)

	for _, d := range detections {
		row := []string{
			d.Label,
			kittiDefaultTruncated,
			kittiDefaultOccluded,
			kittiUnsetField,
			ftoa(d.Left), ftoa(d.Top), ftoa(d.Right), ftoa(d.Bottom),
			kittiUnsetField, kittiUnsetField, kittiUnsetField,
			kittiUnsetField, kittiUnsetField, kittiUnsetField,
			kittiUnsetField,
		}
		if _, err := fmt.Fprintln(file, strings.Join(row, " ")); err != nil {
			return fmt.Errorf("write labels file %q: %w", path, err)
		}
	}
	return nil
}

// ftoa formats a coordinate with the shortest exact representation, keeping
// identity conversions bit-stable.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
