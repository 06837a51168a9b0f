package vodconvert

// COCO specific functionality.
//
// COCO keeps the whole dataset in one JSON document with images, annotations
// and categories arrays, next to an images directory holding the pixel data.
// Boxes are [x, y, width, height]; polygons, crowd flags and keypoints ride
// along on the annotation. The isbbox field is an annotation-tool extension
// marking geometry that is a plain rectangle.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FolderNames keys honoured by the COCO adapter.
const (
	cocoAnnotationsKey = "annotations_file"
	cocoImagesKey      = "images_dir"
)

const (
	cocoDefaultAnnotations = "annotations.json"
	cocoDefaultImagesDir   = "images"
)

// cocoFlag is a bool that tolerates both encodings found in the wild:
// 0/1 integers (the interchange standard) and true/false (annotation tools).
// It always marshals as 0/1.
type cocoFlag bool

func (f *cocoFlag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "true":
		*f = true
	case "false", "null", "":
		*f = false
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flag value %s: %v", s, err)
		}
		*f = v != 0
	}
	return nil
}

func (f cocoFlag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

type cocoImage struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID           int64           `json:"id"`
	ImageID      int64           `json:"image_id"`
	CategoryID   int64           `json:"category_id"`
	BBox         []float64       `json:"bbox"`
	Area         float64         `json:"area"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
	IsCrowd      cocoFlag        `json:"iscrowd"`
	IsBBox       *bool           `json:"isbbox,omitempty"`
	Keypoints    []float64       `json:"keypoints,omitempty"`
	NumKeypoints int             `json:"num_keypoints,omitempty"`
}

type cocoCategory struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

type cocoFile struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

// COCOIngestor reads COCO datasets into the canonical model.
type COCOIngestor struct{}

// Validate checks the annotations file and the images directory.
func (COCOIngestor) Validate(path string, folders FolderNames) (bool, string) {
	annotations := filepath.Join(path, folders.get(cocoAnnotationsKey, cocoDefaultAnnotations))
	if !fileExists(annotations) {
		return false, fmt.Sprintf("expected annotations file %s", annotations)
	}
	imagesDir := filepath.Join(path, folders.get(cocoImagesKey, cocoDefaultImagesDir))
	if !dirExists(imagesDir) {
		return false, fmt.Sprintf("expected images directory %s", imagesDir)
	}
	return true, ""
}

// Ingest emits records in the order of the document's images array, each with
// its annotations in document order.
func (COCOIngestor) Ingest(ctx context.Context, path string, folders FolderNames,
	rep *Report) ([]ImageDetections, error) {

	annotationsPath := filepath.Join(path, folders.get(cocoAnnotationsKey, cocoDefaultAnnotations))
	raw, err := os.ReadFile(annotationsPath)
	if err != nil {
		return nil, err
	}
	var doc cocoFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unparsable annotations file %q: %w", annotationsPath, err)
	}

	categories := make(map[int64]string, len(doc.Categories))
	for _, c := range doc.Categories {
		categories[c.ID] = c.Name
	}

	imagesDir := filepath.Join(path, folders.get(cocoImagesKey, cocoDefaultImagesDir))
	data := make([]ImageDetections, 0, len(doc.Images))
	recordIndex := make(map[int64]int, len(doc.Images))
	for _, img := range doc.Images {
		if err := ctx.Err(); err != nil {
			return data, err
		}
		imagePath := filepath.Join(imagesDir, img.FileName)
		width, height, err := imageDimensions(imagePath)
		if err != nil {
			rep.Warnf(WarnMissingAsset, imagePath, "%v", err)
			continue
		}
		recordIndex[img.ID] = len(data)
		data = append(data, ImageDetections{Image: ImageRecord{
			ID:       strconv.FormatInt(img.ID, 10),
			Path:     imagePath,
			Width:    width,
			Height:   height,
			FileName: img.FileName,
		}})
	}

	for _, ann := range doc.Annotations {
		source := fmt.Sprintf("%s#annotation[%d]", annotationsPath, ann.ID)
		idx, ok := recordIndex[ann.ImageID]
		if !ok {
			rep.Warnf(WarnParse, source, "skipping annotation: unknown image_id %d", ann.ImageID)
			continue
		}
		label, ok := categories[ann.CategoryID]
		if !ok {
			rep.Warnf(WarnParse, source, "skipping annotation: unknown category_id %d", ann.CategoryID)
			continue
		}
		if len(ann.BBox) != 4 {
			rep.Warnf(WarnParse, source, "skipping annotation: bbox has %d values, want 4", len(ann.BBox))
			continue
		}
		d := Detection{
			ImageID: data[idx].Image.ID,
			Label:   label,
			Left:    ann.BBox[0],
			Top:     ann.BBox[1],
			Right:   ann.BBox[0] + ann.BBox[2],
			Bottom:  ann.BBox[1] + ann.BBox[3],
			Area:    ann.Area,
			IsCrowd: bool(ann.IsCrowd),
		}
		if len(ann.Segmentation) > 0 {
			var polygons [][]float64
			if err := json.Unmarshal(ann.Segmentation, &polygons); err != nil {
				rep.Warnf(WarnParse, source, "unsupported segmentation encoding, keeping box only")
			} else {
				d.Segmentation = polygons
			}
		}
		if ann.IsBBox != nil {
			d.IsBBox = *ann.IsBBox
		} else {
			d.IsBBox = len(d.Segmentation) == 0
		}
		if n := len(ann.Keypoints); n > 0 {
			if n%3 != 0 {
				rep.Warnf(WarnParse, source, "discarding keypoints: %d values is not a multiple of 3", n)
			} else {
				d.Keypoints = make([]Keypoint, 0, n/3)
				for i := 0; i < n; i += 3 {
					d.Keypoints = append(d.Keypoints, Keypoint{
						X:          ann.Keypoints[i],
						Y:          ann.Keypoints[i+1],
						Visibility: int(ann.Keypoints[i+2]),
					})
				}
			}
		}
		data[idx].Detections = append(data[idx].Detections, d)
	}

	for i := range data {
		kept, dropped := dropDegenerate(data[i].Detections)
		data[i].Detections = kept
		rep.AddDropped(dropped)
	}
	return data, nil
}

// COCOEgestor writes the canonical model as a COCO dataset.
type COCOEgestor struct{}

// ExpectedLabels returns nil: COCO category sets are dataset-defined, so the
// egestor accepts every label and derives the categories from the data.
func (COCOEgestor) ExpectedLabels() []string { return nil }

// ImagesDir returns the directory image copies land in.
func (COCOEgestor) ImagesDir(root string, folders FolderNames) string {
	return filepath.Join(root, folders.get(cocoImagesKey, cocoDefaultImagesDir))
}

// Egest copies the images and writes the single annotations document. Only
// successfully copied images appear in it.
func (e COCOEgestor) Egest(ctx context.Context, data []ImageDetections, root string,
	folders FolderNames, rep *Report) error {

	imagesDir := e.ImagesDir(root, folders)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", imagesDir, err)
	}

	doc := cocoFile{
		Images:      make([]cocoImage, 0, len(data)),
		Annotations: []cocoAnnotation{},
		Categories:  cocoCategories(data),
	}
	categoryIDs := make(map[string]int64, len(doc.Categories))
	for _, c := range doc.Categories {
		categoryIDs[c.Name] = c.ID
	}

	var annotationID int64
	for _, record := range data {
		if err := ctx.Err(); err != nil {
			return err
		}

		image := record.Image
		fileName := image.FileName
		if fileName == "" {
			fileName = image.ID + filepath.Ext(image.Path)
		}
		if err := copyFile(image.Path, filepath.Join(imagesDir, fileName)); err != nil {
			rep.Warnf(WarnMissingAsset, image.Path, "copy failed, skipping image: %v", err)
			continue
		}

		imageID := int64(len(doc.Images) + 1)
		doc.Images = append(doc.Images, cocoImage{
			ID:       imageID,
			FileName: fileName,
			Width:    image.Width,
			Height:   image.Height,
		})
		for _, d := range record.Detections {
			annotationID++
			doc.Annotations = append(doc.Annotations,
				cocoEncodeAnnotation(d, annotationID, imageID, categoryIDs[d.Label]))
		}
		rep.AddEgested(1)
	}

	enc, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}
	annotationsPath := filepath.Join(root, folders.get(cocoAnnotationsKey, cocoDefaultAnnotations))
	if err := os.WriteFile(annotationsPath, append(enc, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write file %q: %w", annotationsPath, err)
	}
	return nil
}

// cocoCategories assigns ids 1..n to the distinct labels in sorted order.
func cocoCategories(data []ImageDetections) []cocoCategory {
	labels := collectLabels(data)
	categories := make([]cocoCategory, 0, len(labels))
	for i, label := range labels {
		categories = append(categories, cocoCategory{ID: int64(i + 1), Name: label})
	}
	return categories
}

func cocoEncodeAnnotation(d Detection, id, imageID, categoryID int64) cocoAnnotation {
	isBBox := d.IsBBox
	ann := cocoAnnotation{
		ID:         id,
		ImageID:    imageID,
		CategoryID: categoryID,
		BBox:       []float64{d.Left, d.Top, d.Width(), d.Height()},
		Area:       d.EffectiveArea(),
		IsCrowd:    cocoFlag(d.IsCrowd),
		IsBBox:     &isBBox,
	}
	polygons := d.Segmentation
	if len(polygons) == 0 {
		// Box-only sources still get a rectangle polygon so polygon-based
		// consumers can use the file.
		polygons = [][]float64{{d.Left, d.Top, d.Right, d.Top, d.Right, d.Bottom, d.Left, d.Bottom}}
	}
	if enc, err := json.Marshal(polygons); err == nil {
		ann.Segmentation = enc
	}
	if len(d.Keypoints) > 0 {
		ann.Keypoints = make([]float64, 0, 3*len(d.Keypoints))
		for _, kp := range d.Keypoints {
			ann.Keypoints = append(ann.Keypoints, kp.X, kp.Y, float64(kp.Visibility))
			if kp.Visibility > 0 {
				ann.NumKeypoints++
			}
		}
	}
	return ann
}
