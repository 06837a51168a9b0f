package vodconvert

// Pascal VOC specific functionality.
//
// VOC keeps a year directory (VOC2012 by default) containing Annotations/ with
// one XML file per image, JPEGImages/ with the pixel data and
// ImageSets/Main/<manifest> listing the image ids. Box coordinates are 1-based
// in the XML and shifted to the 0-based canonical convention on ingest.

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FolderNames keys honoured by the VOC adapter.
const (
	vocDirKey      = "voc_dir"
	vocManifestKey = "manifest"
)

const (
	vocDefaultDir      = "VOC2012"
	vocDefaultManifest = "trainval.txt"

	vocAnnotationsDir  = "Annotations"
	vocImageSetsDir    = "ImageSets"
	vocImageSetsMain   = "Main"
	vocJPEGImagesDir   = "JPEGImages"
	vocSegmentationDir = "SegmentationObject"
)

var vocImageExts = []string{"jpg", "png"}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

// vocBox keeps the coordinates as strings so one malformed object skips that
// object alone, not the whole file.
type vocBox struct {
	XMin string `xml:"xmin"`
	YMin string `xml:"ymin"`
	XMax string `xml:"xmax"`
	YMax string `xml:"ymax"`
}

type vocObject struct {
	Name      string `xml:"name"`
	Pose      string `xml:"pose,omitempty"`
	Truncated int    `xml:"truncated"`
	Difficult int    `xml:"difficult"`
	BndBox    vocBox `xml:"bndbox"`
}

type vocAnnotation struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	FileName  string      `xml:"filename"`
	Size      vocSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []vocObject `xml:"object"`
}

// VOCIngestor reads Pascal VOC datasets into the canonical model.
type VOCIngestor struct{}

// Validate checks the year directory substructure and the manifest.
func (VOCIngestor) Validate(path string, folders FolderNames) (bool, string) {
	base := filepath.Join(path, folders.get(vocDirKey, vocDefaultDir))
	for _, sub := range []string{
		vocAnnotationsDir,
		filepath.Join(vocImageSetsDir, vocImageSetsMain),
		vocJPEGImagesDir,
	} {
		if !dirExists(filepath.Join(base, sub)) {
			return false, fmt.Sprintf("expected subdirectory %q within %s", sub, base)
		}
	}
	manifest := filepath.Join(base, vocImageSetsDir, vocImageSetsMain,
		folders.get(vocManifestKey, vocDefaultManifest))
	if !fileExists(manifest) {
		return false, fmt.Sprintf("expected manifest file %s", manifest)
	}
	return true, ""
}

// Ingest emits one record per manifest id, in manifest order.
func (v VOCIngestor) Ingest(ctx context.Context, path string, folders FolderNames,
	rep *Report) ([]ImageDetections, error) {

	base := filepath.Join(path, folders.get(vocDirKey, vocDefaultDir))
	manifest := filepath.Join(base, vocImageSetsDir, vocImageSetsMain,
		folders.get(vocManifestKey, vocDefaultManifest))
	ids, err := readLines(manifest)
	if err != nil {
		return nil, err
	}

	data := make([]ImageDetections, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return data, err
		}
		if record, ok := v.ingestImage(base, strings.TrimSpace(id), rep); ok {
			data = append(data, record)
		}
	}
	return data, nil
}

func (VOCIngestor) ingestImage(base, id string, rep *Report) (ImageDetections, bool) {
	imagesDir := filepath.Join(base, vocJPEGImagesDir)
	ext, ok := findImageExt(imagesDir, id, vocImageExts)
	if !ok {
		rep.Warnf(WarnMissingAsset, id, "no %s image found in %s",
			strings.Join(vocImageExts, " or "), imagesDir)
		return ImageDetections{}, false
	}
	imagePath := filepath.Join(imagesDir, id+"."+ext)
	width, height, err := imageDimensions(imagePath)
	if err != nil {
		rep.Warnf(WarnMissingAsset, imagePath, "%v", err)
		return ImageDetections{}, false
	}

	annotationPath := filepath.Join(base, vocAnnotationsDir, id+".xml")
	raw, err := os.ReadFile(annotationPath)
	if err != nil {
		rep.Warnf(WarnMissingAsset, annotationPath, "%v", err)
		return ImageDetections{}, false
	}
	var ann vocAnnotation
	if err := xml.Unmarshal(raw, &ann); err != nil {
		rep.Warnf(WarnMissingAsset, annotationPath, "unparsable annotation: %v", err)
		return ImageDetections{}, false
	}

	detections := make([]Detection, 0, len(ann.Objects))
	for i, obj := range ann.Objects {
		d, err := vocObjectDetection(obj, id)
		if err != nil {
			rep.Warnf(WarnParse, fmt.Sprintf("%s#object[%d]", annotationPath, i),
				"skipping object: %v", err)
			continue
		}
		detections = append(detections, d)
	}
	detections, dropped := dropDegenerate(detections)
	rep.AddDropped(dropped)

	record := ImageDetections{
		Image: ImageRecord{
			ID:       id,
			Path:     imagePath,
			Width:    width,
			Height:   height,
			FileName: id + "." + ext,
		},
		Detections: detections,
	}
	if ann.Segmented == 1 {
		record.Image.SegmentedPath = filepath.Join(base, vocSegmentationDir, id+".png")
	}
	return record, true
}

// vocObjectDetection converts one XML object, shifting 1-based VOC
// coordinates to the 0-based canonical convention.
func vocObjectDetection(obj vocObject, imageID string) (Detection, error) {
	var coords [4]float64
	for i, s := range []string{obj.BndBox.XMin, obj.BndBox.YMin, obj.BndBox.XMax, obj.BndBox.YMax} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Detection{}, fmt.Errorf("bndbox value %q: %v", s, err)
		}
		coords[i] = v - 1
	}
	return Detection{
		ImageID: imageID,
		Label:   obj.Name,
		Left:    coords[0],
		Top:     coords[1],
		Right:   coords[2],
		Bottom:  coords[3],
		IsBBox:  true,
	}, nil
}

// VOCEgestor writes the canonical model as a Pascal VOC dataset.
type VOCEgestor struct{}

// ExpectedLabels returns the twenty VOC object classes.
func (VOCEgestor) ExpectedLabels() []string {
	return []string{
		"aeroplane", "bicycle", "bird", "boat", "bottle",
		"bus", "car", "cat", "chair", "cow",
		"diningtable", "dog", "horse", "motorbike", "person",
		"pottedplant", "sheep", "sofa", "train", "tvmonitor",
	}
}

// ImagesDir returns the directory image copies land in.
func (VOCEgestor) ImagesDir(root string, folders FolderNames) string {
	return filepath.Join(root, folders.get(vocDirKey, vocDefaultDir), vocJPEGImagesDir)
}

// Egest writes the year directory substructure under root.
func (e VOCEgestor) Egest(ctx context.Context, data []ImageDetections, root string,
	folders FolderNames, rep *Report) error {

	vocDir := folders.get(vocDirKey, vocDefaultDir)
	base := filepath.Join(root, vocDir)
	imagesDir := e.ImagesDir(root, folders)
	annotationsDir := filepath.Join(base, vocAnnotationsDir)
	setsDir := filepath.Join(base, vocImageSetsDir, vocImageSetsMain)
	for _, dir := range []string{imagesDir, annotationsDir, setsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	manifestPath := filepath.Join(setsDir, folders.get(vocManifestKey, vocDefaultManifest))

	for _, record := range data {
		if err := ctx.Err(); err != nil {
			return err
		}

		image := record.Image
		ext := filepath.Ext(image.Path)
		dst := filepath.Join(imagesDir, image.ID+ext)
		if err := copyFile(image.Path, dst); err != nil {
			rep.Warnf(WarnMissingAsset, image.Path, "copy failed, skipping image: %v", err)
			continue
		}

		segmented := 0
		if image.SegmentedPath != "" {
			segDir := filepath.Join(base, vocSegmentationDir)
			if err := os.MkdirAll(segDir, 0o755); err != nil {
				return fmt.Errorf("create directory %q: %w", segDir, err)
			}
			if err := copyFile(image.SegmentedPath, filepath.Join(segDir, image.ID+".png")); err != nil {
				rep.Warnf(WarnMissingAsset, image.SegmentedPath, "segmentation mask copy failed: %v", err)
			} else {
				segmented = 1
			}
		}

		if err := appendLine(manifestPath, image.ID); err != nil {
			return fmt.Errorf("append manifest %q: %w", manifestPath, err)
		}
		ann := vocEncodeAnnotation(vocDir, record, image.ID+ext, segmented)
		if err := writeVOCAnnotation(filepath.Join(annotationsDir, image.ID+".xml"), ann); err != nil {
			return err
		}
		rep.AddEgested(1)
	}
	return nil
}

// vocEncodeAnnotation builds the XML document for one image, shifting the
// canonical 0-based coordinates back to VOC's 1-based convention.
func vocEncodeAnnotation(folder string, record ImageDetections, fileName string, segmented int) vocAnnotation {
	ann := vocAnnotation{
		Folder:    folder,
		FileName:  fileName,
		Size:      vocSize{Width: record.Image.Width, Height: record.Image.Height, Depth: 3},
		Segmented: segmented,
		Objects:   make([]vocObject, 0, len(record.Detections)),
	}
	for _, d := range record.Detections {
		ann.Objects = append(ann.Objects, vocObject{
			Name:      d.Label,
			Truncated: 0,
			Difficult: 0,
			BndBox: vocBox{
				XMin: ftoa(d.Left + 1),
				YMin: ftoa(d.Top + 1),
				XMax: ftoa(d.Right + 1),
				YMax: ftoa(d.Bottom + 1),
			},
		})
	}
	return ann
}

func writeVOCAnnotation(path string, ann vocAnnotation) error {
	enc, err := xml.MarshalIndent(ann, "", "  ")
	if err != nil {
		return fmt.Errorf("encode annotation for %q: %w", path, err)
	}
	if err := os.WriteFile(path, append(enc, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write file %q: %w", path, err)
	}
	return nil
}
