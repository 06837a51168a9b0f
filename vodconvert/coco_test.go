package vodconvert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const cocoTestAnnotations = `{
  "images": [
    {"id": 7, "file_name": "frame_a.png", "width": 120, "height": 90},
    {"id": 9, "file_name": "frame_b.png", "width": 60, "height": 60}
  ],
  "annotations": [
    {"id": 1, "image_id": 7, "category_id": 1, "bbox": [10, 20, 30, 40], "area": 1200, "iscrowd": 0},
    {"id": 2, "image_id": 7, "category_id": 2, "bbox": [5, 5, 20, 10], "iscrowd": false, "isbbox": true},
    {"id": 3, "image_id": 9, "category_id": 1, "bbox": [0, 0, 25, 25],
     "segmentation": [[0, 0, 25, 0, 25, 25, 0, 25]], "iscrowd": 1,
     "keypoints": [4, 4, 2, 9, 9, 1, 0, 0, 0]}
  ],
  "categories": [
    {"id": 1, "name": "car"},
    {"id": 2, "name": "person"}
  ]
}
`

// newCOCODataset builds a two-image COCO dataset and returns its root.
func newCOCODataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "frame_a.png"), 120, 90)
	writePNG(t, filepath.Join(root, "images", "frame_b.png"), 60, 60)
	writeTestFile(t, filepath.Join(root, "annotations.json"), cocoTestAnnotations)
	return root
}

func TestCOCOFlagDecoding(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"0", false},
		{"1", true},
		{"2", true},
		{"true", true},
		{"false", false},
		{"null", false},
	}
	for _, c := range cases {
		var f cocoFlag
		require.NoError(t, f.UnmarshalJSON([]byte(c.raw)), c.raw)
		require.Equal(t, c.want, bool(f), c.raw)
	}

	var f cocoFlag
	require.Error(t, f.UnmarshalJSON([]byte(`"maybe"`)))
}

func TestCOCOFlagAlwaysEncodesNumeric(t *testing.T) {
	enc, err := json.Marshal(cocoFlag(true))
	require.NoError(t, err)
	require.Equal(t, "1", string(enc))
	enc, err = json.Marshal(cocoFlag(false))
	require.NoError(t, err)
	require.Equal(t, "0", string(enc))
}

func TestCOCOValidate(t *testing.T) {
	root := newCOCODataset(t)
	ok, reason := COCOIngestor{}.Validate(root, nil)
	require.True(t, ok, reason)

	require.NoError(t, os.Remove(filepath.Join(root, "annotations.json")))
	ok, reason = COCOIngestor{}.Validate(root, nil)
	require.False(t, ok)
	require.Contains(t, reason, "annotations.json")
}

func TestCOCOIngest(t *testing.T) {
	root := newCOCODataset(t)
	rep := NewReport(nil)

	data, err := COCOIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data, 2)
	require.Empty(t, rep.Warnings())

	first := data[0]
	require.Equal(t, "7", first.Image.ID)
	require.Equal(t, "frame_a.png", first.Image.FileName)
	require.Equal(t, 120, first.Image.Width)
	require.Len(t, first.Detections, 2)

	car := first.Detections[0]
	require.Equal(t, "car", car.Label)
	require.Equal(t, 10.0, car.Left)
	require.Equal(t, 20.0, car.Top)
	require.Equal(t, 40.0, car.Right)
	require.Equal(t, 60.0, car.Bottom)
	require.Equal(t, 1200.0, car.Area)
	require.False(t, car.IsCrowd)
	require.True(t, car.IsBBox) // no segmentation and no explicit flag

	person := first.Detections[1]
	require.True(t, person.IsBBox) // explicit flag

	second := data[1]
	require.Len(t, second.Detections, 1)
	crowd := second.Detections[0]
	require.True(t, crowd.IsCrowd)
	require.False(t, crowd.IsBBox)
	require.Equal(t, [][]float64{{0, 0, 25, 0, 25, 25, 0, 25}}, crowd.Segmentation)
	require.Equal(t, []Keypoint{
		{X: 4, Y: 4, Visibility: 2},
		{X: 9, Y: 9, Visibility: 1},
		{X: 0, Y: 0, Visibility: 0},
	}, crowd.Keypoints)
}

func TestCOCOIngestSkipsBrokenAnnotations(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "a.png"), 40, 40)
	writeTestFile(t, filepath.Join(root, "annotations.json"), `{
  "images": [{"id": 1, "file_name": "a.png", "width": 40, "height": 40}],
  "annotations": [
    {"id": 1, "image_id": 1, "category_id": 1, "bbox": [1, 1, 5, 5], "iscrowd": 0},
    {"id": 2, "image_id": 99, "category_id": 1, "bbox": [1, 1, 5, 5], "iscrowd": 0},
    {"id": 3, "image_id": 1, "category_id": 99, "bbox": [1, 1, 5, 5], "iscrowd": 0},
    {"id": 4, "image_id": 1, "category_id": 1, "bbox": [1, 1, 5], "iscrowd": 0}
  ],
  "categories": [{"id": 1, "name": "car"}]
}
`)

	rep := NewReport(nil)
	data, err := COCOIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data, 1)
	require.Len(t, data[0].Detections, 1)

	warnings := rep.Warnings()
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0].Message, "unknown image_id")
	require.Contains(t, warnings[1].Message, "unknown category_id")
	require.Contains(t, warnings[2].Message, "bbox has 3 values")
}

func TestCOCOIngestKeepsBoxOnRLESegmentation(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "a.png"), 40, 40)
	writeTestFile(t, filepath.Join(root, "annotations.json"), `{
  "images": [{"id": 1, "file_name": "a.png", "width": 40, "height": 40}],
  "annotations": [
    {"id": 1, "image_id": 1, "category_id": 1, "bbox": [1, 1, 5, 5],
     "segmentation": {"counts": [6, 1, 40], "size": [40, 40]}, "iscrowd": 1}
  ],
  "categories": [{"id": 1, "name": "car"}]
}
`)

	rep := NewReport(nil)
	data, err := COCOIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data[0].Detections, 1)

	d := data[0].Detections[0]
	require.Nil(t, d.Segmentation)
	require.Equal(t, 6.0, d.Right)
	require.True(t, d.IsBBox) // falls back to box-only

	warnings := rep.Warnings()
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "unsupported segmentation encoding")
}

func TestCOCOIngestUnparsableDocumentFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	writeTestFile(t, filepath.Join(root, "annotations.json"), "{ not json")

	_, err := COCOIngestor{}.Ingest(context.Background(), root, nil, NewReport(nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unparsable annotations file")
}

func TestCOCOEgest(t *testing.T) {
	src := newKITTIDataset(t)
	data, err := KITTIIngestor{}.Ingest(context.Background(), src, nil, NewReport(nil))
	require.NoError(t, err)

	dst := t.TempDir()
	rep := NewReport(nil)
	require.NoError(t, COCOEgestor{}.Egest(context.Background(), data, dst, nil, rep))

	require.FileExists(t, filepath.Join(dst, "images", "000001.png"))
	require.FileExists(t, filepath.Join(dst, "images", "000002.png"))

	raw, err := os.ReadFile(filepath.Join(dst, "annotations.json"))
	require.NoError(t, err)
	var doc cocoFile
	require.NoError(t, json.Unmarshal(raw, &doc))

	require.Len(t, doc.Images, 2)
	require.Equal(t, int64(1), doc.Images[0].ID)
	require.Equal(t, "000001.png", doc.Images[0].FileName)
	require.Equal(t, 64, doc.Images[0].Width)

	// Categories are the distinct labels, sorted, with ids 1..n.
	require.Equal(t, []cocoCategory{
		{ID: 1, Name: "Car"},
		{ID: 2, Name: "Cyclist"},
		{ID: 3, Name: "Pedestrian"},
	}, doc.Categories)

	require.Len(t, doc.Annotations, 3)
	first := doc.Annotations[0]
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(1), first.ImageID)
	require.Equal(t, int64(1), first.CategoryID)
	require.Equal(t, []float64{10, 12, 20, 12}, first.BBox)
	require.Equal(t, 240.0, first.Area)
	require.NotNil(t, first.IsBBox)
	require.True(t, *first.IsBBox)

	// Box-only detections still carry a rectangle polygon.
	var polygons [][]float64
	require.NoError(t, json.Unmarshal(first.Segmentation, &polygons))
	require.Equal(t, [][]float64{{10, 12, 30, 12, 30, 24, 10, 24}}, polygons)
}

func TestCOCORoundTripKeepsPolygonsAndKeypoints(t *testing.T) {
	src := newCOCODataset(t)
	data, err := COCOIngestor{}.Ingest(context.Background(), src, nil, NewReport(nil))
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, COCOEgestor{}.Egest(context.Background(), data, dst, nil, NewReport(nil)))

	again, err := COCOIngestor{}.Ingest(context.Background(), dst, nil, NewReport(nil))
	require.NoError(t, err)
	require.Len(t, again, 2)

	crowd := again[1].Detections[0]
	require.True(t, crowd.IsCrowd)
	require.Equal(t, [][]float64{{0, 0, 25, 0, 25, 25, 0, 25}}, crowd.Segmentation)
	require.Equal(t, data[1].Detections[0].Keypoints, crowd.Keypoints)
	require.Equal(t, data[1].Detections[0].Left, crowd.Left)
	require.Equal(t, data[1].Detections[0].Bottom, crowd.Bottom)
}
