package vodconvert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKITTIValidate(t *testing.T) {
	root := newKITTIDataset(t)
	ok, reason := KITTIIngestor{}.Validate(root, nil)
	require.True(t, ok, reason)
}

func TestKITTIValidateMissingPieces(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "train.txt"), "000001\n")

	ok, reason := KITTIIngestor{}.Validate(root, nil)
	require.False(t, ok)
	require.Contains(t, reason, "images")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "labels"), 0o755))
	require.NoError(t, os.Remove(filepath.Join(root, "train.txt")))

	ok, reason = KITTIIngestor{}.Validate(root, nil)
	require.False(t, ok)
	require.Contains(t, reason, "train.txt")
}

func TestKITTIValidateHonoursFolderOverrides(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "image_2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "label_2"), 0o755))
	writeTestFile(t, filepath.Join(root, "val.txt"), "000001\n")

	folders := FolderNames{"images_dir": "image_2", "labels_dir": "label_2", "manifest": "val.txt"}
	ok, reason := KITTIIngestor{}.Validate(root, folders)
	require.True(t, ok, reason)

	ok, _ = KITTIIngestor{}.Validate(root, nil)
	require.False(t, ok)
}

func TestKITTIIngest(t *testing.T) {
	root := newKITTIDataset(t)
	rep := NewReport(nil)

	data, err := KITTIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data, 2)
	require.Empty(t, rep.Warnings())

	first := data[0]
	require.Equal(t, "000001", first.Image.ID)
	require.Equal(t, 64, first.Image.Width)
	require.Equal(t, 48, first.Image.Height)
	require.Equal(t, "000001.png", first.Image.FileName)
	require.Len(t, first.Detections, 2)

	car := first.Detections[0]
	require.Equal(t, "Car", car.Label)
	require.Equal(t, "000001", car.ImageID)
	require.Equal(t, 10.0, car.Left)
	require.Equal(t, 12.0, car.Top)
	require.Equal(t, 30.0, car.Right)
	require.Equal(t, 24.0, car.Bottom)
	require.True(t, car.IsBBox)

	ingested, _, _ := rep.Counts()
	require.Zero(t, ingested) // the pipeline counts, not the adapter
}

func TestKITTIIngestSkipsMalformedRow(t *testing.T) {
	root := newKITTIDataset(t)
	writeTestFile(t, filepath.Join(root, "labels", "000001.txt"),
		"Car 0.0 0 -1 10 12 30 24 -1 -1 -1 -1 -1 -1 -1\n"+
			"Broken 0.0 0 -1 ten 12 30 24 -1 -1 -1 -1 -1 -1 -1\n"+
			"Truck 0.0 0 -1 1 2 6 9 -1 -1 -1 -1 -1 -1 -1\n")

	rep := NewReport(nil)
	data, err := KITTIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data[0].Detections, 2)
	require.Equal(t, "Car", data[0].Detections[0].Label)
	require.Equal(t, "Truck", data[0].Detections[1].Label)

	warnings := rep.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, WarnParse, warnings[0].Kind)
	require.Contains(t, warnings[0].Source, "000001.txt:2")
}

func TestKITTIIngestMissingImage(t *testing.T) {
	root := newKITTIDataset(t)
	require.NoError(t, os.Remove(filepath.Join(root, "images", "000002.png")))

	rep := NewReport(nil)
	data, err := KITTIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data, 1)
	require.Equal(t, "000001", data[0].Image.ID)

	warnings := rep.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, WarnMissingAsset, warnings[0].Kind)
	require.Equal(t, "000002", warnings[0].Source)
}

func TestKITTIIngestDropsDegenerateBoxes(t *testing.T) {
	root := newKITTIDataset(t)
	writeTestFile(t, filepath.Join(root, "labels", "000002.txt"),
		"Car 0.0 0 -1 30 12 10 24 -1 -1 -1 -1 -1 -1 -1\n"+
			"Car 0.0 0 -1 5 9 12 9 -1 -1 -1 -1 -1 -1 -1\n"+
			"Car 0.0 0 -1 1 2 6 9 -1 -1 -1 -1 -1 -1 -1\n")

	rep := NewReport(nil)
	data, err := KITTIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data[1].Detections, 1)

	// Degenerate boxes are counted, not warned about.
	_, _, dropped := rep.Counts()
	require.Equal(t, 2, dropped)
	require.Empty(t, rep.Warnings())
}

func TestKITTIIngestCancelled(t *testing.T) {
	root := newKITTIDataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := KITTIIngestor{}.Ingest(ctx, root, nil, NewReport(nil))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, data)
}

func TestKITTIEgest(t *testing.T) {
	src := newKITTIDataset(t)
	rep := NewReport(nil)
	data, err := KITTIIngestor{}.Ingest(context.Background(), src, nil, rep)
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, KITTIEgestor{}.Egest(context.Background(), data, dst, nil, rep))

	manifest, err := readLines(filepath.Join(dst, "train.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{"000001", "000002"}, manifest)

	require.FileExists(t, filepath.Join(dst, "images", "000001.png"))
	require.FileExists(t, filepath.Join(dst, "images", "000002.png"))

	rows, err := readLines(filepath.Join(dst, "labels", "000001.txt"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Car 0.0 0 -1 10 12 30 24 -1 -1 -1 -1 -1 -1 -1", rows[0])
	require.Equal(t, "Pedestrian 0.0 0 -1 2 4 8 20 -1 -1 -1 -1 -1 -1 -1", rows[1])

	_, egested, _ := rep.Counts()
	require.Equal(t, 2, egested)
}

func TestKITTIEgestSkipsUncopyableImage(t *testing.T) {
	src := newKITTIDataset(t)
	rep := NewReport(nil)
	data, err := KITTIIngestor{}.Ingest(context.Background(), src, nil, rep)
	require.NoError(t, err)

	// Make the first image uncopyable after ingestion.
	require.NoError(t, os.Remove(data[0].Image.Path))

	dst := t.TempDir()
	require.NoError(t, KITTIEgestor{}.Egest(context.Background(), data, dst, nil, rep))

	// No manifest line and no labels file for the skipped image.
	manifest, err := readLines(filepath.Join(dst, "train.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{"000002"}, manifest)
	require.NoFileExists(t, filepath.Join(dst, "labels", "000001.txt"))

	warnings := rep.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, WarnMissingAsset, warnings[0].Kind)
}

// cancelAfterChecks passes its first n Err calls and reports cancellation
// afterwards, so cancellation lands between two processing units.
type cancelAfterChecks struct {
	context.Context
	n int
}

func (c *cancelAfterChecks) Err() error {
	if c.n > 0 {
		c.n--
		return nil
	}
	return context.Canceled
}

func TestKITTIEgestCancelledMidway(t *testing.T) {
	src := newKITTIDataset(t)
	data, err := KITTIIngestor{}.Ingest(context.Background(), src, nil, NewReport(nil))
	require.NoError(t, err)
	require.Len(t, data, 2)

	dst := t.TempDir()
	ctx := &cancelAfterChecks{Context: context.Background(), n: 1}
	err = KITTIEgestor{}.Egest(ctx, data, dst, nil, NewReport(nil))
	require.ErrorIs(t, err, context.Canceled)

	// The first image landed completely; the second is absent everywhere.
	manifest, err := readLines(filepath.Join(dst, "train.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{"000001"}, manifest)
	require.FileExists(t, filepath.Join(dst, "images", "000001.png"))
	require.FileExists(t, filepath.Join(dst, "labels", "000001.txt"))
	require.NoFileExists(t, filepath.Join(dst, "images", "000002.png"))
	require.NoFileExists(t, filepath.Join(dst, "labels", "000002.txt"))
}

func TestKITTIRoundTrip(t *testing.T) {
	src := newKITTIDataset(t)
	data, err := KITTIIngestor{}.Ingest(context.Background(), src, nil, NewReport(nil))
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, KITTIEgestor{}.Egest(context.Background(), data, dst, nil, NewReport(nil)))

	again, err := KITTIIngestor{}.Ingest(context.Background(), dst, nil, NewReport(nil))
	require.NoError(t, err)
	require.Len(t, again, len(data))
	for i := range data {
		require.Equal(t, data[i].Image.ID, again[i].Image.ID)
		require.Equal(t, data[i].Image.Width, again[i].Image.Width)
		require.Equal(t, data[i].Image.Height, again[i].Image.Height)
		require.Equal(t, data[i].Detections, again[i].Detections)
	}
}
