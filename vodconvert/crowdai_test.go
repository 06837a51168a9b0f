package vodconvert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newCrowdAIDataset interleaves rows of two frames to exercise grouping.
func newCrowdAIDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "frame_01.png"), 48, 32)
	writePNG(t, filepath.Join(root, "frame_02.png"), 32, 32)
	writeTestFile(t, filepath.Join(root, "labels.csv"),
		"xmin,ymin,xmax,ymax,Frame,Label,Preview URL\n"+
			"10,12,30,24,frame_01.png,Car,http://example.com/1\n"+
			"1,1,10,10,frame_02.png,Cyclist,http://example.com/2\n"+
			"2,4,8,20,frame_01.png,Pedestrian,http://example.com/3\n")
	return root
}

func TestCrowdAIValidate(t *testing.T) {
	root := newCrowdAIDataset(t)
	ok, reason := CrowdAIIngestor{}.Validate(root, nil)
	require.True(t, ok, reason)

	require.NoError(t, os.Remove(filepath.Join(root, "labels.csv")))
	ok, reason = CrowdAIIngestor{}.Validate(root, nil)
	require.False(t, ok)
	require.Contains(t, reason, "labels.csv")
}

func TestCrowdAIIngestGroupsByFrame(t *testing.T) {
	root := newCrowdAIDataset(t)
	rep := NewReport(nil)

	data, err := CrowdAIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Empty(t, rep.Warnings())
	require.Len(t, data, 2)

	first := data[0]
	require.Equal(t, "frame_01", first.Image.ID)
	require.Equal(t, "frame_01.png", first.Image.FileName)
	require.Equal(t, 48, first.Image.Width)
	require.Equal(t, 32, first.Image.Height)
	require.Len(t, first.Detections, 2)

	car := first.Detections[0]
	require.Equal(t, "frame_01", car.ImageID)
	require.Equal(t, "Car", car.Label)
	require.Equal(t, 10.0, car.Left)
	require.Equal(t, 12.0, car.Top)
	require.Equal(t, 30.0, car.Right)
	require.Equal(t, 24.0, car.Bottom)
	require.True(t, car.IsBBox)
	require.Equal(t, "Pedestrian", first.Detections[1].Label)

	second := data[1]
	require.Equal(t, "frame_02", second.Image.ID)
	require.Len(t, second.Detections, 1)
	require.Equal(t, "Cyclist", second.Detections[0].Label)
}

func TestCrowdAIIngestHonoursHeaderOrder(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "f.png"), 20, 20)
	writeTestFile(t, filepath.Join(root, "labels.csv"),
		"Label,Frame,xmax,xmin,ymax,ymin\n"+
			"truck,f.png,9,3,8,2\n")

	data, err := CrowdAIIngestor{}.Ingest(context.Background(), root, nil, NewReport(nil))
	require.NoError(t, err)
	require.Len(t, data, 1)

	d := data[0].Detections[0]
	require.Equal(t, "truck", d.Label)
	require.Equal(t, 3.0, d.Left)
	require.Equal(t, 2.0, d.Top)
	require.Equal(t, 9.0, d.Right)
	require.Equal(t, 8.0, d.Bottom)
}

func TestCrowdAIIngestRejectsMissingColumn(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "labels.csv"),
		"xmin,ymin,xmax,ymax,Frame\n"+
			"10,12,30,24,frame_01.png\n")

	_, err := CrowdAIIngestor{}.Ingest(context.Background(), root, nil, NewReport(nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), `no "Label" column`)
}

func TestCrowdAIIngestSkipsBadRows(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "frame_01.png"), 48, 32)
	writePNG(t, filepath.Join(root, "frame_02.png"), 32, 32)
	writeTestFile(t, filepath.Join(root, "labels.csv"),
		"xmin,ymin,xmax,ymax,Frame,Label\n"+
			"10,12,30,24,frame_01.png,Car\n"+
			"wide,12,30,24,frame_01.png,Car\n"+
			"1,1,10,10,frame_02.png,Cyc\"list\n"+
			"5,5\n")

	rep := NewReport(nil)
	data, err := CrowdAIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)

	// Only the first row survives; frame_02 never gets a valid row.
	require.Len(t, data, 1)
	require.Equal(t, "frame_01", data[0].Image.ID)
	require.Len(t, data[0].Detections, 1)

	warnings := rep.Warnings()
	require.Len(t, warnings, 3)
	for _, w := range warnings {
		require.Equal(t, WarnParse, w.Kind)
	}
	require.Contains(t, warnings[0].Source, "labels.csv:3")
	require.Contains(t, warnings[0].Message, `"wide"`)
	require.Contains(t, warnings[1].Source, "labels.csv:4")
	require.Contains(t, warnings[2].Source, "labels.csv:5")
	require.Contains(t, warnings[2].Message, "row has 2 fields")
}

func TestCrowdAIIngestSkipsFrameWithoutImage(t *testing.T) {
	root := newCrowdAIDataset(t)
	writeTestFile(t, filepath.Join(root, "labels.csv"),
		"xmin,ymin,xmax,ymax,Frame,Label\n"+
			"10,12,30,24,frame_01.png,Car\n"+
			"3,3,6,6,ghost.png,Car\n")

	rep := NewReport(nil)
	data, err := CrowdAIIngestor{}.Ingest(context.Background(), root, nil, rep)
	require.NoError(t, err)
	require.Len(t, data, 1)
	require.Equal(t, "frame_01", data[0].Image.ID)

	warnings := rep.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, WarnMissingAsset, warnings[0].Kind)
	require.Contains(t, warnings[0].Source, "ghost.png")
}
