package vodconvert

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writePNG writes a width x height PNG at path, creating parent directories.
func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// writeTestFile writes content at path, creating parent directories.
func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newKITTIDataset builds a two-image KITTI dataset and returns its root.
// 000001 (64x48) has a Car and a Pedestrian, 000002 (32x32) has a Cyclist.
func newKITTIDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "000001.png"), 64, 48)
	writePNG(t, filepath.Join(root, "images", "000002.png"), 32, 32)
	writeTestFile(t, filepath.Join(root, "labels", "000001.txt"),
		"Car 0.0 0 -1 10 12 30 24 -1 -1 -1 -1 -1 -1 -1\n"+
			"Pedestrian 0.0 0 -1 2 4 8 20 -1 -1 -1 -1 -1 -1 -1\n")
	writeTestFile(t, filepath.Join(root, "labels", "000002.txt"),
		"Cyclist 0.0 0 -1 1 1 10 10 -1 -1 -1 -1 -1 -1 -1\n")
	writeTestFile(t, filepath.Join(root, "train.txt"), "000001\n000002\n")
	return root
}
