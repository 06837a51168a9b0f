package vodconvert

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Register the decoders used for header-only dimension probes.
	_ "image/jpeg"
	_ "image/png"
)

// decodeImageConfig opens the file at path and returns the results of
// image.DecodeConfig. Only the header is read; pixel data stays on disk.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// imageDimensions probes the pixel dimensions of the image at path without a
// full decode.
func imageDimensions(path string) (width, height int, err error) {
	cfg, _, err := decodeImageConfig(path)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header of %q: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// findImageExt locates dir/<id>.<ext> trying exts in priority order and
// returns the first extension that exists.
func findImageExt(dir, id string, exts []string) (string, bool) {
	for _, ext := range exts {
		if fileExists(filepath.Join(dir, id+"."+ext)) {
			return ext, true
		}
	}
	return "", false
}
