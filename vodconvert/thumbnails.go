package vodconvert

// Thumbnail generation for egested images.
//
// Dataset browsers expect a _thumbnail directory next to the images, holding
// a small preview per image. Generation fans out across a bounded worker pool
// because it loads whole images into memory; warnings are buffered per task
// and merged back in submission order so the run log stays deterministic.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ThumbnailDir is the directory created under an images directory.
const ThumbnailDir = "_thumbnail"

// thumbnailSide bounds the longer side of a generated thumbnail.
const thumbnailSide = 128

var thumbnailExts = []string{".png", ".jpg", ".jpeg"}

// GenerateThumbnails writes a thumbnail for every image file directly inside
// imagesDir into imagesDir/_thumbnail. Images that cannot be loaded or saved
// produce warnings, never errors.
func GenerateThumbnails(ctx context.Context, imagesDir string, rep *Report) error {
	files, err := imageFilesInDir(imagesDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	outDir := filepath.Join(imagesDir, ThumbnailDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", outDir, err)
	}

	// Limit the number of goroutines in flight, as they load potentially
	// large images into memory.
	numTasks := 2 * runtime.NumCPU()
	if len(files) < numTasks {
		numTasks = len(files)
	}

	type task struct {
		index int
		name  string
	}
	workQueue := make(chan task, 2*numTasks)
	results := make([]*Warning, len(files))

	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for t := range workQueue {
				results[t.index] = thumbnailImage(
					filepath.Join(imagesDir, t.name), filepath.Join(outDir, t.name))
			}
		}()
	}

	submitted := 0
	for i, name := range files {
		if ctx.Err() != nil {
			break
		}
		workQueue <- task{index: i, name: name}
		submitted++
	}
	close(workQueue)
	wg.Wait()

	warnings := make([]Warning, 0, submitted)
	for _, w := range results[:submitted] {
		if w != nil {
			warnings = append(warnings, *w)
		}
	}
	rep.merge(warnings)
	return ctx.Err()
}

// thumbnailImage loads, shrinks and saves one image, returning the warning to
// record instead of failing the batch.
func thumbnailImage(src, dst string) *Warning {
	img, err := imaging.Open(src)
	if err != nil {
		return &Warning{
			Kind:    WarnMissingAsset,
			Source:  src,
			Message: fmt.Sprintf("cannot load image: %v", err),
		}
	}
	thumb := imaging.Fit(img, thumbnailSide, thumbnailSide, imaging.Box)
	if err := imaging.Save(thumb, dst); err != nil {
		return &Warning{
			Kind:    WarnMissingAsset,
			Source:  src,
			Message: fmt.Sprintf("cannot save thumbnail: %v", err),
		}
	}
	return nil
}

// imageFilesInDir returns the names of the image files directly inside dir,
// in directory order.
func imageFilesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %q: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range thumbnailExts {
			if ext == want {
				files = append(files, entry.Name())
				break
			}
		}
	}
	return files, nil
}
