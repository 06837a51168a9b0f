package vodconvert

// TFRecord object detection specific functionality.
//
// Egest-only: every image becomes one tensorflow.Example with the encoded
// pixel data embedded under the feature keys the TensorFlow object detection
// tooling expects, normalised box coordinates included. A prototxt label map
// is written next to the record file.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
)

// FolderNames keys honoured by the TFRecord egestor.
const (
	tfRecordFileKey = "record_file"
	tfLabelMapKey   = "label_map"
)

const (
	tfDefaultRecordFile = "train.tfrecord"
	tfDefaultLabelMap   = "label_map.pbtxt"
)

// TFRecordEgestor writes the canonical model as a TFRecord file.
type TFRecordEgestor struct{}

// ExpectedLabels returns nil: the label map is derived from the data, so any
// vocabulary can be egested.
func (TFRecordEgestor) ExpectedLabels() []string { return nil }

// Egest writes the record file and its label map under root. Images are
// embedded rather than copied, so an unreadable image skips its Example.
func (TFRecordEgestor) Egest(ctx context.Context, data []ImageDetections, root string,
	folders FolderNames, rep *Report) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", root, err)
	}
	labelIDs := tfLabelIDs(data)

	recordPath := filepath.Join(root, folders.get(tfRecordFileKey, tfDefaultRecordFile))
	f, err := os.Create(recordPath)
	if err != nil {
		return fmt.Errorf("create record file %q: %w", recordPath, err)
	}
	defer closeWithErrCheck(f, &err)

	for _, record := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		features, err := tfFeatures(record, labelIDs)
		if err != nil {
			rep.Warnf(WarnMissingAsset, record.Image.Path, "skipping image: %v", err)
			continue
		}
		enc, err := proto.Marshal(example.New(features))
		if err != nil {
			return fmt.Errorf("serialise example for %q: %w", record.Image.ID, err)
		}
		if err := tfrecord.Write(f, enc); err != nil {
			return fmt.Errorf("write record for %q: %w", record.Image.ID, err)
		}
		rep.AddEgested(1)
	}

	labelMapPath := filepath.Join(root, folders.get(tfLabelMapKey, tfDefaultLabelMap))
	return writeTFLabelMap(labelMapPath, labelIDs)
}

// tfFeatures builds the feature map for one image, with box coordinates
// normalised to [0, 1] against the decoded dimensions.
func tfFeatures(record ImageDetections, labelIDs map[string]int32) (map[string]interface{}, error) {
	image := record.Image
	cfg, format, err := decodeImageConfig(image.Path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(image.Path)
	if err != nil {
		return nil, err
	}

	f := make(map[string]interface{}, 16)
	f["image/height"] = cfg.Height
	f["image/width"] = cfg.Width
	f["image/filename"] = image.FileName
	f["image/source_id"] = image.ID
	f["image/encoded"] = raw
	f["image/format"] = format

	n := len(record.Detections)
	xmins := make([]float32, n)
	ymins := make([]float32, n)
	xmaxs := make([]float32, n)
	ymaxs := make([]float32, n)
	classes := make([]string, n)
	classIDs := make([]int64, n)
	for i, d := range record.Detections {
		xmins[i] = float32(d.Left) / float32(cfg.Width)
		ymins[i] = float32(d.Top) / float32(cfg.Height)
		xmaxs[i] = float32(d.Right) / float32(cfg.Width)
		ymaxs[i] = float32(d.Bottom) / float32(cfg.Height)
		classes[i] = d.Label
		classIDs[i] = int64(labelIDs[d.Label])
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs
	return f, nil
}

// tfLabelIDs assigns ids 1..n to the distinct labels in sorted order.
func tfLabelIDs(data []ImageDetections) map[string]int32 {
	labels := collectLabels(data)
	ids := make(map[string]int32, len(labels))
	for i, label := range labels {
		ids[label] = int32(i + 1)
	}
	return ids
}

// writeTFLabelMap writes the label map in prototxt form, ordered by id.
func writeTFLabelMap(path string, labelIDs map[string]int32) (err error) {
	labels := make([]string, 0, len(labelIDs))
	for label := range labelIDs {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labelIDs[labels[i]] < labelIDs[labels[j]] })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create label map file %q: %w", path, err)
	}
	defer closeWithErrCheck(f, &err)

	for _, label := range labels {
		if _, err := fmt.Fprintf(f, "item {\n  id: %d\n  name: '%s'\n}\n", labelIDs[label], label); err != nil {
			return err
		}
	}
	return nil
}
