package kekconv

// TFRecord object detection specific functionality. Output only: the batch
// layer streams converted images into sharded TFRecord files of
// tensorflow.Example protos, mirroring the TensorFlow object detection API
// feature layout.

import (
	"fmt"
	"math"
	"os"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	log "github.com/sirupsen/logrus"
)

// AnnotatedImage pairs an intermediate representation with the image file it
// describes; TFRecord examples embed the encoded image bytes.
type AnnotatedImage struct {
	Image *Image
	Path  string
}

// tfLabelMap assigns stable int32 ids (starting at 1) to class names.
type tfLabelMap struct {
	ids    map[string]int32
	nextID int32
}

func newTFLabelMap() *tfLabelMap {
	return &tfLabelMap{ids: make(map[string]int32), nextID: 1}
}

// id returns the mapped id for a label, assigning the next free one on first
// sight.
func (m *tfLabelMap) id(label string) int32 {
	if id, ok := m.ids[label]; ok {
		return id
	}
	id := m.nextID
	m.ids[label] = id
	m.nextID++
	return id
}

// loadTFLabelMap reads an existing label map JSON file ({name: id}). A
// missing file yields an empty map.
func loadTFLabelMap(path string) (*tfLabelMap, error) {
	enc, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("Creating a new label map")
		return newTFLabelMap(), nil
	}
	if err != nil {
		return nil, err
	}

	var ids map[string]int32
	if err := jsonAPI.Unmarshal(enc, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse the label map %q: %v", path, err)
	}

	m := newTFLabelMap()
	for label, id := range ids {
		if label == "" || id <= 0 {
			return nil, fmt.Errorf("invalid label map entry: %q: %d", label, id)
		}
		m.ids[label] = id
		if id >= m.nextID {
			m.nextID = id + 1
		}
	}
	return m, nil
}

// save writes the label map as indented JSON.
func (m *tfLabelMap) save(path string) error {
	enc, err := jsonAPI.MarshalIndent(m.ids, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return fmt.Errorf("cannot write the label map %q: %v", path, err)
	}
	return nil
}

// toTFFeatures builds the feature map for one annotated image.
func toTFFeatures(item AnnotatedImage, labels *tfLabelMap) (map[string]interface{}, error) {
	imgData, err := os.ReadFile(item.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %v", err)
	}

	_, _, ext, err := splitPath(item.Path)
	if err != nil {
		return nil, err
	}

	ir := item.Image
	features := make(map[string]interface{}, 16)
	features["image/height"] = ir.Shape.Height
	features["image/width"] = ir.Shape.Width
	features["image/filename"] = item.Path
	features["image/source_id"] = item.Path
	features["image/encoded"] = imgData
	features["image/format"] = ext

	numObjects := len(ir.Objects)
	xmins := make([]float32, numObjects)
	ymins := make([]float32, numObjects)
	xmaxs := make([]float32, numObjects)
	ymaxs := make([]float32, numObjects)
	classes := make([]string, numObjects)
	classIDs := make([]int64, numObjects)
	for i, obj := range ir.Objects {
		xmins[i] = float32(obj.Box.TopLeftX) / float32(ir.Shape.Width)
		ymins[i] = float32(obj.Box.TopLeftY) / float32(ir.Shape.Height)
		xmaxs[i] = float32(obj.Box.BottomRightX) / float32(ir.Shape.Width)
		ymaxs[i] = float32(obj.Box.BottomRightY) / float32(ir.Shape.Height)
		classes[i] = obj.ClassName
		classIDs[i] = int64(labels.id(obj.ClassName))
	}
	features["image/object/bbox/xmin"] = xmins
	features["image/object/bbox/ymin"] = ymins
	features["image/object/bbox/xmax"] = xmaxs
	features["image/object/bbox/ymax"] = ymaxs
	features["image/object/class/text"] = classes
	features["image/object/class/label"] = classIDs

	return features, nil
}

// WriteTFRecords serialises the annotated images into one or more TFRecord
// files under recordPath (with -xxxxx-of-yyyyy suffixes when numShards > 1)
// and writes the label map to labelMapPath.
func WriteTFRecords(recordPath, labelMapPath string, items []AnnotatedImage, numShards int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}

	labels, err := loadTFLabelMap(labelMapPath)
	if err != nil {
		return err
	}

	var shardFile *os.File
	shardSize := int(math.Ceil(float64(len(items)) / float64(numShards)))
	shardIdx := -1

	for i, item := range items {
		if shardSize > 0 && i%shardSize == 0 {
			shardIdx++
			if shardFile != nil {
				_ = shardFile.Close()
				shardFile = nil
			}

			shardPath := recordPath
			if numShards > 1 {
				shardPath += fmt.Sprintf("-%05d-of-%05d", shardIdx, numShards)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		features, err := toTFFeatures(item, labels)
		if err != nil {
			log.Warnf("Failed to convert %q: %v", item.Path, err)
			continue
		}

		if err := writeTFExample(shardFile, example.New(features)); err != nil {
			if shardFile != nil {
				_ = shardFile.Close()
			}
			return fmt.Errorf("failed to write example: %v", err)
		}
	}

	if shardFile != nil {
		if err := shardFile.Close(); err != nil {
			return err
		}
	}

	return labels.save(labelMapPath)
}

// writeTFExample serialises the example and writes it as a TFRecord to f.
func writeTFExample(f *os.File, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}
	return tfrecord.Write(f, enc)
}
