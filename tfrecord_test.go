package kekconv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTFLabelMapAssignsStableIDs(t *testing.T) {
	m := newTFLabelMap()

	assert.Equal(t, int32(1), m.id("dog"))
	assert.Equal(t, int32(2), m.id("person"))
	assert.Equal(t, int32(1), m.id("dog"))
}

func TestTFLabelMapSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_map.json")

	m := newTFLabelMap()
	m.id("dog")
	m.id("person")
	require.NoError(t, m.save(path))

	loaded, err := loadTFLabelMap(path)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loaded.id("dog"))
	assert.Equal(t, int32(2), loaded.id("person"))

	// New labels continue after the highest loaded id.
	assert.Equal(t, int32(3), loaded.id("cat"))
}

func TestLoadTFLabelMapMissingFileStartsEmpty(t *testing.T) {
	m, err := loadTFLabelMap(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.id("dog"))
}

func TestLoadTFLabelMapRejectsInvalidEntries(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "label_map.json", `{"dog": 0}`)

	_, err := loadTFLabelMap(path)
	assert.Error(t, err)
}

func TestToTFFeatures(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 100, 50)

	item := AnnotatedImage{
		Path: imagePath,
		Image: &Image{
			Filename: "frame.png",
			Shape:    ImageShape{Width: 100, Height: 50, Depth: 1},
			Objects: []Object{{
				ClassName: "dog",
				Box:       Box{TopLeftX: 10, TopLeftY: 5, BottomRightX: 60, BottomRightY: 45},
			}},
		},
	}

	labels := newTFLabelMap()
	features, err := toTFFeatures(item, labels)
	require.NoError(t, err)

	assert.Equal(t, 50, features["image/height"])
	assert.Equal(t, 100, features["image/width"])
	assert.Equal(t, "png", features["image/format"])
	assert.NotEmpty(t, features["image/encoded"])

	assert.Equal(t, []float32{0.1}, features["image/object/bbox/xmin"])
	assert.Equal(t, []float32{0.1}, features["image/object/bbox/ymin"])
	assert.Equal(t, []float32{0.6}, features["image/object/bbox/xmax"])
	assert.Equal(t, []float32{0.9}, features["image/object/bbox/ymax"])
	assert.Equal(t, []string{"dog"}, features["image/object/class/text"])
	assert.Equal(t, []int64{1}, features["image/object/class/label"])
}
