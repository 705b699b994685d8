package kekconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRegistryMergeIsIdempotent(t *testing.T) {
	registry := make(CategoryRegistry)
	fragment := CategoryRegistry{1: {"id": 1, "name": "dog"}}

	registry.Merge(fragment)
	registry.Merge(fragment)
	registry.Merge(CategoryRegistry{2: {"id": 2, "name": "person"}})

	require.Len(t, registry, 2)
	assert.Equal(t, "dog", registry[1]["name"])
}

func TestCategoryRegistryListSortsByID(t *testing.T) {
	registry := CategoryRegistry{
		3: {"id": 3, "name": "c"},
		1: {"id": 1, "name": "a"},
		2: {"id": 2, "name": "b"},
	}

	list := registry.List()
	require.Len(t, list, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, list[i]["name"])
	}
}

func TestImageRescale(t *testing.T) {
	img := &Image{
		ID:       1,
		Filename: "frame.png",
		Shape:    ImageShape{Width: 100, Height: 100, Depth: 3},
		Objects: []Object{{
			ClassID:        0,
			ClassName:      "dog",
			Box:            Box{TopLeftX: 10, TopLeftY: 20, BottomRightX: 50, BottomRightY: 60},
			AdditionalData: map[string]interface{}{AttrImageID: 1},
		}},
		AdditionalData: map[string]interface{}{AttrFolder: "pics"},
	}

	scaled := img.rescale(0.5, 2, ImageShape{Width: 50, Height: 200, Depth: 3})

	assert.Equal(t, ImageShape{Width: 50, Height: 200, Depth: 3}, scaled.Shape)
	require.Len(t, scaled.Objects, 1)
	assert.Equal(t, Box{TopLeftX: 5, TopLeftY: 40, BottomRightX: 25, BottomRightY: 120}, scaled.Objects[0].Box)

	// The original and its attribute maps stay untouched.
	assert.Equal(t, Box{TopLeftX: 10, TopLeftY: 20, BottomRightX: 50, BottomRightY: 60}, img.Objects[0].Box)
	scaled.AdditionalData[AttrFolder] = "other"
	scaled.Objects[0].AdditionalData[AttrImageID] = 9
	assert.Equal(t, "pics", img.AdditionalData[AttrFolder])
	assert.Equal(t, 1, img.Objects[0].AdditionalData[AttrImageID])
}

func TestCopyAttributes(t *testing.T) {
	assert.Nil(t, copyAttributes(nil))

	src := map[string]interface{}{"a": 1}
	copied := copyAttributes(src)
	copied["a"] = 2
	assert.Equal(t, 1, src["a"])
}
