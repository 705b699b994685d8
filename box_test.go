package kekconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxConversionsAgreeOnKnownValues(t *testing.T) {
	// One box, 500x500 image, all three formats.
	shape := ImageShape{Width: 500, Height: 500, Depth: 3}
	box := BoxFromVOC(VOCBox{50, 50, 300, 300})

	assert.Equal(t, VOCBox{50, 50, 300, 300}, box.ToVOC())
	assert.Equal(t, [4]int{50, 50, 250, 250}, box.ToCOCO())

	darknet := box.ToDarknet(shape)
	assert.InDelta(t, 0.35, darknet[0], 1e-9)
	assert.InDelta(t, 0.35, darknet[1], 1e-9)
	assert.InDelta(t, 0.5, darknet[2], 1e-9)
	assert.InDelta(t, 0.5, darknet[3], 1e-9)
}

func TestBoxDarknetRoundTrip(t *testing.T) {
	shape := ImageShape{Width: 416, Height: 416, Depth: 3}
	original := DarknetBox{0.5, 0.5, 0.25, 0.3}

	box := BoxFromDarknet(original, shape)
	assert.Equal(t, Box{TopLeftX: 156, TopLeftY: 145, BottomRightX: 260, BottomRightY: 270}, box)

	// Pixel truncation loses less than one pixel per edge, which stays well
	// inside 0.01 in normalized coordinates.
	back := box.ToDarknet(shape)
	for i := range original {
		assert.InDelta(t, original[i], back[i], 0.01)
	}
}

func TestBoxFromDarknetClampsToImageBounds(t *testing.T) {
	shape := ImageShape{Width: 100, Height: 100, Depth: 3}

	box := BoxFromDarknet(DarknetBox{0.5, 0.5, 1.1, 1.1}, shape)
	assert.Equal(t, Box{TopLeftX: 0, TopLeftY: 0, BottomRightX: 100, BottomRightY: 100}, box)

	// An edge-touching box overshoots by a fraction of a pixel after scaling.
	box = BoxFromDarknet(DarknetBox{0.995, 0.5, 0.02, 0.2}, shape)
	assert.LessOrEqual(t, box.BottomRightX, shape.Width)
	assert.GreaterOrEqual(t, box.TopLeftX, 0)
}

func TestBoxFromDarknetString(t *testing.T) {
	shape := ImageShape{Width: 200, Height: 100, Depth: 3}

	box, err := BoxFromDarknetString("0.5 0.5 0.5 0.5", shape)
	require.NoError(t, err)
	assert.Equal(t, Box{TopLeftX: 50, TopLeftY: 25, BottomRightX: 150, BottomRightY: 75}, box)

	_, err = BoxFromDarknetString("0.5 0.5 0.5", shape)
	assert.Error(t, err)

	_, err = BoxFromDarknetString("0.5 0.5 0.5 abc", shape)
	assert.Error(t, err)
}

func TestBoxCOCORoundTrip(t *testing.T) {
	box := BoxFromCOCO(COCOBox{10, 20, 30, 40})
	assert.Equal(t, Box{TopLeftX: 10, TopLeftY: 20, BottomRightX: 40, BottomRightY: 60}, box)
	assert.Equal(t, [4]int{10, 20, 30, 40}, box.ToCOCO())

	// Fractional COCO coordinates truncate toward zero.
	box = BoxFromCOCO(COCOBox{10.6, 20.2, 30.5, 40.9})
	assert.Equal(t, Box{TopLeftX: 10, TopLeftY: 20, BottomRightX: 41, BottomRightY: 61}, box)
}

func TestBoxDimensions(t *testing.T) {
	box := Box{TopLeftX: 10, TopLeftY: 20, BottomRightX: 110, BottomRightY: 70}
	assert.Equal(t, 100, box.Width())
	assert.Equal(t, 50, box.Height())
}
