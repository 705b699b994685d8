package kekconv

// The bounding-box value type and its per-format conversions.

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Box is an axis-aligned rectangle in absolute pixel coordinates, stored as
// the two corners (top left, bottom right). It is the representation every
// annotation format converts through.
//
// A Box is a plain value: construct it with one of the BoxFrom functions and
// never mutate it afterwards. Correctly converted boxes satisfy
// TopLeftX <= BottomRightX and TopLeftY <= BottomRightY.
type Box struct {
	TopLeftX     int
	TopLeftY     int
	BottomRightX int
	BottomRightY int
}

// DarknetBox holds the four Darknet fields (center x, center y, width,
// height), each a fraction of the image dimensions.
type DarknetBox [4]float64

// VOCBox holds the four PASCAL VOC coordinates (xmin, ymin, xmax, ymax).
type VOCBox [4]int

// COCOBox holds the four MS COCO bbox fields (top left x, top left y, width,
// height).
type COCOBox [4]float64

var decimalTwo = decimal.NewFromInt(2)

// BoxFromDarknet converts a Darknet box to pixel coordinates for an image of
// the given shape.
//
// The fraction to pixel scaling is done in decimal arithmetic so that
// repeated conversions do not accumulate binary floating-point drift.
// Coordinates are truncated toward zero and then clamped to the image
// bounds; Darknet boxes that touch an image edge commonly overshoot it by a
// pixel after scaling.
func BoxFromDarknet(box DarknetBox, shape ImageShape) Box {
	return boxFromDarknet(
		decimal.NewFromFloat(box[0]),
		decimal.NewFromFloat(box[1]),
		decimal.NewFromFloat(box[2]),
		decimal.NewFromFloat(box[3]),
		shape)
}

// BoxFromDarknetString converts a whitespace-separated "<cx> <cy> <w> <h>"
// string, as found after the class id in a Darknet label line.
func BoxFromDarknetString(s string, shape ImageShape) (Box, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return Box{}, fmt.Errorf("expected 4 box fields, got %d in %q", len(fields), s)
	}

	var parts [4]decimal.Decimal
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return Box{}, fmt.Errorf("invalid box field %q: %v", f, err)
		}
		parts[i] = d
	}

	return boxFromDarknet(parts[0], parts[1], parts[2], parts[3], shape), nil
}

func boxFromDarknet(centerX, centerY, width, height decimal.Decimal, shape ImageShape) Box {
	imageWidth := decimal.NewFromInt(int64(shape.Width))
	imageHeight := decimal.NewFromInt(int64(shape.Height))
	halfWidth := width.Div(decimalTwo)
	halfHeight := height.Div(decimalTwo)

	b := Box{
		TopLeftX:     int(centerX.Sub(halfWidth).Mul(imageWidth).IntPart()),
		TopLeftY:     int(centerY.Sub(halfHeight).Mul(imageHeight).IntPart()),
		BottomRightX: int(centerX.Add(halfWidth).Mul(imageWidth).IntPart()),
		BottomRightY: int(centerY.Add(halfHeight).Mul(imageHeight).IntPart()),
	}

	// Clamp to the image bounds.
	if b.TopLeftX < 0 {
		b.TopLeftX = 0
	}
	if b.TopLeftY < 0 {
		b.TopLeftY = 0
	}
	if b.BottomRightX > shape.Width {
		b.BottomRightX = shape.Width
	}
	if b.BottomRightY > shape.Height {
		b.BottomRightY = shape.Height
	}

	return b
}

// ToDarknet converts the box back to Darknet fractions for an image of the
// given shape. It is the algebraic inverse of BoxFromDarknet, up to the
// truncation and clamping applied there.
func (b Box) ToDarknet(shape ImageShape) DarknetBox {
	imageWidth := decimal.NewFromInt(int64(shape.Width))
	imageHeight := decimal.NewFromInt(int64(shape.Height))

	centerX := decimal.NewFromInt(int64(b.TopLeftX + b.BottomRightX)).Div(decimalTwo).Div(imageWidth)
	centerY := decimal.NewFromInt(int64(b.TopLeftY + b.BottomRightY)).Div(decimalTwo).Div(imageHeight)
	width := decimal.NewFromInt(int64(b.BottomRightX - b.TopLeftX)).Div(imageWidth)
	height := decimal.NewFromInt(int64(b.BottomRightY - b.TopLeftY)).Div(imageHeight)

	return DarknetBox{
		centerX.InexactFloat64(),
		centerY.InexactFloat64(),
		width.InexactFloat64(),
		height.InexactFloat64(),
	}
}

// BoxFromVOC converts a PASCAL VOC box. VOC already uses the two-corner
// convention, so this is the identity.
func BoxFromVOC(box VOCBox) Box {
	return Box{box[0], box[1], box[2], box[3]}
}

// ToVOC returns the box in PASCAL VOC order.
func (b Box) ToVOC() VOCBox {
	return VOCBox{b.TopLeftX, b.TopLeftY, b.BottomRightX, b.BottomRightY}
}

// BoxFromCOCO converts an MS COCO corner-plus-size box. Fractional corners
// are truncated toward zero.
func BoxFromCOCO(box COCOBox) Box {
	return Box{
		TopLeftX:     int(box[0]),
		TopLeftY:     int(box[1]),
		BottomRightX: int(box[0] + box[2]),
		BottomRightY: int(box[1] + box[3]),
	}
}

// ToCOCO returns the box in MS COCO corner-plus-size order.
func (b Box) ToCOCO() [4]int {
	return [4]int{b.TopLeftX, b.TopLeftY, b.BottomRightX - b.TopLeftX, b.BottomRightY - b.TopLeftY}
}

// Width is the box width in pixels.
func (b Box) Width() int {
	return b.BottomRightX - b.TopLeftX
}

// Height is the box height in pixels.
func (b Box) Height() int {
	return b.BottomRightY - b.TopLeftY
}
