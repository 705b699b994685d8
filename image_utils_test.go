package kekconv

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImageShape(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 64, 48)

	shape, err := GetImageShape(imagePath)
	require.NoError(t, err)
	assert.Equal(t, ImageShape{Width: 64, Height: 48, Depth: 1}, shape)

	_, err = GetImageShape(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	notAnImage := writeTempFile(t, dir, "notes.txt", "hello")
	_, err = GetImageShape(notAnImage)
	assert.Error(t, err)
}

func TestResampleFilter(t *testing.T) {
	for _, name := range []string{"", "nearest", "box", "linear", "gaussian", "lanczos"} {
		_, err := resampleFilter(name)
		require.NoError(t, err)
	}

	_, err := resampleFilter("bicubic")
	assert.Error(t, err)
}

func TestResizeImageScaleFactors(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 100, 50))

	resized, scaleWidth, scaleHeight := resizeImage(src, 200, 0, mustFilter(t, "box"), mustFilter(t, "box"))
	assert.Equal(t, 200, resized.Bounds().Dx())
	assert.Equal(t, 100, resized.Bounds().Dy())
	assert.InDelta(t, 2.0, scaleWidth, 1e-9)
	assert.InDelta(t, 2.0, scaleHeight, 1e-9)

	// Portrait images map the longer side to the height.
	portrait := image.NewGray(image.Rect(0, 0, 50, 100))
	resized, scaleWidth, scaleHeight = resizeImage(portrait, 50, 0, mustFilter(t, "box"), mustFilter(t, "box"))
	assert.Equal(t, 25, resized.Bounds().Dx())
	assert.Equal(t, 50, resized.Bounds().Dy())
	assert.InDelta(t, 0.5, scaleWidth, 1e-9)
	assert.InDelta(t, 0.5, scaleHeight, 1e-9)
}

func TestProcessAnnotatedImage(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	imagePath := writeTestPNG(t, srcDir, "frame.png", 100, 50)

	ir := &Image{
		ID:       1,
		Filename: "frame.png",
		Shape:    ImageShape{Width: 100, Height: 50, Depth: 1},
		Objects: []Object{{
			ClassName: "dog",
			Box:       Box{TopLeftX: 10, TopLeftY: 10, BottomRightX: 50, BottomRightY: 40},
		}},
	}

	processing := ImageProcessing{
		OutDir:      outDir,
		LongerSide:  200,
		Encoding:    "png",
		JPEGQuality: 90,
	}
	scaled, outPath, err := processAnnotatedImage(ir, imagePath, processing)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "frame.png"), outPath)
	assert.Equal(t, ImageShape{Width: 200, Height: 100, Depth: 1}, scaled.Shape)
	assert.Equal(t, "frame.png", scaled.Filename)
	require.Len(t, scaled.Objects, 1)
	assert.Equal(t, Box{TopLeftX: 20, TopLeftY: 20, BottomRightX: 100, BottomRightY: 80}, scaled.Objects[0].Box)

	shape, err := GetImageShape(outPath)
	require.NoError(t, err)
	assert.Equal(t, 200, shape.Width)
	assert.Equal(t, 100, shape.Height)
}

func mustFilter(t *testing.T, name string) imaging.ResampleFilter {
	t.Helper()
	filter, err := resampleFilter(name)
	require.NoError(t, err)
	return filter
}
