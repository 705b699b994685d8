package kekconv

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPNG writes a grayscale PNG of the given size and returns its path.
func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, image.NewGray(image.Rect(0, 0, width, height))))
	require.NoError(t, file.Close())
	return path
}

func TestFromDarknet(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 100, 100)
	writeTempFile(t, dir, "frame.txt", "0 0.5 0.5 0.5 0.5\n\n1 0.35 0.35 0.5 0.5\n")
	classes := NewClassMapper(map[int]string{0: "dog", 1: "person"})

	img, err := FromDarknet(imagePath, 3, classes, "")
	require.NoError(t, err)

	assert.Equal(t, 3, img.ID)
	assert.Equal(t, "frame.png", img.Filename)
	assert.Equal(t, ImageShape{Width: 100, Height: 100, Depth: 1}, img.Shape)

	require.Len(t, img.Objects, 2)
	assert.Equal(t, "dog", img.Objects[0].ClassName)
	assert.Equal(t, Box{TopLeftX: 25, TopLeftY: 25, BottomRightX: 75, BottomRightY: 75}, img.Objects[0].Box)
	assert.Equal(t, "person", img.Objects[1].ClassName)
	assert.Equal(t, Box{TopLeftX: 10, TopLeftY: 10, BottomRightX: 60, BottomRightY: 60}, img.Objects[1].Box)
	assert.Equal(t, 3, img.Objects[0].AdditionalData[AttrImageID])
}

func TestFromDarknetEmptyLabelFile(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "empty.png", 20, 10)
	writeTempFile(t, dir, "empty.txt", "")

	img, err := FromDarknet(imagePath, 0, NewClassMapper(nil), "")
	require.NoError(t, err)
	assert.Empty(t, img.Objects)
}

func TestFromDarknetUnknownClassID(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 100, 100)
	writeTempFile(t, dir, "frame.txt", "5 0.5 0.5 0.5 0.5\n")

	_, err := FromDarknet(imagePath, 0, NewClassMapper(map[int]string{0: "dog"}), "")
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, 5, lookupErr.Key)
}

func TestFromDarknetMalformedLine(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 100, 100)
	writeTempFile(t, dir, "frame.txt", "not-a-label\n")

	_, err := FromDarknet(imagePath, 0, NewClassMapper(map[int]string{0: "dog"}), "")
	assert.Error(t, err)
}

func TestFromDarknetWithAnnotationDir(t *testing.T) {
	imageDir := t.TempDir()
	labelDir := t.TempDir()
	imagePath := writeTestPNG(t, imageDir, "frame.png", 100, 100)
	writeTempFile(t, labelDir, "frame.txt", "0 0.5 0.5 0.2 0.2\n")

	img, err := FromDarknet(imagePath, 0, NewClassMapper(map[int]string{0: "dog"}), labelDir)
	require.NoError(t, err)
	require.Len(t, img.Objects, 1)
}

func TestToDarknetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestPNG(t, dir, "frame.png", 100, 100)
	lines := "0 0.5 0.5 0.5 0.5\n1 0.35 0.35 0.5 0.5\n"
	writeTempFile(t, dir, "frame.txt", lines)
	classes := NewClassMapper(map[int]string{0: "dog", 1: "person"})

	img, err := FromDarknet(imagePath, 0, classes, "")
	require.NoError(t, err)

	out := ToDarknet(img)
	require.Len(t, out, 2)
	assert.Equal(t, "0 0.5 0.5 0.5 0.5\n", out[0])
	assert.Equal(t, "1 0.35 0.35 0.5 0.5\n", out[1])
}
