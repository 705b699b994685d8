package kekconv

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// GetImageShape probes the dimensions of the image file at path without
// decoding the pixel data. It is the fallback used when an annotation format
// does not carry the image size itself.
func GetImageShape(path string) (ImageShape, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageShape{}, err
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return ImageShape{}, fmt.Errorf("cannot probe image %q: %v", path, err)
	}

	return ImageShape{Width: config.Width, Height: config.Height, Depth: depthOf(config.ColorModel)}, nil
}

// depthOf maps a color model to a channel count.
func depthOf(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return 4
	default:
		return 3
	}
}

// resampleFilter selects the imaging filter for a name from the config.
func resampleFilter(name string) (imaging.ResampleFilter, error) {
	switch name {
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "box", "":
		return imaging.Box, nil
	case "linear":
		return imaging.Linear, nil
	case "gaussian":
		return imaging.Gaussian, nil
	case "lanczos":
		return imaging.Lanczos, nil
	}
	return imaging.ResampleFilter{}, fmt.Errorf("unknown resampling filter %q", name)
}

// resizeImage resamples the image to match the longer and shorter sides (one
// may be 0 to keep the aspect ratio).
//
// Returns the resized image along with the width and height scale factors.
func resizeImage(img image.Image, longerSide, shorterSide int,
	downsample, upsample imaging.ResampleFilter) (image.Image, float64, float64) {

	bounds := img.Bounds()
	imgWidth := bounds.Dx()
	imgHeight := bounds.Dy()

	imgLonger := imgWidth
	imgShorter := imgHeight
	isLandscape := true
	if imgHeight > imgWidth {
		imgLonger = imgHeight
		imgShorter = imgWidth
		isLandscape = false
	}

	if longerSide <= 0 {
		longerSide = int(math.Round(float64(shorterSide) * (float64(imgLonger) / float64(imgShorter))))
	} else if shorterSide <= 0 {
		shorterSide = int(math.Round(float64(longerSide) * (float64(imgShorter) / float64(imgLonger))))
	}

	filter := upsample
	if longerSide*shorterSide < imgWidth*imgHeight {
		filter = downsample
	}

	if isLandscape {
		resized := imaging.Resize(img, longerSide, shorterSide, filter)
		return resized, float64(longerSide) / float64(imgLonger), float64(shorterSide) / float64(imgShorter)
	}
	resized := imaging.Resize(img, shorterSide, longerSide, filter)
	return resized, float64(shorterSide) / float64(imgShorter), float64(longerSide) / float64(imgLonger)
}

// saveImage encodes img to path as PNG or JPEG, depending on the file
// extension of path.
func saveImage(path string, img image.Image, jpegQuality int) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(file, &err)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(file, img)
	default:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: jpegQuality})
	}
	return err
}

// ImageProcessing describes the optional resize step applied between decode
// and encode. Zero values for both sides disable it.
type ImageProcessing struct {
	OutDir       string
	LongerSide   int
	ShorterSide  int
	Downsampling string
	Upsampling   string
	Encoding     string // "jpg" or "png".
	JPEGQuality  int
}

func (p ImageProcessing) enabled() bool {
	return p.LongerSide > 0 || p.ShorterSide > 0
}

// processAnnotatedImage resizes the source image behind ir, writes the
// processed copy to p.OutDir, and returns a rescaled intermediate
// representation plus the path of the processed image file.
func processAnnotatedImage(ir *Image, srcPath string, p ImageProcessing) (*Image, string, error) {
	downsample, err := resampleFilter(p.Downsampling)
	if err != nil {
		return nil, "", err
	}
	upsample, err := resampleFilter(p.Upsampling)
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Open(srcPath)
	if err != nil {
		return nil, "", fmt.Errorf("cannot load image %q: %v", srcPath, err)
	}

	resized, scaleWidth, scaleHeight := resizeImage(img, p.LongerSide, p.ShorterSide, downsample, upsample)

	outExt := ".jpg"
	if strings.EqualFold(p.Encoding, "png") {
		outExt = ".png"
	}
	_, baseNoExt, _, err := splitPath(srcPath)
	if err != nil {
		return nil, "", err
	}
	outPath := filepath.Join(p.OutDir, baseNoExt+outExt)
	if err := saveImage(outPath, resized, p.JPEGQuality); err != nil {
		return nil, "", fmt.Errorf("cannot write image %q: %v", outPath, err)
	}

	shape := ImageShape{
		Width:  resized.Bounds().Dx(),
		Height: resized.Bounds().Dy(),
		Depth:  ir.Shape.Depth,
	}
	scaled := ir.rescale(scaleWidth, scaleHeight, shape)
	scaled.Filename = filepath.Base(outPath)

	return scaled, outPath, nil
}
