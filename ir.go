package kekconv

// The intermediate representation that all annotation formats convert
// through: one Image per annotated picture, holding its Objects.

import "sort"

// Keys for known attributes in the AdditionalData maps.
const (
	AttrImageID       = "image_id"      // Id of the parent image. Type int.
	AttrPath          = "path"          // Source image path. Type string.
	AttrFolder        = "folder"        // Source image directory name. Type string.
	AttrSupercategory = "supercategory" // MS COCO category parent. Type string.
)

// ImageShape is the pixel geometry of an image.
type ImageShape struct {
	Width  int
	Height int
	Depth  int
}

// Object is the intermediate representation of one annotated instance.
//
// AdditionalData holds every format-specific field that is not captured by
// the class or the box (PASCAL VOC pose/truncated/difficult, MS COCO
// segmentation/iscrowd, ...). Values are JSON-like: string, float64, bool,
// nil, map[string]interface{} or []interface{}.
type Object struct {
	ClassID        int
	ClassName      string
	Box            Box
	AdditionalData map[string]interface{}
}

// Image is the intermediate representation of one annotated picture. It is
// built by a decode call, read by an encode call, and never modified in
// between. Objects keep the order of the source annotation file.
type Image struct {
	ID             int
	Filename       string
	Shape          ImageShape
	Objects        []Object
	AdditionalData map[string]interface{}
}

// rescale returns a copy of the image with every box scaled by the given
// factors and the shape replaced, for use after the source image itself has
// been resized. Fractional results are truncated like every other
// float-to-pixel conversion.
func (img *Image) rescale(scaleWidth, scaleHeight float64, shape ImageShape) *Image {
	scaled := &Image{
		ID:             img.ID,
		Filename:       img.Filename,
		Shape:          shape,
		Objects:        make([]Object, len(img.Objects)),
		AdditionalData: copyAttributes(img.AdditionalData),
	}
	for i, obj := range img.Objects {
		scaledObj := obj
		scaledObj.AdditionalData = copyAttributes(obj.AdditionalData)
		scaledObj.Box = Box{
			TopLeftX:     int(float64(obj.Box.TopLeftX) * scaleWidth),
			TopLeftY:     int(float64(obj.Box.TopLeftY) * scaleHeight),
			BottomRightX: int(float64(obj.Box.BottomRightX) * scaleWidth),
			BottomRightY: int(float64(obj.Box.BottomRightY) * scaleHeight),
		}
		scaled.Objects[i] = scaledObj
	}
	return scaled
}

// copyAttributes makes a shallow copy of an AdditionalData map. Encoders
// work on copies so that decoded Images stay read-only.
func copyAttributes(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return copied
}

// CategoryRegistry accumulates MS COCO category records by id across a
// batch. Later entries for the same id overwrite earlier ones; merging an
// identical record is a no-op content-wise.
type CategoryRegistry map[int]map[string]interface{}

// Add records one category, overwriting any previous entry with the same id.
func (r CategoryRegistry) Add(id int, category map[string]interface{}) {
	r[id] = category
}

// Merge folds another registry into this one, last write wins.
func (r CategoryRegistry) Merge(other CategoryRegistry) {
	for id, category := range other {
		r[id] = category
	}
}

// List returns the categories as a slice ordered by id, which keeps the
// final document deterministic regardless of worker scheduling.
func (r CategoryRegistry) List() []map[string]interface{} {
	ids := make([]int, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	categories := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		categories = append(categories, r[id])
	}
	return categories
}
