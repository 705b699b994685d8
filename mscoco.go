package kekconv

// MS COCO specific functionality. COCO datasets ship in two layouts:
//
//   - "simple": one {"image": {...}, "annotation": [...]} JSON file per
//     image, with the category list in a separate file;
//   - "hard": the standard COCO layout, one shared JSON document with
//     images/annotations/categories arrays for the whole dataset.
//
// Category ids are 1-based on disk and 0-based in the intermediate
// representation.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// COCOIndex holds the three lookup tables a hard-mode dataset is queried
// through. It is built once per dataset, before any image is processed, and
// is read-only afterwards, so it can be shared across workers freely.
type COCOIndex struct {
	Images      map[string]map[string]interface{} // file name -> image record
	Annotations map[int][]map[string]interface{}  // image id -> annotation records
	Categories  map[int]map[string]interface{}    // category id -> category record
}

// LoadCOCOIndex reads a shared COCO JSON document and builds its index.
func LoadCOCOIndex(path string) (*COCOIndex, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Images      []map[string]interface{} `json:"images"`
		Annotations []map[string]interface{} `json:"annotations"`
		Categories  []map[string]interface{} `json:"categories"`
	}
	if err := jsonAPI.Unmarshal(enc, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse COCO input from %q: %v", path, err)
	}

	index := &COCOIndex{
		Images:      make(map[string]map[string]interface{}, len(doc.Images)),
		Annotations: make(map[int][]map[string]interface{}, len(doc.Images)),
		Categories:  make(map[int]map[string]interface{}, len(doc.Categories)),
	}
	for _, image := range doc.Images {
		name, ok := image["file_name"].(string)
		if !ok {
			return nil, fmt.Errorf("COCO image record without file_name in %q", path)
		}
		index.Images[name] = image
	}
	for _, annotation := range doc.Annotations {
		id, ok := coerceInt(annotation["image_id"])
		if !ok {
			return nil, fmt.Errorf("COCO annotation record without image_id in %q", path)
		}
		index.Annotations[id] = append(index.Annotations[id], annotation)
	}
	for _, category := range doc.Categories {
		id, ok := coerceInt(category["id"])
		if !ok {
			return nil, fmt.Errorf("COCO category record without id in %q", path)
		}
		index.Categories[id] = category
	}

	return index, nil
}

// LoadCOCOCategories reads a standalone category array (the simple-mode
// companion file) into an id-keyed table.
func LoadCOCOCategories(path string) (map[int]map[string]interface{}, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []map[string]interface{}
	if err := jsonAPI.Unmarshal(enc, &list); err != nil {
		return nil, fmt.Errorf("failed to parse COCO categories from %q: %v", path, err)
	}

	categories := make(map[int]map[string]interface{}, len(list))
	for _, category := range list {
		id, ok := coerceInt(category["id"])
		if !ok {
			return nil, fmt.Errorf("COCO category record without id in %q", path)
		}
		categories[id] = category
	}
	return categories, nil
}

// LoadCOCOSection reads an auxiliary JSON document (info or licenses) to be
// passed through verbatim into the final hard-mode document.
func LoadCOCOSection(path string) (interface{}, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var section interface{}
	if err := jsonAPI.Unmarshal(enc, &section); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %v", path, err)
	}
	return section, nil
}

// coerceInt converts the id representations found in COCO files (JSON
// numbers, occasionally strings) to int.
func coerceInt(v interface{}) (int, bool) {
	switch v := v.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// FromCOCOSimple reads the companion per-image .json annotation of the image
// at imagePath. The category table comes from the dataset-wide companion
// file, supplied by the caller.
func FromCOCOSimple(imagePath string, imageID int, annotationDir string,
	categories map[int]map[string]interface{}) (*Image, error) {

	jsonPath := ConstructAnnotationFilePath(imagePath, ".json", annotationDir)
	enc, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}

	var file struct {
		Image      map[string]interface{}   `json:"image"`
		Annotation []map[string]interface{} `json:"annotation"`
	}
	if err := jsonAPI.Unmarshal(enc, &file); err != nil {
		return nil, fmt.Errorf("failed to parse COCO input from %q: %v", jsonPath, err)
	}

	return cocoToImage(file.Image, file.Annotation, categories, imagePath, imageID, filepath.Base(jsonPath))
}

// FromCOCOHard converts one image out of a pre-indexed hard-mode dataset.
func FromCOCOHard(imagePath string, index *COCOIndex) (*Image, error) {
	name := filepath.Base(imagePath)
	imageRecord, ok := index.Images[name]
	if !ok {
		return nil, &LookupError{Kind: "image file name", Key: name}
	}

	id, ok := coerceInt(imageRecord["id"])
	if !ok {
		return nil, &StructuralError{File: name, Reason: "COCO image record without id"}
	}

	return cocoToImage(imageRecord, index.Annotations[id], index.Categories, imagePath, id, name)
}

// cocoToImage builds the intermediate representation from one COCO image
// record and its annotation records.
func cocoToImage(imageRecord map[string]interface{}, annotations []map[string]interface{},
	categories map[int]map[string]interface{}, imagePath string, fallbackID int,
	annotationName string) (*Image, error) {

	id := fallbackID
	if v, ok := coerceInt(imageRecord["id"]); ok {
		id = v
	}

	filename, _ := imageRecord["file_name"].(string)
	if filename == "" {
		log.Warnf("Annotation file %s has no file_name, using the image file name", annotationName)
		filename = filepath.Base(imagePath)
	}

	// COCO has no depth field; probe the image only when the geometry is
	// missing entirely and assume three channels otherwise.
	var shape ImageShape
	width, widthOK := coerceInt(imageRecord["width"])
	height, heightOK := coerceInt(imageRecord["height"])
	if widthOK && heightOK {
		shape = ImageShape{Width: width, Height: height, Depth: 3}
	} else {
		probed, err := GetImageShape(imagePath)
		if err != nil {
			return nil, err
		}
		shape = probed
	}

	imageData := make(map[string]interface{})
	for k, v := range imageRecord {
		switch k {
		case "id", "file_name", "width", "height":
		default:
			imageData[k] = v
		}
	}

	objects, err := cocoObjects(annotations, categories, annotationName)
	if err != nil {
		return nil, err
	}

	return &Image{
		ID:             id,
		Filename:       filename,
		Shape:          shape,
		Objects:        objects,
		AdditionalData: imageData,
	}, nil
}

// cocoObjects converts COCO annotation records to Objects. Every annotation
// key other than category_id and bbox is carried into AdditionalData, along
// with the fields of the matched category record except its id and name.
func cocoObjects(annotations []map[string]interface{},
	categories map[int]map[string]interface{}, annotationName string) ([]Object, error) {

	objects := make([]Object, 0, len(annotations))
	for _, annotation := range annotations {
		rawID, ok := annotation["category_id"]
		if !ok {
			return nil, &StructuralError{File: annotationName, Reason: "annotation without category_id"}
		}

		category, categoryID, err := lookupCategory(categories, rawID)
		if err != nil {
			return nil, err
		}
		className, _ := category["name"].(string)
		if className == "" {
			return nil, &StructuralError{File: annotationName,
				Reason: fmt.Sprintf("category %d has no name", categoryID)}
		}

		box, err := cocoBBox(annotation["bbox"])
		if err != nil {
			return nil, &StructuralError{File: annotationName, Reason: err.Error()}
		}

		objectData := make(map[string]interface{})
		for k, v := range annotation {
			switch k {
			case "category_id", "bbox":
			default:
				objectData[k] = v
			}
		}
		for k, v := range category {
			switch k {
			case "id", "name":
			default:
				objectData[k] = v
			}
		}

		objects = append(objects, Object{
			ClassID:        categoryID - 1,
			ClassName:      className,
			Box:            box,
			AdditionalData: objectData,
		})
	}

	return objects, nil
}

// lookupCategory resolves a category id as it appears in an annotation
// record. A direct match is tried first; on a miss the id is coerced to an
// integer and retried, because some category files key their records by
// string ids.
func lookupCategory(categories map[int]map[string]interface{},
	rawID interface{}) (map[string]interface{}, int, error) {

	if id, ok := rawID.(int); ok {
		if category, found := categories[id]; found {
			return category, id, nil
		}
	}
	id, ok := coerceInt(rawID)
	if !ok {
		return nil, 0, &LookupError{Kind: "category id", Key: rawID}
	}
	category, found := categories[id]
	if !found {
		return nil, 0, &LookupError{Kind: "category id", Key: rawID}
	}
	return category, id, nil
}

// cocoBBox reads a [x, y, width, height] bbox array.
func cocoBBox(raw interface{}) (Box, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) != 4 {
		return Box{}, fmt.Errorf("annotation without a 4-element bbox")
	}

	var coords COCOBox
	for i, v := range list {
		f, ok := v.(float64)
		if !ok {
			if n, nOK := coerceInt(v); nOK {
				f = float64(n)
			} else {
				return Box{}, fmt.Errorf("bbox element %v is not a number", v)
			}
		}
		coords[i] = f
	}

	return BoxFromCOCO(coords), nil
}

// ToCOCOSimple converts the intermediate representation to a per-image
// simple-mode document plus the category fragment the batch layer
// accumulates across images.
func ToCOCOSimple(img *Image) (map[string]interface{}, CategoryRegistry) {
	imageRecord, annotations, categories := cocoFromImage(img)
	return map[string]interface{}{
		"image":      imageRecord,
		"annotation": annotations,
	}, categories
}

// ToCOCOHard converts the intermediate representation to the pieces appended
// into a shared hard-mode document: the image record, its annotation records
// and a category fragment.
func ToCOCOHard(img *Image) (map[string]interface{}, []map[string]interface{}, CategoryRegistry) {
	return cocoFromImage(img)
}

func cocoFromImage(img *Image) (map[string]interface{}, []map[string]interface{}, CategoryRegistry) {
	imageRecord := copyAttributes(img.AdditionalData)
	if imageRecord == nil {
		imageRecord = make(map[string]interface{}, 4)
	}
	imageRecord["id"] = img.ID
	imageRecord["file_name"] = img.Filename
	imageRecord["width"] = img.Shape.Width
	imageRecord["height"] = img.Shape.Height

	annotations := make([]map[string]interface{}, 0, len(img.Objects))
	categories := make(CategoryRegistry, len(img.Objects))
	for _, obj := range img.Objects {
		annotation := copyAttributes(obj.AdditionalData)
		if annotation == nil {
			annotation = make(map[string]interface{}, 3)
		}
		categoryID := obj.ClassID + 1
		annotation["category_id"] = categoryID
		box := obj.Box.ToCOCO()
		annotation["bbox"] = []int{box[0], box[1], box[2], box[3]}
		if _, ok := annotation[AttrImageID]; !ok {
			annotation[AttrImageID] = img.ID
		}
		annotations = append(annotations, annotation)

		category := map[string]interface{}{"id": categoryID, "name": obj.ClassName}
		if supercategory, ok := obj.AdditionalData[AttrSupercategory]; ok {
			category[AttrSupercategory] = supercategory
		}
		categories.Add(categoryID, category)
	}

	return imageRecord, annotations, categories
}

// COCODocument accumulates the shared hard-mode output for a whole batch.
// Workers build one document per chunk; the chunk documents are merged in
// chunk order once the pool has drained, so the result is deterministic.
type COCODocument struct {
	Info        interface{}
	Licenses    interface{}
	Images      []map[string]interface{}
	Annotations []map[string]interface{}
	Categories  CategoryRegistry
}

// NewCOCODocument returns an empty document. The slices start allocated so
// an empty batch still renders JSON arrays, not nulls.
func NewCOCODocument() *COCODocument {
	return &COCODocument{
		Images:      []map[string]interface{}{},
		Annotations: []map[string]interface{}{},
		Categories:  make(CategoryRegistry),
	}
}

// Append adds one converted image to the document.
func (d *COCODocument) Append(image map[string]interface{},
	annotations []map[string]interface{}, categories CategoryRegistry) {

	d.Images = append(d.Images, image)
	d.Annotations = append(d.Annotations, annotations...)
	d.Categories.Merge(categories)
}

// Merge folds another (partial) document into this one.
func (d *COCODocument) Merge(other *COCODocument) {
	d.Images = append(d.Images, other.Images...)
	d.Annotations = append(d.Annotations, other.Annotations...)
	d.Categories.Merge(other.Categories)
}

// Document renders the final top-level COCO structure.
func (d *COCODocument) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"images":      d.Images,
		"annotations": d.Annotations,
		"categories":  d.Categories.List(),
	}
	if d.Info != nil {
		doc["info"] = d.Info
	}
	if d.Licenses != nil {
		doc["licenses"] = d.Licenses
	}
	return doc
}

// WriteFile writes the document as indented JSON.
func (d *COCODocument) WriteFile(path string) error {
	enc, err := jsonAPI.MarshalIndent(d.Document(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", path, err)
	}
	return nil
}

// WriteCOCOCategories writes the accumulated simple-mode category list,
// deduplicated by id.
func WriteCOCOCategories(path string, categories CategoryRegistry) error {
	enc, err := jsonAPI.MarshalIndent(categories.List(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", path, err)
	}
	return nil
}
