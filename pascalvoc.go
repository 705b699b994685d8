package kekconv

// PASCAL VOC specific functionality. One .xml annotation document per image
// with an <annotation> root.
//
// Beyond the well-known tags (filename, size, object/name, object/bndbox),
// VOC files carry arbitrary nested metadata (pose, truncated, part trees,
// custom extensions). Unknown subtrees are folded into the AdditionalData
// maps through a generic element-tree <-> map conversion so that encoding
// reproduces them.

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"
)

// Reserved keys in folded XML maps.
const (
	xmlTextKey  = "#text"       // Trailing text of an element that also has children.
	xmlAttrsKey = "#attributes" // Attribute map of an element.
)

// Tags handled explicitly during decode; everything else is additional data.
var (
	vocMainImageTags  = map[string]bool{"filename": true, "size": true, "object": true}
	vocMainObjectTags = map[string]bool{"name": true, "bndbox": true}
)

// FromPascalVOC reads the companion .xml annotation of the image at
// imagePath and converts it to the intermediate representation.
//
// A missing <filename> tag or a missing/malformed <size> tag is recoverable:
// a warning is logged and the image file itself supplies the value. A
// missing object <name> or an incomplete <bndbox> is a StructuralError.
func FromPascalVOC(imagePath string, imageID int, classes *ClassMapper, annotationDir string) (*Image, error) {
	if classes == nil {
		return nil, fmt.Errorf("PASCAL VOC conversion requires a class mapper")
	}

	xmlPath := ConstructAnnotationFilePath(imagePath, ".xml", annotationDir)
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(xmlPath); err != nil {
		return nil, fmt.Errorf("cannot parse %q: %v", xmlPath, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "annotation" {
		return nil, &StructuralError{File: filepath.Base(xmlPath), Reason: "missing <annotation> root"}
	}
	xmlName := filepath.Base(xmlPath)

	// Image filename, with the real file name as fallback.
	filename := filepath.Base(imagePath)
	if el := root.SelectElement("filename"); el != nil && strings.TrimSpace(el.Text()) != "" {
		filename = strings.TrimSpace(el.Text())
	} else {
		log.Warnf("Annotation file %s has no filename tag, using the image file name", xmlName)
	}

	// Image shape, probing the image when the size tag is absent or broken.
	shape, ok := vocSize(root)
	if !ok {
		probed, err := GetImageShape(imagePath)
		if err != nil {
			return nil, err
		}
		shape = probed
	}

	extras := make(map[string]interface{})
	var objects []Object
	for _, el := range root.ChildElements() {
		switch {
		case el.Tag == "object":
			obj, err := vocObject(el, xmlName, imageID, classes)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
		case !vocMainImageTags[el.Tag]:
			foldElement(extras, el)
		}
	}

	// The document's own values win over the derived path and folder.
	imageData := map[string]interface{}{
		AttrPath:   imagePath,
		AttrFolder: filepath.Base(filepath.Dir(imagePath)),
	}
	for k, v := range extras {
		imageData[k] = v
	}

	return &Image{
		ID:             imageID,
		Filename:       filename,
		Shape:          shape,
		Objects:        objects,
		AdditionalData: imageData,
	}, nil
}

// vocSize reads the <size> tag. ok is false when the tag or any of its three
// dimensions is absent or not an integer.
func vocSize(root *etree.Element) (ImageShape, bool) {
	size := root.SelectElement("size")
	if size == nil {
		return ImageShape{}, false
	}

	dims := [3]int{}
	for i, tag := range []string{"width", "height", "depth"} {
		el := size.SelectElement(tag)
		if el == nil {
			return ImageShape{}, false
		}
		v, err := strconv.Atoi(strings.TrimSpace(el.Text()))
		if err != nil {
			return ImageShape{}, false
		}
		dims[i] = v
	}

	return ImageShape{Width: dims[0], Height: dims[1], Depth: dims[2]}, true
}

// vocObject converts one <object> element.
func vocObject(el *etree.Element, xmlName string, imageID int, classes *ClassMapper) (Object, error) {
	name := el.SelectElement("name")
	if name == nil {
		return Object{}, &StructuralError{File: xmlName, Reason: "object without class name"}
	}
	className := strings.TrimSpace(name.Text())
	if className == "" {
		return Object{}, &StructuralError{File: xmlName, Reason: "object with empty <name></name> tag"}
	}

	classID, err := classes.IDByName(className)
	if err != nil {
		return Object{}, err
	}

	box, err := vocBndbox(el, xmlName)
	if err != nil {
		return Object{}, err
	}

	objectData := make(map[string]interface{})
	for _, child := range el.ChildElements() {
		if !vocMainObjectTags[child.Tag] {
			foldElement(objectData, child)
		}
	}
	if _, ok := objectData[AttrImageID]; !ok {
		objectData[AttrImageID] = imageID
	}

	return Object{
		ClassID:        classID,
		ClassName:      className,
		Box:            box,
		AdditionalData: objectData,
	}, nil
}

// vocBndbox reads the four coordinates of an object's <bndbox>. The tag
// itself, each of the four children, and non-empty integer text are all
// required; each gap is its own structural error.
func vocBndbox(object *etree.Element, xmlName string) (Box, error) {
	bndbox := object.SelectElement("bndbox")
	if bndbox == nil {
		return Box{}, &StructuralError{File: xmlName, Reason: "object without bounding-box"}
	}

	coords := [4]int{}
	for i, tag := range []string{"xmin", "ymin", "xmax", "ymax"} {
		el := bndbox.SelectElement(tag)
		if el == nil {
			return Box{}, &StructuralError{File: xmlName, Reason: "object without coordinate tag <" + tag + ">"}
		}
		text := strings.TrimSpace(el.Text())
		if text == "" {
			return Box{}, &StructuralError{File: xmlName, Reason: "object with empty coordinate tag <" + tag + ">"}
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			return Box{}, &StructuralError{File: xmlName,
				Reason: fmt.Sprintf("coordinate tag <%s> has non-integer text %q", tag, text)}
		}
		coords[i] = v
	}

	return BoxFromVOC(VOCBox(coords)), nil
}

// foldElement folds one element into an additional-data map under its tag
// name. Repeated sibling tags collapse into a list, at every nesting level.
func foldElement(into map[string]interface{}, el *etree.Element) {
	value := elementToValue(el)
	switch existing := into[el.Tag].(type) {
	case nil:
		into[el.Tag] = value
	case []interface{}:
		into[el.Tag] = append(existing, value)
	default:
		into[el.Tag] = []interface{}{existing, value}
	}
}

// elementToValue folds an XML subtree into a JSON-like value: a leaf becomes
// its text, an element with children becomes a map of tag to value with
// repeated sibling tags collapsing into a list, trailing text of a non-leaf
// lands under #text and attributes under #attributes.
func elementToValue(el *etree.Element) interface{} {
	children := el.ChildElements()
	text := strings.TrimSpace(el.Text())

	if len(children) == 0 && len(el.Attr) == 0 {
		return text
	}

	value := make(map[string]interface{})
	if len(el.Attr) > 0 {
		attrs := make(map[string]interface{}, len(el.Attr))
		for _, a := range el.Attr {
			attrs[a.Key] = a.Value
		}
		value[xmlAttrsKey] = attrs
	}

	for _, child := range children {
		foldElement(value, child)
	}

	if text != "" {
		value[xmlTextKey] = text
	}

	return value
}

// appendValueToElement is the inverse of elementToValue: it regenerates the
// XML subtree for one folded key/value pair under parent.
func appendValueToElement(parent *etree.Element, key string, value interface{}) {
	if key == xmlAttrsKey {
		if attrs, ok := value.(map[string]interface{}); ok {
			for _, k := range sortedKeys(attrs) {
				parent.CreateAttr(k, xmlText(attrs[k]))
			}
		}
		return
	}
	if strings.HasPrefix(key, "#") {
		// Reserved text marker: the value is the parent's own text.
		parent.SetText(xmlText(value))
		return
	}

	switch v := value.(type) {
	case map[string]interface{}:
		child := parent.CreateElement(key)
		for _, k := range sortedKeys(v) {
			appendValueToElement(child, k, v[k])
		}
	case []interface{}:
		for _, item := range v {
			appendValueToElement(parent, key, item)
		}
	default:
		child := parent.CreateElement(key)
		child.SetText(xmlText(v))
	}
}

// xmlText renders a scalar additional-data value as element text.
func xmlText(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToPascalVOC converts the intermediate representation to a pretty-printed
// PASCAL VOC XML document without the XML declaration line.
func ToPascalVOC(img *Image) (string, error) {
	doc := etree.NewDocument()
	annotation := doc.CreateElement("annotation")

	filename := annotation.CreateElement("filename")
	filename.SetText(img.Filename)

	size := annotation.CreateElement("size")
	for _, dim := range []struct {
		tag   string
		value int
	}{{"width", img.Shape.Width}, {"height", img.Shape.Height}, {"depth", img.Shape.Depth}} {
		el := size.CreateElement(dim.tag)
		el.SetText(strconv.Itoa(dim.value))
	}

	for _, k := range sortedKeys(img.AdditionalData) {
		appendValueToElement(annotation, k, img.AdditionalData[k])
	}

	for _, obj := range img.Objects {
		objectEl := annotation.CreateElement("object")

		name := objectEl.CreateElement("name")
		name.SetText(obj.ClassName)

		bndbox := objectEl.CreateElement("bndbox")
		box := obj.Box.ToVOC()
		for i, tag := range []string{"xmin", "ymin", "xmax", "ymax"} {
			el := bndbox.CreateElement(tag)
			el.SetText(strconv.Itoa(box[i]))
		}

		for _, k := range sortedKeys(obj.AdditionalData) {
			appendValueToElement(objectEl, k, obj.AdditionalData[k])
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return out, nil
}
