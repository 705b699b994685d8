package kekconv

// Format dispatch. The set of formats is a closed enum with one Codec per
// variant, so adding a format means adding a case the compiler checks, not a
// string key.

import (
	"fmt"
	"strings"
)

// Format identifies an annotation format.
type Format int

// The known annotation formats.
const (
	FormatDarknet Format = iota
	FormatPascalVOC
	FormatCOCOSimple
	FormatCOCOHard
	FormatTFRecord // Output only; handled as a stream by the batch layer.
)

// ParseFormat resolves a config format name. The single "mscoco" name splits
// into the simple and hard variants through the hard flag.
func ParseFormat(name string, cocoHard bool) (Format, error) {
	switch strings.ToLower(name) {
	case "darknet":
		return FormatDarknet, nil
	case "pascalvoc":
		return FormatPascalVOC, nil
	case "mscoco":
		if cocoHard {
			return FormatCOCOHard, nil
		}
		return FormatCOCOSimple, nil
	case "tfrecord":
		return FormatTFRecord, nil
	}
	return 0, fmt.Errorf("unknown annotation format %q", name)
}

func (f Format) String() string {
	switch f {
	case FormatDarknet:
		return "darknet"
	case FormatPascalVOC:
		return "pascalvoc"
	case FormatCOCOSimple:
		return "mscoco"
	case FormatCOCOHard:
		return "mscoco-hard"
	case FormatTFRecord:
		return "tfrecord"
	}
	return "unknown"
}

// Ext is the annotation file extension for per-file formats.
func (f Format) Ext() string {
	switch f {
	case FormatDarknet:
		return ".txt"
	case FormatPascalVOC:
		return ".xml"
	case FormatCOCOSimple, FormatCOCOHard:
		return ".json"
	}
	return ""
}

// PerFile reports whether encoding produces one annotation file per image.
func (f Format) PerFile() bool {
	switch f {
	case FormatDarknet, FormatPascalVOC, FormatCOCOSimple:
		return true
	}
	return false
}

// Env carries the read-only lookup tables a Codec works against. It is
// prepared once per run and shared across workers.
type Env struct {
	Classes       *ClassMapper                   // Darknet and PASCAL VOC.
	AnnotationDir string                         // Dir holding per-image annotation files.
	Categories    map[int]map[string]interface{} // COCO simple mode.
	Index         *COCOIndex                     // COCO hard mode.
}

// Encoded is the result of encoding one Image. Per-file formats fill Body;
// hard-mode COCO fills the aggregate parts instead; simple-mode COCO fills
// Body and the category fragment.
type Encoded struct {
	Body        []byte
	Image       map[string]interface{}
	Annotations []map[string]interface{}
	Categories  CategoryRegistry
}

// Codec decodes raw annotations into the intermediate representation and
// encodes it back out.
type Codec interface {
	Decode(imagePath string, imageID int, env *Env) (*Image, error)
	Encode(img *Image, env *Env) (*Encoded, error)
}

// Codec returns the codec for the format. TFRecord has none: it is written
// as a stream by the batch layer and cannot be decoded.
func (f Format) Codec() (Codec, error) {
	switch f {
	case FormatDarknet:
		return darknetCodec{}, nil
	case FormatPascalVOC:
		return pascalVOCCodec{}, nil
	case FormatCOCOSimple:
		return cocoSimpleCodec{}, nil
	case FormatCOCOHard:
		return cocoHardCodec{}, nil
	}
	return nil, fmt.Errorf("format %s has no codec", f)
}

type darknetCodec struct{}

func (darknetCodec) Decode(imagePath string, imageID int, env *Env) (*Image, error) {
	if env.Classes == nil {
		return nil, fmt.Errorf("darknet conversion requires a class mapper")
	}
	return FromDarknet(imagePath, imageID, env.Classes, env.AnnotationDir)
}

func (darknetCodec) Encode(img *Image, _ *Env) (*Encoded, error) {
	return &Encoded{Body: []byte(strings.Join(ToDarknet(img), ""))}, nil
}

type pascalVOCCodec struct{}

func (pascalVOCCodec) Decode(imagePath string, imageID int, env *Env) (*Image, error) {
	return FromPascalVOC(imagePath, imageID, env.Classes, env.AnnotationDir)
}

func (pascalVOCCodec) Encode(img *Image, _ *Env) (*Encoded, error) {
	xml, err := ToPascalVOC(img)
	if err != nil {
		return nil, err
	}
	return &Encoded{Body: []byte(xml)}, nil
}

type cocoSimpleCodec struct{}

func (cocoSimpleCodec) Decode(imagePath string, imageID int, env *Env) (*Image, error) {
	return FromCOCOSimple(imagePath, imageID, env.AnnotationDir, env.Categories)
}

func (cocoSimpleCodec) Encode(img *Image, _ *Env) (*Encoded, error) {
	doc, categories := ToCOCOSimple(img)
	enc, err := jsonAPI.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return &Encoded{Body: enc, Categories: categories}, nil
}

type cocoHardCodec struct{}

func (cocoHardCodec) Decode(imagePath string, _ int, env *Env) (*Image, error) {
	if env.Index == nil {
		return nil, fmt.Errorf("hard-mode MS COCO conversion requires a dataset index")
	}
	return FromCOCOHard(imagePath, env.Index)
}

func (cocoHardCodec) Encode(img *Image, _ *Env) (*Encoded, error) {
	image, annotations, categories := ToCOCOHard(img)
	return &Encoded{Image: image, Annotations: annotations, Categories: categories}, nil
}
