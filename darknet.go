package kekconv

// Darknet specific functionality. One .txt label file per image, one object
// per line:
//
//	<class_id> <center_x> <center_y> <width> <height>
//
// with the four box fields normalized to the image dimensions.

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// FromDarknet reads the companion label file of the image at imagePath and
// converts it to the intermediate representation.
//
// Darknet labels carry no image geometry, so the image file itself is always
// probed for its shape. The class id text before the first space resolves to
// a name through the mapper; an unknown id is a LookupError. An empty label
// file is a valid image with no objects.
func FromDarknet(imagePath string, imageID int, classes *ClassMapper, annotationDir string) (*Image, error) {
	labelPath := ConstructAnnotationFilePath(imagePath, ".txt", annotationDir)
	lines, err := readLines(labelPath)
	if err != nil {
		return nil, err
	}

	shape, err := GetImageShape(imagePath)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		obj, err := parseDarknetLine(line, shape, imageID, classes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", labelPath, err)
		}
		objects = append(objects, obj)
	}

	return &Image{
		ID:       imageID,
		Filename: filepath.Base(imagePath),
		Shape:    shape,
		Objects:  objects,
	}, nil
}

// parseDarknetLine parses one label line into an Object. The text before the
// first space is the class id, the remainder is the box.
func parseDarknetLine(line string, shape ImageShape, imageID int, classes *ClassMapper) (Object, error) {
	line = strings.TrimSpace(line)
	firstSpace := strings.IndexByte(line, ' ')
	if firstSpace < 0 {
		return Object{}, fmt.Errorf("malformed label line %q", line)
	}

	classID, err := strconv.Atoi(line[:firstSpace])
	if err != nil {
		return Object{}, fmt.Errorf("invalid class id in %q: %v", line, err)
	}
	className, err := classes.NameByID(classID)
	if err != nil {
		return Object{}, err
	}

	box, err := BoxFromDarknetString(line[firstSpace+1:], shape)
	if err != nil {
		return Object{}, err
	}

	return Object{
		ClassID:        classID,
		ClassName:      className,
		Box:            box,
		AdditionalData: map[string]interface{}{AttrImageID: imageID},
	}, nil
}

// ToDarknet converts the intermediate representation to Darknet label lines,
// one per object, in object order. Each line includes the trailing newline.
func ToDarknet(img *Image) []string {
	lines := make([]string, 0, len(img.Objects))
	for _, obj := range img.Objects {
		box := obj.Box.ToDarknet(img.Shape)
		fields := []string{
			strconv.Itoa(obj.ClassID),
			strconv.FormatFloat(box[0], 'f', -1, 64),
			strconv.FormatFloat(box[1], 'f', -1, 64),
			strconv.FormatFloat(box[2], 'f', -1, 64),
			strconv.FormatFloat(box[3], 'f', -1, 64),
		}
		lines = append(lines, strings.Join(fields, " ")+"\n")
	}
	return lines
}
