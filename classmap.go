package kekconv

import (
	"fmt"
	"os"
	"strconv"
)

// ClassMapper is the caller-supplied bidirectional lookup between integer
// class ids and string class names.
//
// The on-disk form is a JSON object in either orientation:
//
//	{"0": "dog", "1": "person"}   (Darknet mappers, id -> name)
//	{"dog": 0, "person": 1}       (PASCAL VOC mappers, name -> id)
//
// The orientation is detected from the value types; both lookups are always
// available.
type ClassMapper struct {
	idToName map[int]string
	nameToID map[string]int
}

// NewClassMapper builds a mapper from an id to name table.
func NewClassMapper(idToName map[int]string) *ClassMapper {
	m := &ClassMapper{
		idToName: make(map[int]string, len(idToName)),
		nameToID: make(map[string]int, len(idToName)),
	}
	for id, name := range idToName {
		m.idToName[id] = name
		m.nameToID[name] = id
	}
	return m
}

// LoadClassMapper reads a mapper JSON file in either orientation.
func LoadClassMapper(path string) (*ClassMapper, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := jsonAPI.Unmarshal(enc, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse class mapper %q: %v", path, err)
	}

	idToName := make(map[int]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			// id -> name, the key is the integer.
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("class mapper %q: key %q is not an integer id", path, key)
			}
			idToName[id] = v
		case float64:
			// name -> id.
			idToName[int(v)] = key
		default:
			return nil, fmt.Errorf("class mapper %q: unsupported value %v for key %q", path, value, key)
		}
	}

	return NewClassMapper(idToName), nil
}

// NameByID resolves a class id to its name. A miss is a LookupError.
func (m *ClassMapper) NameByID(id int) (string, error) {
	name, ok := m.idToName[id]
	if !ok {
		return "", &LookupError{Kind: "class id", Key: id}
	}
	return name, nil
}

// IDByName resolves a class name to its id. A miss is a LookupError.
func (m *ClassMapper) IDByName(name string) (int, error) {
	id, ok := m.nameToID[name]
	if !ok {
		return 0, &LookupError{Kind: "class name", Key: name}
	}
	return id, nil
}

// Len is the number of classes in the mapper.
func (m *ClassMapper) Len() int {
	return len(m.idToName)
}
