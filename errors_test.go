package kekconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	lookupErr := &LookupError{Kind: "class id", Key: 7}
	assert.Equal(t, "no class id 7 in the mapping", lookupErr.Error())

	structuralErr := &StructuralError{File: "frame.xml", Reason: "object without bounding-box"}
	assert.Equal(t, "annotation file frame.xml: object without bounding-box", structuralErr.Error())
}
