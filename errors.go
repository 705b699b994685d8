package kekconv

import "fmt"

// LookupError reports a key missing from a caller-supplied mapping: a class
// id or name absent from the class mapper, or a category id absent from the
// MS COCO category table. It is fatal for the file being converted.
type LookupError struct {
	Kind string      // What kind of key was looked up, e.g. "class id".
	Key  interface{} // The missing key.
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no %s %v in the mapping", e.Kind, e.Key)
}

// StructuralError reports a malformed annotation: a required part is missing
// or empty. It is fatal for the file being converted; recoverable metadata
// gaps (missing filename, missing size) are warnings instead.
type StructuralError struct {
	File   string // The annotation file.
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("annotation file %s: %s", e.File, e.Reason)
}
