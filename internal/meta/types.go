// internal/meta/types.go
package meta

import (
	"fmt"
	"time"
)

// Type tags which definition list a catalog file contributes to.
type Type int

const (
	PostCodes Type = iota
	OSErrors
	ErrorMasks
)

var typeNames = [...]string{
	PostCodes:  "PostCodes",
	OSErrors:   "OSErrors",
	ErrorMasks: "ErrorMasks",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is one of the known tags.
func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(typeNames)
}

// Entry references one catalog file relative to the metadata base location.
// Hash is opaque content identity; nothing compares it yet.
type Entry struct {
	Type Type   `json:"metaType"`
	Path string `json:"path"`
	Hash Hash   `json:"hash"`
}

// Definition is the meta index: which catalog files exist and when the
// set was last updated.
type Definition struct {
	FormatVersion int       `json:"formatVersion"`
	Updated       time.Time `json:"updated"`
	Items         []Entry   `json:"items"`
}

// NewerThan reports whether d was updated strictly after other.
// Ordering is defined by Updated alone.
func (d *Definition) NewerThan(other *Definition) bool {
	return d.Updated.After(other.Updated)
}
