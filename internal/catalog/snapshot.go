// internal/catalog/snapshot.go
package catalog

import "time"

// Snapshot is one immutable, fully built catalog.
// Readers hold a pointer; a refresh publishes a new Snapshot instead of
// mutating the current one.
type Snapshot struct {
	PostCodes  []PostCodeDefinition
	ErrorMasks []ErrorMaskDefinition
	OSErrors   []OSErrorDefinition

	Updated time.Time // meta index timestamp the snapshot was built from
	Built   time.Time
}

var emptySnapshot = &Snapshot{}

// Counts returns the number of definitions per list.
func (s *Snapshot) Counts() (postCodes, errorMasks, osErrors int) {
	return len(s.PostCodes), len(s.ErrorMasks), len(s.OSErrors)
}
