// internal/decode/types.go
package decode

import (
	"fmt"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
)

// DecodedCode is the result of decoding one protocol line.
type DecodedCode struct {
	Flavor      catalog.CodeFlavor `json:"flavor"`
	Index       int                `json:"index"`
	Code        uint32             `json:"code"`
	Severity    catalog.Severity   `json:"severity"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Key is the identity of a DecodedCode. Name and Description are not part of it.
type Key struct {
	Flavor   catalog.CodeFlavor
	Index    int
	Code     uint32
	Severity catalog.Severity
}

func (d DecodedCode) Key() Key {
	return Key{Flavor: d.Flavor, Index: d.Index, Code: d.Code, Severity: d.Severity}
}

// Equal compares identity only.
func (d DecodedCode) Equal(other DecodedCode) bool {
	return d.Key() == other.Key()
}

// Format renders the code the way the monitor prints it:
//
//	SMC  (0): 00C1	- SMC_FATAL_V12
//		- V_12P0 not available
func (d DecodedCode) Format() string {
	return fmt.Sprintf("%-4s (%d): %04X\t- %s\n\t- %s", d.Flavor, d.Index, d.Code, d.Name, d.Description)
}

func (d DecodedCode) String() string {
	if d.Name == "" {
		return fmt.Sprintf("%s(%d) 0x%04X", d.Flavor, d.Index, d.Code)
	}
	return fmt.Sprintf("%s(%d) 0x%04X %s", d.Flavor, d.Index, d.Code, d.Name)
}
