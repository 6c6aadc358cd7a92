// internal/catalog/types.go
package catalog

import "strings"

// ConsoleVariant identifies the hardware SKU a catalog row applies to.
type ConsoleVariant int

const (
	VariantAll ConsoleVariant = iota // wildcard
	VariantXboxOnePhat
	VariantXboxOneS
	VariantXboxOneX
	VariantXboxSeriesS
	VariantXboxSeriesX
	VariantUnknown
)

var variantTokens = map[ConsoleVariant]string{
	VariantAll:         "ALL",
	VariantXboxOnePhat: "XOP",
	VariantXboxOneS:    "XOS",
	VariantXboxOneX:    "XOX",
	VariantXboxSeriesS: "XSS",
	VariantXboxSeriesX: "XSX",
	VariantUnknown:     "UNK",
}

// ParseConsoleVariant maps a short catalog token to a variant.
// Unrecognised tokens map to VariantUnknown.
func ParseConsoleVariant(token string) ConsoleVariant {
	token = strings.ToUpper(strings.TrimSpace(token))
	for v, t := range variantTokens {
		if t == token && v != VariantUnknown {
			return v
		}
	}
	return VariantUnknown
}

func (v ConsoleVariant) String() string {
	if t, ok := variantTokens[v]; ok {
		return t
	}
	return "UNK"
}

// CodeFlavor is the subsystem that emitted a code.
type CodeFlavor int

const (
	FlavorUnknown CodeFlavor = iota
	FlavorSMC
	FlavorSP
	FlavorCPU
	FlavorOS
)

// ParseCodeFlavor maps a wire or catalog token. Anything else is FlavorUnknown.
func ParseCodeFlavor(token string) CodeFlavor {
	switch strings.TrimSpace(token) {
	case "SMC":
		return FlavorSMC
	case "SP":
		return FlavorSP
	case "CPU":
		return FlavorCPU
	case "OS":
		return FlavorOS
	default:
		return FlavorUnknown
	}
}

func (f CodeFlavor) String() string {
	switch f {
	case FlavorSMC:
		return "SMC"
	case FlavorSP:
		return "SP"
	case FlavorCPU:
		return "CPU"
	case FlavorOS:
		return "OS"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the flavor token in JSON and logs.
func (f CodeFlavor) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Severity of a decoded code. The zero value is Info.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ---- definitions ----

// Variants is the console set of a catalog row.
type Variants []ConsoleVariant

// Matches reports whether a row with this set applies to v.
// A set whose first element is ALL matches every variant.
func (vs Variants) Matches(v ConsoleVariant) bool {
	if len(vs) == 0 {
		return false
	}
	if vs[0] == VariantAll {
		return true
	}
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// PostCodeDefinition is one post-code row. A nil Bitmask makes it an exact
// row; otherwise it matches codes where (observed & Bitmask) == Code.
type PostCodeDefinition struct {
	Variants    Variants
	Flavor      CodeFlavor
	Code        uint32
	Bitmask     *uint32
	IsError     bool
	Name        string
	Description string
}

// ErrorMaskDefinition is a generic catch-all mask, used as the last fallback.
type ErrorMaskDefinition struct {
	Variants    Variants
	Flavor      CodeFlavor
	Code        uint32
	Bitmask     uint32
	IsError     bool
	Name        string
	Description string
}

// OSErrorDefinition is an OS error row. It has no bitmask support.
type OSErrorDefinition struct {
	Variants    Variants
	Flavor      CodeFlavor
	Code        uint32
	Name        string
	Description string
}
