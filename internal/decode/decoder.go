// internal/decode/decoder.go
package decode

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

// lineGrammar: flavor, single index digit, 0x plus four hex digits.
// Anything after the code is annotation and ignored.
var lineGrammar = regexp.MustCompile(`^(SMC|SP|CPU|OS)\s+\((\d)\)\s*:\s*0x([0-9a-fA-F]{4})`)

const osErrorDescription = "UEM / OS Error"

// Source provides the currently published catalog.
// catalog.Loader implements it.
type Source interface {
	Snapshot() *catalog.Snapshot
}

// Decoder turns protocol lines into DecodedCodes against the current catalog.
// It is safe for concurrent use; every Decode reads one snapshot.
type Decoder struct {
	src Source
	log zerolog.Logger
}

func NewDecoder(src Source, logger zerolog.Logger) *Decoder {
	return &Decoder{src: src, log: logger}
}

// Decode parses line and resolves it for variant. Lines that do not match
// the wire grammar return false.
func (d *Decoder) Decode(line string, variant catalog.ConsoleVariant) (DecodedCode, bool) {
	m := lineGrammar.FindStringSubmatch(line)
	if m == nil {
		d.log.Debug().Str(xlog.FieldLine, line).Msg("ignoring line")
		return DecodedCode{}, false
	}

	out := DecodedCode{
		Flavor: catalog.ParseCodeFlavor(m[1]),
		Index:  mustAtoi(m[2]),
		Code:   mustParseHex(m[3]),
	}

	// No curated OS error table exists; index 1 is always an OS error.
	if out.Flavor == catalog.FlavorOS && out.Index == 1 {
		out.Severity = catalog.SeverityError
		out.Name = fmt.Sprintf("OS_ERROR_E%d", out.Code)
		out.Description = osErrorDescription
		return out, true
	}

	resolve(d.src.Snapshot(), variant, &out)
	return out, true
}

// resolve fills severity, name and description through the fallback chain:
// exact row, specific bitmask rows, generic error mask. With no match the
// code is left bare.
func resolve(snap *catalog.Snapshot, variant catalog.ConsoleVariant, out *DecodedCode) {
	if snap == nil {
		return
	}
	flavor := out.Flavor

	// ---- exact ----
	for _, def := range snap.PostCodes {
		if def.Bitmask == nil && def.Flavor == flavor && def.Code == out.Code && def.Variants.Matches(variant) {
			out.Severity = severityOf(def.IsError)
			out.Name = flavor.String() + "_" + def.Name
			out.Description = def.Description
			return
		}
	}

	// ---- specific bitmask ----
	var matched []catalog.PostCodeDefinition
	for _, def := range snap.PostCodes {
		if def.Bitmask != nil && def.Flavor == flavor && def.Variants.Matches(variant) && out.Code&*def.Bitmask == def.Code {
			matched = append(matched, def)
		}
	}
	if len(matched) > 0 {
		// MSB patterns first. Stable so equal masks keep catalog order.
		slices.SortStableFunc(matched, func(a, b catalog.PostCodeDefinition) int {
			switch {
			case *a.Bitmask > *b.Bitmask:
				return -1
			case *a.Bitmask < *b.Bitmask:
				return 1
			}
			return 0
		})

		names := make([]string, len(matched))
		descs := make([]string, len(matched))
		isError := false
		for i, def := range matched {
			names[i] = def.Name
			descs[i] = def.Description
			isError = isError || def.IsError
		}
		out.Severity = severityOf(isError)
		out.Name = flavor.String() + "_" + strings.Join(names, "_")
		out.Description = strings.Join(descs, "\n")
		return
	}

	// ---- generic mask ----
	for _, mask := range snap.ErrorMasks {
		if mask.Flavor == flavor && mask.Variants.Matches(variant) && out.Code&mask.Bitmask == mask.Code {
			out.Severity = catalog.SeverityError
			out.Name = fmt.Sprintf("%s_%s_%04X", flavor, mask.Name, out.Code)
			out.Description = mask.Description
			return
		}
	}
}

func severityOf(isError bool) catalog.Severity {
	if isError {
		return catalog.SeverityError
	}
	return catalog.SeverityInfo
}

// The grammar guarantees well-formed digits. A failure here means grammar
// and parsing disagree, which is a bug.
func mustAtoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("decode: grammar matched bad index %q: %v", s, err))
	}
	return v
}

func mustParseHex(s string) uint32 {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		panic(fmt.Sprintf("decode: grammar matched bad code %q: %v", s, err))
	}
	return uint32(v)
}
