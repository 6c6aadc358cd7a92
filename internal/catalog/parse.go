// internal/catalog/parse.go
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the catalog record files, matched case-insensitively.
const (
	colConsole     = "console"
	colType        = "type"
	colCode        = "code"
	colBitmask     = "bitmask"
	colIsError     = "iserror"
	colName        = "name"
	colDescription = "description"
)

// record is one CSV row addressed by header name.
type record struct {
	line   int
	fields []string
	header map[string]int
}

func (r record) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// readRecords walks a header-led CSV stream. Rows rejected by fn are
// collected as errors and skipped. A CSV syntax error ends the walk.
func readRecords(r io.Reader, fn func(record) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog: read header: %w", err)
	}

	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var errs []error
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The reader position is unknown after a syntax error.
			errs = append(errs, err)
			break
		}
		line, _ := cr.FieldPos(0)
		if err := fn(record{line: line, fields: fields, header: header}); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
		}
	}
	return errors.Join(errs...)
}

func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad hex value %q", s)
	}
	return uint32(v), nil
}

func parseVariants(s string) Variants {
	parts := strings.Split(s, ",")
	out := make(Variants, 0, len(parts))
	for _, p := range parts {
		out = append(out, ParseConsoleVariant(p))
	}
	return out
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("bad boolean %q", s)
	}
	return v, nil
}

// ---- typed parsers ----

// ParsePostCodes reads post-code rows. Rows that fail to parse are skipped
// and reported in the returned error; the good rows are still returned.
func ParsePostCodes(r io.Reader) ([]PostCodeDefinition, error) {
	var out []PostCodeDefinition
	err := readRecords(r, func(rec record) error {
		code, err := parseHex(rec.get(colCode))
		if err != nil {
			return err
		}
		def := PostCodeDefinition{
			Variants:    parseVariants(rec.get(colConsole)),
			Flavor:      ParseCodeFlavor(rec.get(colType)),
			Code:        code,
			Name:        rec.get(colName),
			Description: rec.get(colDescription),
		}
		if raw := rec.get(colBitmask); raw != "" {
			mask, err := parseHex(raw)
			if err != nil {
				return err
			}
			def.Bitmask = &mask
		}
		if def.IsError, err = parseBool(rec.get(colIsError)); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// ParseErrorMasks reads generic mask rows. Bitmask is mandatory.
func ParseErrorMasks(r io.Reader) ([]ErrorMaskDefinition, error) {
	var out []ErrorMaskDefinition
	err := readRecords(r, func(rec record) error {
		code, err := parseHex(rec.get(colCode))
		if err != nil {
			return err
		}
		raw := rec.get(colBitmask)
		if raw == "" {
			return fmt.Errorf("error mask %q has no bitmask", rec.get(colName))
		}
		mask, err := parseHex(raw)
		if err != nil {
			return err
		}
		def := ErrorMaskDefinition{
			Variants:    parseVariants(rec.get(colConsole)),
			Flavor:      ParseCodeFlavor(rec.get(colType)),
			Code:        code,
			Bitmask:     mask,
			Name:        rec.get(colName),
			Description: rec.get(colDescription),
		}
		if def.IsError, err = parseBool(rec.get(colIsError)); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// ParseOSErrors reads OS error rows.
func ParseOSErrors(r io.Reader) ([]OSErrorDefinition, error) {
	var out []OSErrorDefinition
	err := readRecords(r, func(rec record) error {
		code, err := parseHex(rec.get(colCode))
		if err != nil {
			return err
		}
		out = append(out, OSErrorDefinition{
			Variants:    parseVariants(rec.get(colConsole)),
			Flavor:      ParseCodeFlavor(rec.get(colType)),
			Code:        code,
			Name:        rec.get(colName),
			Description: rec.get(colDescription),
		})
		return nil
	})
	return out, err
}
