// internal/meta/codec.go
package meta

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ---- Type: string tag or ordinal ----

func (t Type) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("meta: invalid type %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		for i, name := range typeNames {
			if strings.EqualFold(name, s) {
				*t = Type(i)
				return nil
			}
		}
		return fmt.Errorf("meta: unknown type %q", s)
	}

	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("meta: type must be a string or integer, got %s", b)
	}
	if !Type(n).Valid() {
		return fmt.Errorf("meta: unknown type ordinal %d", n)
	}
	*t = Type(n)
	return nil
}

// ---- Hash: URL-safe base64, padding optional ----

// Hash is a content hash carried as URL-safe base64 text.
type Hash []byte

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(h))
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("meta: hash must be a string: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return fmt.Errorf("meta: invalid base64-urlsafe hash: %w", err)
	}
	*h = raw
	return nil
}

// ---- Definition: tolerant timestamp ----

// Index files written by older tooling carry zone-less timestamps;
// those are read as UTC. Fractional seconds are accepted by time.Parse
// even though the layout omits them.
const zonelessLayout = "2006-01-02T15:04:05"

func parseUpdated(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation(zonelessLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("meta: unrecognised timestamp %q", s)
}

func (d *Definition) UnmarshalJSON(b []byte) error {
	type plain Definition
	var wire struct {
		plain
		Updated string `json:"updated"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	ts, err := parseUpdated(wire.Updated)
	if err != nil {
		return err
	}

	*d = Definition(wire.plain)
	d.Updated = ts
	return nil
}

// Decode parses a meta index document. Trailing commas are tolerated.
func Decode(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(stripTrailingCommas(data), &def); err != nil {
		return nil, fmt.Errorf("meta: decode index: %w", err)
	}
	return &def, nil
}

// Encode serializes a meta index document the way it is stored locally.
func Encode(def *Definition) ([]byte, error) {
	return json.MarshalIndent(def, "", "  ")
}

// stripTrailingCommas drops commas that directly precede a closing bracket
// outside string literals.
func stripTrailingCommas(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}

		switch c {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(data) && isJSONSpace(data[j]) {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
