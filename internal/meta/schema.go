// internal/meta/schema.go
package meta

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed meta.schema.json
var indexSchemaText string

var indexSchema = jsonschema.MustCompileString("meta.schema.json", indexSchemaText)

// Validate checks a raw meta index document against the embedded schema
// and decodes it.
func Validate(data []byte) (*Definition, error) {
	data = stripTrailingCommas(data)
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("meta: index is not JSON: %w", err)
	}
	if err := indexSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("meta: index rejected by schema: %w", err)
	}
	return Decode(data)
}
