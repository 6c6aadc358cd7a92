// internal/log/fields.go
package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Device session
	FieldSessionID = "session_id"
	FieldEndpoint  = "endpoint"
	FieldBaud      = "baud"
	FieldState     = "state"
	FieldStage     = "stage"
	FieldCommand   = "command"
	FieldFirmware  = "firmware"

	// Decoding
	FieldLine     = "line"
	FieldFlavor   = "flavor"
	FieldIndex    = "index"
	FieldCode     = "code"
	FieldSeverity = "severity"
	FieldName     = "name"

	// Metadata
	FieldPath     = "path"
	FieldURL      = "url"
	FieldUpdated  = "updated"
	FieldMetaType = "meta_type"
)
