// internal/status/snapshot.go
package status

// Snapshot is exactly what the status writer is allowed to deliver.
// It holds current state only; the monitor owns any history.
type Snapshot struct {
	Health         uint16 `json:"health"`
	LastCode       uint16 `json:"last_code"`
	Flavor         uint16 `json:"flavor"`
	Index          uint16 `json:"index"`
	Severity       uint16 `json:"severity"`
	SecondsInError uint16 `json:"seconds_in_error"`
	Firmware       string `json:"firmware,omitempty"`
}
