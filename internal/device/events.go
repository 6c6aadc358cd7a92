// internal/device/events.go
package device

import "time"

// EventKind tags a session notification.
type EventKind int

const (
	EventLine          EventKind = iota + 1 // one line streamed by the device
	EventDeviceInfo                         // firmware version parsed
	EventConfigChanged                      // config reply fully consumed
	EventDisconnected                       // session ended; Err set on stream failure
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventDeviceInfo:
		return "device_info"
	case EventConfigChanged:
		return "config_changed"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is delivered on Session.Events in the order it happened.
type Event struct {
	Kind EventKind
	At   time.Time
	Line string
	Info Info
	Err  error
}

// State of the session state machine.
type State int32

const (
	StateDisconnected State = iota
	StateResetting
	StateAwaitingVersion
	StateAwaitingConfig
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateResetting:
		return "resetting"
	case StateAwaitingVersion:
		return "awaiting_version"
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Config is the device's display and printing state as reported by `config`.
type Config struct {
	MirrorDisplay   bool `json:"mirror_display"`
	PortraitMode    bool `json:"portrait_mode"`
	PrintTimestamps bool `json:"print_timestamps"`
	PrintColors     bool `json:"print_colors"`
}

// Info is the cached device state of the current session.
// The zero value describes a disconnected session.
type Info struct {
	SessionID       string `json:"session_id,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	Baud            int    `json:"baud,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	BuildDate       string `json:"build_date,omitempty"`
	Config          Config `json:"config"`
}
