// internal/device/errors.go
package device

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected = errors.New("device: already connected")
	ErrNotConnected     = errors.New("device: not connected")

	// ErrNoPrompt usually means the wrong device or the wrong baud rate.
	ErrNoPrompt = errors.New("device: could not reach command prompt")

	// ErrFirmwareUnsupported: the device answered but does not know the
	// version command. Firmware is older than the supported minimum.
	ErrFirmwareUnsupported = errors.New("device: firmware does not report a version")

	ErrVersionUnparseable = errors.New("device: version reply unparseable")
	ErrConfigUnparseable  = errors.New("device: config reply unparseable")
)

// Stage names the handshake step that failed.
type Stage string

const (
	StageOpen    Stage = "open"
	StageReset   Stage = "reset"
	StageVersion Stage = "version"
	StageConfig  Stage = "config"
	StageCommand Stage = "command"
	StageStream  Stage = "stream"
)

// HandshakeError is returned by Connect and Reconfigure. Response holds the
// drained device text that failed to parse, if any.
type HandshakeError struct {
	Stage    Stage
	Response string
	Err      error
}

// maxReportedReply bounds how much of Response Error quotes.
const maxReportedReply = 128

func (e *HandshakeError) Error() string {
	msg := fmt.Sprintf("device: %s handshake: %v", e.Stage, e.Err)
	if e.Response != "" {
		reply, more := e.Response, ""
		if len(reply) > maxReportedReply {
			reply, more = reply[:maxReportedReply], fmt.Sprintf("... %d more bytes", len(e.Response)-maxReportedReply)
		}
		msg = fmt.Sprintf("%s (reply %q%s)", msg, reply, more)
	}
	return msg
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}
