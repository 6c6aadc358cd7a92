// internal/device/port.go
package device

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/goburrow/serial"
)

// Opener opens the byte stream to a device. Reads on the returned port must
// give up after idle with serial.ErrTimeout (or os.ErrDeadlineExceeded).
// One attempt per call.
type Opener func(endpoint string, baud int, idle time.Duration) (io.ReadWriteCloser, error)

// OpenSerial opens a serial endpoint at 8N1.
func OpenSerial(endpoint string, baud int, idle time.Duration) (io.ReadWriteCloser, error) {
	if endpoint == "" {
		return nil, errors.New("device: endpoint required")
	}
	return serial.Open(&serial.Config{
		Address:  endpoint,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  idle,
	})
}

func isIdle(err error) bool {
	return errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}

// portPatterns are the device nodes a USB serial adapter shows up as.
func portPatterns() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/dev/cu.*", "/dev/tty.usb*"}
	case "windows":
		return nil
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/serial/by-id/*"}
	}
}

// ListPorts enumerates candidate serial endpoints. Windows COM ports are
// not enumerable without the registry; there the list is empty.
func ListPorts() ([]string, error) {
	var out []string
	for _, pattern := range portPatterns() {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
