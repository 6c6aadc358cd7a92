// internal/device/fake_test.go
package device

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

const testConfigReply = "config\r\n" +
	"Notice: Showing config\r\n" +
	"Display mirrored:       ON\r\n" +
	"Disp rotation portrait: OFF\r\n" +
	"Print timestamps:       ON\r\n" +
	"Print colors:           ON\r\n"

// fakeDevice emulates the firmware on the other end of a serial link.
// Each complete line written is passed to respond; the reply becomes
// readable immediately. Reads on an empty buffer idle like a serial port.
type fakeDevice struct {
	mu      sync.Mutex
	out     bytes.Buffer
	partial string
	written []string
	closed  bool
	readErr error
	respond func(line string) string
}

func newFakeDevice(respond func(string) string) *fakeDevice {
	return &fakeDevice{respond: respond}
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, os.ErrClosed
	}
	if f.out.Len() > 0 {
		n, _ := f.out.Read(p)
		f.mu.Unlock()
		return n, nil
	}
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)
	return 0, serial.ErrTimeout
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	f.partial += string(p)
	for {
		i := strings.Index(f.partial, "\r\n")
		if i < 0 {
			break
		}
		line := f.partial[:i]
		f.partial = f.partial[i+2:]
		f.written = append(f.written, line)
		if f.respond != nil {
			f.out.WriteString(f.respond(line))
		}
	}
	return len(p), nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDevice) push(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out.WriteString(s)
}

func (f *fakeDevice) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakeDevice) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeDevice) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// firmware answers the way a current post-code adapter does.
type firmware struct {
	version string
	config  string
	// resetMisses is the number of reset attempts answered without a prompt.
	resetMisses int
	resets      int
}

func newFirmware() *firmware {
	return &firmware{
		version: "version\r\nFW: v0.2.1 20240521\r\n",
		config:  testConfigReply,
	}
}

func (fw *firmware) respond(line string) string {
	switch line {
	case "\x03":
		fw.resets++
		return "^C\r\n"
	case "":
		if fw.resets > 0 && fw.resets <= fw.resetMisses {
			return "\r\nsome unexpected output"
		}
		return "\r\n>> "
	case "version":
		return fw.version
	case "config":
		return fw.config
	case "colors":
		return "colors\r\nColors disabled\r\n"
	case "post":
		return ""
	case "mirror":
		fw.config = strings.Replace(fw.config, "Display mirrored:       ON", "Display mirrored:       OFF", 1)
		return "mirror\r\n"
	default:
		return line + "\r\nUnknown command\r\n"
	}
}

func opener(dev io.ReadWriteCloser) Opener {
	return func(string, int, time.Duration) (io.ReadWriteCloser, error) {
		return dev, nil
	}
}

// chattyDevice never goes quiet: every read yields one byte of noise,
// like a port opened at the wrong baud rate.
type chattyDevice struct {
	mu     sync.Mutex
	closed bool
}

func (c *chattyDevice) Read(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	time.Sleep(time.Millisecond)
	p[0] = 0xAA
	return 1, nil
}

func (c *chattyDevice) Write(p []byte) (int, error) { return len(p), nil }

func (c *chattyDevice) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *chattyDevice) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
