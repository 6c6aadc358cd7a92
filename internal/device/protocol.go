// internal/device/protocol.go
package device

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	prompt    = ">> "
	newline   = "\r\n"
	interrupt = "\x03"

	resetAttempts = 2

	cmdVersion = "version"
	cmdConfig  = "config"
	cmdColors  = "colors"
	cmdPost    = "post"

	markerFirmware   = "FW: "
	markerMirrored   = "Display mirrored:"
	markerPortrait   = "Disp rotation portrait:"
	markerTimestamps = "Print timestamps:"
	markerColors     = "Print colors:"
	flagOn           = "ON"

	drainBufSize  = 256
	maxReplyBytes = 4096
)

const (
	DefaultIdleTimeout     = 50 * time.Millisecond
	DefaultResponseTimeout = time.Second
)

func writeLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+newline)
	return err
}

// drain reads until the port goes idle after data arrived, or until
// timeout passes. Prompt text has no terminator, so idleness is the only
// end-of-reply signal. A device that never goes quiet is cut off at the
// timeout, and at most maxReplyBytes are kept.
func drain(ctx context.Context, r io.Reader, timeout time.Duration) (string, error) {
	var (
		out      []byte
		buf      = make([]byte, drainBufSize)
		deadline = time.Now().Add(timeout)
	)
	for {
		if err := ctx.Err(); err != nil {
			return string(out), err
		}

		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil && !isIdle(err) {
			return string(out), err
		}

		switch {
		case len(out) >= maxReplyBytes:
			return string(out[:maxReplyBytes]), nil
		case time.Now().After(deadline):
			return string(out), nil
		case n > 0 && err == nil:
			continue
		case len(out) > 0:
			return string(out), nil
		}
	}
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// parseVersion extracts firmware version and build date from a reply
// containing a line like "FW: v0.2.1 20240521".
func parseVersion(reply string) (version, build string, err error) {
	if !strings.Contains(reply, markerFirmware) {
		return "", "", ErrFirmwareUnsupported
	}
	for _, line := range splitLines(reply) {
		if !strings.HasPrefix(line, markerFirmware) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(line, markerFirmware))
		if len(parts) >= 2 {
			return parts[0], parts[1], nil
		}
	}
	return "", "", ErrVersionUnparseable
}

// parseConfig reads the four flags of a `config` reply. A flag is set when
// its line contains ON.
func parseConfig(reply string) (Config, error) {
	var c Config
	if !strings.Contains(reply, markerMirrored) {
		return c, ErrConfigUnparseable
	}
	for _, line := range splitLines(reply) {
		on := strings.Contains(line, flagOn)
		switch {
		case strings.Contains(line, markerMirrored):
			c.MirrorDisplay = on
		case strings.Contains(line, markerPortrait):
			c.PortraitMode = on
		case strings.Contains(line, markerTimestamps):
			c.PrintTimestamps = on
		case strings.Contains(line, markerColors):
			c.PrintColors = on
		}
	}
	return c, nil
}

// reset interrupts whatever the device runs and waits for the prompt.
func reset(ctx context.Context, rw io.ReadWriter, timeout time.Duration) (string, error) {
	var last string
	for attempt := 0; attempt < resetAttempts; attempt++ {
		if err := writeLine(rw, interrupt); err != nil {
			return last, err
		}
		if err := writeLine(rw, ""); err != nil {
			return last, err
		}
		reply, err := drain(ctx, rw, timeout)
		if err != nil {
			return reply, err
		}
		if strings.HasSuffix(reply, prompt) {
			return reply, nil
		}
		last = reply
	}
	return last, ErrNoPrompt
}

// query writes lines and returns the drained reply.
func query(ctx context.Context, rw io.ReadWriter, timeout time.Duration, lines ...string) (string, error) {
	for _, line := range lines {
		if err := writeLine(rw, line); err != nil {
			return "", fmt.Errorf("write %s: %w", lines[0], err)
		}
	}
	return drain(ctx, rw, timeout)
}
