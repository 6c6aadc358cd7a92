// internal/device/readloop.go
package device

import (
	"bytes"
	"context"
	"io"
	"strings"
)

const (
	readBufSize   = 512
	maxLineLength = 4096
)

// readLoop streams lines until ctx is done or the port fails.
// ctx is checked on every idle read, so cancellation takes at most one
// idle timeout.
func (s *Session) readLoop(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)

	var (
		pending []byte
		buf     = make([]byte, readBufSize)
	)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := strings.TrimRight(string(pending[:i]), "\r")
				pending = pending[i+1:]
				if line == "" {
					continue
				}
				if !s.emit(ctx, Event{Kind: EventLine, Line: line}) {
					return
				}
			}
			if len(pending) > maxLineLength {
				if !s.emit(ctx, Event{Kind: EventLine, Line: string(pending)}) {
					return
				}
				pending = nil
			}
		}

		if err == nil || isIdle(err) {
			continue
		}
		// Closed by release.
		if ctx.Err() != nil {
			return
		}
		s.streamFailed(ctx, done, err)
		return
	}
}
