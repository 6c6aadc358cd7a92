// internal/device/session.go
package device

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 256

// SessionConfig is the runtime config of a Session.
type SessionConfig struct {
	// IdleTimeout bounds a single port read. It is also the quiet period
	// that ends a drained reply.
	IdleTimeout time.Duration
	// ResponseTimeout is how long a drain waits for the first byte.
	ResponseTimeout time.Duration
	EventBuffer     int
	Open            Opener
}

// Session is the protocol state machine for one device.
//
// Connect, Reconfigure and Disconnect must not be called concurrently
// with each other. State, Info and Events are safe from any goroutine.
type Session struct {
	cfg    SessionConfig
	log    zerolog.Logger
	events chan Event

	mu     sync.Mutex
	port   io.ReadWriteCloser
	info   Info
	cancel context.CancelFunc
	done   chan struct{}

	failErr error // terminal read error of the current stream

	state          atomic.Int32
	disconnectSent atomic.Bool
}

func NewSession(cfg SessionConfig, logger zerolog.Logger) *Session {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.Open == nil {
		cfg.Open = OpenSerial
	}
	return &Session{
		cfg:    cfg,
		log:    logger,
		events: make(chan Event, cfg.EventBuffer),
	}
}

// Events delivers session notifications. The channel is never closed.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) State() State { return State(s.state.Load()) }

// Info returns a copy of the cached device state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Connect opens endpoint, runs the handshake and starts streaming.
// On any failure the port is closed and no read loop is left running.
func (s *Session) Connect(ctx context.Context, endpoint string, baud int) error {
	s.mu.Lock()
	held := s.port != nil
	s.mu.Unlock()
	if held && s.State() != StateDisconnected {
		return ErrAlreadyConnected
	}
	// A stream that failed on its own still holds the port.
	if s.release() {
		s.sendDisconnect()
	}

	port, err := s.cfg.Open(endpoint, baud, s.cfg.IdleTimeout)
	if err != nil {
		return &HandshakeError{Stage: StageOpen, Err: err}
	}

	info := Info{SessionID: uuid.NewString(), Endpoint: endpoint, Baud: baud}
	s.mu.Lock()
	s.port = port
	s.info = info
	s.failErr = nil
	s.mu.Unlock()
	s.disconnectSent.Store(false)

	log := s.log.With().
		Str(xlog.FieldSessionID, info.SessionID).
		Str(xlog.FieldEndpoint, endpoint).
		Int(xlog.FieldBaud, baud).
		Logger()
	log.Info().Msg("connecting")

	if err := s.handshake(ctx, port); err != nil {
		log.Warn().Err(err).Msg("handshake failed")
		s.release()
		return err
	}

	log.Info().
		Str(xlog.FieldFirmware, s.Info().FirmwareVersion).
		Msg("device streaming")
	return nil
}

// Reconfigure sends command to the device without ending the session.
// A failure tears the session down.
func (s *Session) Reconfigure(ctx context.Context, command string) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil || s.State() != StateStreaming {
		return ErrNotConnected
	}

	s.stopLoop()

	err := s.reconfigure(ctx, port, command)
	if err != nil {
		s.log.Warn().Err(err).Str(xlog.FieldCommand, command).Msg("reconfigure failed")
		s.Disconnect()
		return err
	}
	s.log.Info().Str(xlog.FieldCommand, command).Msg("device reconfigured")
	return nil
}

// Disconnect ends the session. Calling it when disconnected is a no-op.
func (s *Session) Disconnect() {
	if !s.release() {
		return
	}
	s.log.Info().Msg("disconnected")
	s.sendDisconnect()
}

// ---- handshake ----

func (s *Session) handshake(ctx context.Context, port io.ReadWriter) error {
	if err := s.resetPort(ctx, port); err != nil {
		return err
	}

	s.setState(StateAwaitingVersion)
	reply, err := query(ctx, port, s.cfg.ResponseTimeout, cmdVersion, "")
	if err != nil {
		return &HandshakeError{Stage: StageVersion, Err: err}
	}
	version, build, err := parseVersion(reply)
	if err != nil {
		return &HandshakeError{Stage: StageVersion, Response: reply, Err: err}
	}
	info := s.updateInfo(func(i *Info) {
		i.FirmwareVersion = version
		i.BuildDate = build
	})
	s.notify(Event{Kind: EventDeviceInfo, Info: info})

	cfg, err := s.queryConfig(ctx, port, cmdConfig, "")
	if err != nil {
		return err
	}

	if cfg.PrintColors {
		if _, err := query(ctx, port, s.cfg.ResponseTimeout, cmdColors, ""); err != nil {
			return &HandshakeError{Stage: StageConfig, Err: err}
		}
	}
	return s.startStreaming(port)
}

func (s *Session) reconfigure(ctx context.Context, port io.ReadWriter, command string) error {
	if err := s.resetPort(ctx, port); err != nil {
		return err
	}
	if err := writeLine(port, command); err != nil {
		return &HandshakeError{Stage: StageCommand, Err: err}
	}
	// The firmware answers config right after the command; no blank line.
	if _, err := s.queryConfig(ctx, port, cmdConfig); err != nil {
		return err
	}
	return s.startStreaming(port)
}

func (s *Session) resetPort(ctx context.Context, port io.ReadWriter) error {
	s.setState(StateResetting)
	reply, err := reset(ctx, port, s.cfg.ResponseTimeout)
	if err != nil {
		return &HandshakeError{Stage: StageReset, Response: reply, Err: err}
	}
	return nil
}

// queryConfig sends lines and parses the reply as a config dump.
// EventConfigChanged is sent only after the whole reply was consumed.
func (s *Session) queryConfig(ctx context.Context, port io.ReadWriter, lines ...string) (Config, error) {
	s.setState(StateAwaitingConfig)
	reply, err := query(ctx, port, s.cfg.ResponseTimeout, lines...)
	if err != nil {
		return Config{}, &HandshakeError{Stage: StageConfig, Err: err}
	}
	cfg, err := parseConfig(reply)
	if err != nil {
		return Config{}, &HandshakeError{Stage: StageConfig, Response: reply, Err: err}
	}
	info := s.updateInfo(func(i *Info) { i.Config = cfg })
	s.notify(Event{Kind: EventConfigChanged, Info: info})
	return cfg, nil
}

func (s *Session) startStreaming(port io.ReadWriter) error {
	if err := writeLine(port, cmdPost); err != nil {
		return &HandshakeError{Stage: StageStream, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.setState(StateStreaming)
	go s.readLoop(ctx, port, done)
	return nil
}

// ---- lifecycle ----

// stopLoop cancels the read loop and waits for it to exit.
func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// release stops the loop, closes the port and resets cached device state.
// It reports whether a port was held.
func (s *Session) release() bool {
	s.mu.Lock()
	port, cancel, done := s.port, s.cancel, s.done
	s.port, s.cancel, s.done = nil, nil, nil
	s.info = Info{}
	s.mu.Unlock()
	s.setState(StateDisconnected)

	if port == nil {
		return false
	}
	if cancel != nil {
		cancel()
	}
	if err := port.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close port")
	}
	if done != nil {
		<-done
	}
	return true
}

// streamFailed is called by a read loop that hit a terminal read error.
func (s *Session) streamFailed(ctx context.Context, done chan struct{}, err error) {
	s.mu.Lock()
	current := s.done == done
	s.failErr = err
	s.mu.Unlock()
	if current {
		s.setState(StateDisconnected)
	}

	s.log.Error().Err(err).Msg("device stream ended")

	if !s.disconnectSent.CompareAndSwap(false, true) {
		return
	}
	// Cancelled by release: the releasing call delivers the event instead.
	if !s.emit(ctx, Event{Kind: EventDisconnected, Err: err}) {
		s.disconnectSent.Store(false)
	}
}

// sendDisconnect queues the session's single EventDisconnected. A full
// queue gives up its oldest event so the disconnect is never lost.
func (s *Session) sendDisconnect() {
	if !s.disconnectSent.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	ev := Event{Kind: EventDisconnected, At: time.Now(), Err: s.failErr}
	s.mu.Unlock()

	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case old := <-s.events:
			s.log.Warn().Stringer(xlog.FieldEvent, old.Kind).Msg("event queue full, dropping oldest event")
		default:
		}
	}
}

func (s *Session) updateInfo(fn func(*Info)) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.info)
	return s.info
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) != st {
		s.log.Debug().Stringer(xlog.FieldState, st).Msg("state")
	}
}

// ---- events ----

// emit blocks until the event is queued or ctx is done.
func (s *Session) emit(ctx context.Context, ev Event) bool {
	ev.At = time.Now()
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// notify never blocks the caller; a full queue drops the event.
func (s *Session) notify(ev Event) {
	ev.At = time.Now()
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Stringer(xlog.FieldEvent, ev.Kind).Msg("event queue full, dropping event")
	}
}
