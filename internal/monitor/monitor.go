// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/decode"
	"github.com/tamzrod/postcode-monitor/internal/device"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
	"github.com/tamzrod/postcode-monitor/internal/metrics"
	"github.com/tamzrod/postcode-monitor/internal/status"
	"github.com/tamzrod/postcode-monitor/internal/writer"
)

// ErrNotRunning is returned by Command when Run is not active.
var ErrNotRunning = errors.New("monitor: not running")

const (
	DefaultRecent         = 64
	DefaultTick           = time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Device is the session the monitor drives. *device.Session implements it.
type Device interface {
	Connect(ctx context.Context, endpoint string, baud int) error
	Reconfigure(ctx context.Context, command string) error
	Disconnect()
	Events() <-chan device.Event
	State() device.State
	Info() device.Info
}

// Decoder resolves protocol lines. *decode.Decoder implements it.
type Decoder interface {
	Decode(line string, variant catalog.ConsoleVariant) (decode.DecodedCode, bool)
}

// Config is the runtime config of a Monitor.
type Config struct {
	Endpoint string
	Baud     int
	Variant  catalog.ConsoleVariant

	Recent         int           // decoded codes kept for Recent
	Tick           time.Duration // seconds-in-error and reconnect clock
	ReconnectDelay time.Duration

	// OnCode is called on the monitor goroutine for every decoded code.
	OnCode func(Record)
}

// Record is one decoded line.
type Record struct {
	At   time.Time          `json:"at"`
	Line string             `json:"line"`
	Code decode.DecodedCode `json:"code"`
}

// Status is a point-in-time view for the HTTP surface.
type Status struct {
	State    string          `json:"state"`
	Device   device.Info     `json:"device"`
	Mirror   status.Snapshot `json:"mirror"`
	LastCode *Record         `json:"last_code,omitempty"`
}

type command struct {
	text  string
	reply chan error
}

// Monitor owns the device session for its lifetime: it consumes session
// events, decodes lines, keeps the status snapshot and serialises device
// commands onto its own goroutine.
type Monitor struct {
	cfg    Config
	dev    Device
	dec    Decoder
	status writer.StatusWriter // nil when no mirror is configured
	log    zerolog.Logger

	commands chan command

	mu       sync.RWMutex
	snap     status.Snapshot
	recent   []Record
	next     int
	last     *Record
	running  bool
	reconnAt time.Time
}

func New(cfg Config, dev Device, dec Decoder, sw writer.StatusWriter, logger zerolog.Logger) *Monitor {
	if cfg.Recent <= 0 {
		cfg.Recent = DefaultRecent
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Monitor{
		cfg:      cfg,
		dev:      dev,
		dec:      dec,
		status:   sw,
		log:      logger,
		commands: make(chan command),
		recent:   make([]Record, 0, cfg.Recent),
	}
}

// Run connects and monitors until ctx is done. The first connect must
// succeed; later stream failures are retried every ReconnectDelay.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	defer m.dev.Disconnect()

	m.setRunning(true)
	defer m.setRunning(false)

	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-m.dev.Events():
			m.handleEvent(ev)

		case cmd := <-m.commands:
			err := m.dev.Reconfigure(ctx, cmd.text)
			metrics.RecordCommand(err == nil)
			cmd.reply <- err

		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

// Command runs a device reconfiguration command on the monitor goroutine.
func (m *Monitor) Command(ctx context.Context, text string) error {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	cmd := command{text: text, reply: make(chan error, 1)}
	select {
	case m.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns decoded codes, oldest first.
func (m *Monitor) Recent() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.recent))
	if len(m.recent) < m.cfg.Recent {
		return append(out, m.recent...)
	}
	out = append(out, m.recent[m.next:]...)
	return append(out, m.recent[:m.next]...)
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		State:  m.dev.State().String(),
		Device: m.dev.Info(),
		Mirror: m.snap,
	}
	if m.last != nil {
		last := *m.last
		st.LastCode = &last
	}
	return st
}

// ---- event handling ----

func (m *Monitor) handleEvent(ev device.Event) {
	switch ev.Kind {
	case device.EventLine:
		metrics.IncLine()
		code, ok := m.dec.Decode(ev.Line, m.cfg.Variant)
		if !ok {
			return
		}
		m.record(Record{At: ev.At, Line: ev.Line, Code: code})

	case device.EventDeviceInfo:
		m.log.Info().
			Str(xlog.FieldFirmware, ev.Info.FirmwareVersion).
			Str("build_date", ev.Info.BuildDate).
			Msg("device identified")
		m.update(func(s *status.Snapshot) { s.Firmware = ev.Info.FirmwareVersion })

	case device.EventConfigChanged:
		m.log.Info().
			Bool("mirror_display", ev.Info.Config.MirrorDisplay).
			Bool("portrait_mode", ev.Info.Config.PortraitMode).
			Bool("print_timestamps", ev.Info.Config.PrintTimestamps).
			Bool("print_colors", ev.Info.Config.PrintColors).
			Msg("device config")

	case device.EventDisconnected:
		metrics.SetDeviceConnected(false)
		metrics.RecordDisconnect(ev.Err != nil)
		m.log.Warn().Err(ev.Err).
			Dur("retry_in", m.cfg.ReconnectDelay).
			Msg("device disconnected")

		m.mu.Lock()
		m.reconnAt = time.Now().Add(m.cfg.ReconnectDelay)
		m.mu.Unlock()
		m.update(func(s *status.Snapshot) { s.Health = status.HealthDisconnected })
	}
}

func (m *Monitor) record(r Record) {
	code := r.Code
	metrics.RecordDecoded(code.Flavor.String(), code.Severity.String())

	evt := m.log.Info()
	if code.Severity == catalog.SeverityError {
		evt = m.log.Warn()
	}
	evt.Stringer(xlog.FieldFlavor, code.Flavor).
		Int(xlog.FieldIndex, code.Index).
		Str(xlog.FieldCode, fmt.Sprintf("%04X", code.Code)).
		Stringer(xlog.FieldSeverity, code.Severity).
		Str(xlog.FieldName, code.Name).
		Msg("post code")

	m.mu.Lock()
	if len(m.recent) < m.cfg.Recent {
		m.recent = append(m.recent, r)
	} else {
		m.recent[m.next] = r
		m.next = (m.next + 1) % m.cfg.Recent
	}
	m.last = &r
	m.mu.Unlock()

	m.update(func(s *status.Snapshot) {
		s.LastCode = uint16(code.Code)
		s.Flavor = uint16(code.Flavor)
		s.Index = uint16(code.Index)
		s.Severity = uint16(code.Severity)
		if code.Severity == catalog.SeverityError {
			s.Health = status.HealthError
			return
		}
		// Recovery: a non-error code clears the error clock.
		s.Health = status.HealthOK
		s.SecondsInError = 0
	})

	if m.cfg.OnCode != nil {
		m.cfg.OnCode(r)
	}
}

// tick advances seconds-in-error and retries a lost session.
func (m *Monitor) tick(ctx context.Context, now time.Time) {
	m.mu.RLock()
	health := m.snap.Health
	reconnAt := m.reconnAt
	m.mu.RUnlock()

	if health == status.HealthError {
		m.update(func(s *status.Snapshot) {
			if s.SecondsInError < 65535 {
				s.SecondsInError++
			}
		})
	}

	if health == status.HealthDisconnected && !reconnAt.IsZero() && !now.Before(reconnAt) {
		if err := m.connect(ctx); err != nil {
			m.mu.Lock()
			m.reconnAt = now.Add(m.cfg.ReconnectDelay)
			m.mu.Unlock()
		}
	}
}

func (m *Monitor) connect(ctx context.Context) error {
	err := m.dev.Connect(ctx, m.cfg.Endpoint, m.cfg.Baud)
	if err != nil {
		var he *device.HandshakeError
		stage := "unknown"
		if errors.As(err, &he) {
			stage = string(he.Stage)
		}
		metrics.RecordConnectFailure(stage)
		m.log.Error().Err(err).
			Str(xlog.FieldEndpoint, m.cfg.Endpoint).
			Str(xlog.FieldStage, stage).
			Msg("connect failed")
		return err
	}

	metrics.SetDeviceConnected(true)
	m.mu.Lock()
	m.reconnAt = time.Time{}
	m.mu.Unlock()
	m.update(func(s *status.Snapshot) {
		s.Health = status.HealthOK
		s.SecondsInError = 0
	})
	return nil
}

// update mutates the status snapshot and mirrors it if it changed.
func (m *Monitor) update(fn func(*status.Snapshot)) {
	m.mu.Lock()
	before := m.snap
	fn(&m.snap)
	changed := before != m.snap
	m.mu.Unlock()

	if changed {
		m.writeStatus()
	}
}

func (m *Monitor) writeStatus() {
	if m.status == nil {
		return
	}
	m.mu.RLock()
	snap := m.snap
	m.mu.RUnlock()

	if err := m.status.WriteStatus(snap); err != nil {
		metrics.IncStatusWriteError()
		m.log.Warn().Err(err).Msg("status write failed")
	}
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}
