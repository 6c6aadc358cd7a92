// internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/decode"
	"github.com/tamzrod/postcode-monitor/internal/device"
	"github.com/tamzrod/postcode-monitor/internal/status"
)

// ---- fakes ----

type fakeDevice struct {
	mu          sync.Mutex
	events      chan device.Event
	connectErrs []error
	connects    int
	commands    []string
	commandErr  error
	state       device.State
	disconnects int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{events: make(chan device.Event, 16)}
}

func (f *fakeDevice) Connect(_ context.Context, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.state = device.StateStreaming
	return nil
}

func (f *fakeDevice) Reconfigure(_ context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.commandErr
}

func (f *fakeDevice) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = device.StateDisconnected
}

func (f *fakeDevice) Events() <-chan device.Event { return f.events }

func (f *fakeDevice) State() device.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeDevice) Info() device.Info { return device.Info{FirmwareVersion: "v0.2.1"} }

func (f *fakeDevice) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeStatusWriter struct {
	mu     sync.Mutex
	writes []status.Snapshot
}

func (w *fakeStatusWriter) WriteStatus(s status.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, s)
	return nil
}

func (w *fakeStatusWriter) last() status.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.writes) == 0 {
		return status.Snapshot{}
	}
	return w.writes[len(w.writes)-1]
}

type staticSource struct{ snap *catalog.Snapshot }

func (s staticSource) Snapshot() *catalog.Snapshot { return s.snap }

func testDecoder() *decode.Decoder {
	all := catalog.Variants{catalog.VariantAll}
	return decode.NewDecoder(staticSource{&catalog.Snapshot{
		PostCodes: []catalog.PostCodeDefinition{
			{Variants: all, Flavor: catalog.FlavorSMC, Code: 0x00C1, IsError: true, Name: "FATAL_V12"},
			{Variants: all, Flavor: catalog.FlavorSP, Code: 0x0075, Name: "BOOT_SUCCESS"},
		},
	}}, zerolog.Nop())
}

type harness struct {
	dev    *fakeDevice
	sw     *fakeStatusWriter
	mon    *Monitor
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, cfg Config, dev *fakeDevice) *harness {
	t.Helper()
	if cfg.Tick == 0 {
		cfg.Tick = 5 * time.Millisecond
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 10 * time.Millisecond
	}
	h := &harness{dev: dev, sw: &fakeStatusWriter{}, done: make(chan error, 1)}
	h.mon = New(cfg, dev, testDecoder(), h.sw, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.mon.Run(ctx) }()

	require.Eventually(t, func() bool {
		h.mon.mu.RLock()
		defer h.mon.mu.RUnlock()
		return h.mon.running
	}, time.Second, time.Millisecond)
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func line(s string) device.Event {
	return device.Event{Kind: device.EventLine, At: time.Now(), Line: s}
}

// ---- tests ----

func TestRun_InitialConnectFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.connectErrs = []error{device.ErrNoPrompt}
	m := New(Config{}, dev, testDecoder(), nil, zerolog.Nop())

	err := m.Run(context.Background())
	require.ErrorIs(t, err, device.ErrNoPrompt)
	assert.ErrorIs(t, m.Command(context.Background(), "x"), ErrNotRunning)
}

func TestRun_DecodesLines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	var printed []Record
	dev := newFakeDevice()
	h := start(t, Config{OnCode: func(r Record) {
		mu.Lock()
		printed = append(printed, r)
		mu.Unlock()
	}}, dev)

	dev.events <- line("boot starting...")
	dev.events <- line("SP (1): 0x0075 [BOOT_SUCCESS]")
	dev.events <- line("SMC (0): 0x00c1")

	require.Eventually(t, func() bool { return len(h.mon.Recent()) == 2 }, time.Second, time.Millisecond)
	h.stop(t)

	recent := h.mon.Recent()
	assert.Equal(t, "SP_BOOT_SUCCESS", recent[0].Code.Name)
	assert.Equal(t, "SMC_FATAL_V12", recent[1].Code.Name)
	assert.Len(t, printed, 2)

	st := h.mon.Status()
	require.NotNil(t, st.LastCode)
	assert.Equal(t, "SMC_FATAL_V12", st.LastCode.Code.Name)
	assert.Equal(t, status.HealthError, st.Mirror.Health)
	assert.Equal(t, uint16(0xC1), st.Mirror.LastCode)
	assert.Equal(t, 1, dev.disconnects)
}

func TestRun_RecentIsBounded(t *testing.T) {
	dev := newFakeDevice()
	h := start(t, Config{Recent: 2}, dev)
	defer h.stop(t)

	dev.events <- line("SP (1): 0x0001")
	dev.events <- line("SP (1): 0x0002")
	dev.events <- line("SP (1): 0x0003")

	require.Eventually(t, func() bool {
		r := h.mon.Recent()
		return len(r) == 2 && r[1].Code.Code == 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, uint32(2), h.mon.Recent()[0].Code.Code)
}

func TestRun_SecondsInErrorTicksAndResets(t *testing.T) {
	dev := newFakeDevice()
	h := start(t, Config{}, dev)
	defer h.stop(t)

	dev.events <- line("SMC (0): 0x00C1")
	require.Eventually(t, func() bool { return h.sw.last().SecondsInError >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, status.HealthError, h.sw.last().Health)

	dev.events <- line("SP (1): 0x0075")
	require.Eventually(t, func() bool {
		s := h.sw.last()
		return s.Health == status.HealthOK && s.SecondsInError == 0
	}, time.Second, time.Millisecond)
}

func TestRun_FirmwareMirrored(t *testing.T) {
	dev := newFakeDevice()
	h := start(t, Config{}, dev)
	defer h.stop(t)

	dev.events <- device.Event{Kind: device.EventDeviceInfo, Info: device.Info{FirmwareVersion: "v0.2.1"}}
	require.Eventually(t, func() bool { return h.sw.last().Firmware == "v0.2.1" }, time.Second, time.Millisecond)
}

func TestRun_ReconnectsAfterStreamFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.connectErrs = []error{nil, errors.New("still unplugged")}
	h := start(t, Config{}, dev)
	defer h.stop(t)

	dev.events <- device.Event{Kind: device.EventDisconnected, Err: io.EOF}
	require.Eventually(t, func() bool { return h.sw.last().Health == status.HealthDisconnected }, time.Second, time.Millisecond)

	// one failed retry, then success
	require.Eventually(t, func() bool { return dev.connectCount() == 3 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.sw.last().Health == status.HealthOK }, time.Second, time.Millisecond)
}

func TestCommand_RunsOnMonitor(t *testing.T) {
	dev := newFakeDevice()
	h := start(t, Config{}, dev)
	defer h.stop(t)

	require.NoError(t, h.mon.Command(context.Background(), "mirror"))

	dev.mu.Lock()
	dev.commandErr = device.ErrConfigUnparseable
	dev.mu.Unlock()
	require.ErrorIs(t, h.mon.Command(context.Background(), "rotate"), device.ErrConfigUnparseable)

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, []string{"mirror", "rotate"}, dev.commands)
}
