// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/postcode-monitor/internal/status"
)

// StatusWriter is the delivery-only contract for monitor status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// registerClient is the exact contract the status writer uses.
type registerClient interface {
	WriteRegisters(addr uint16, regs []uint16) error
}

// StatusPlan locates the status block on the mirror endpoint.
type StatusPlan struct {
	Endpoint string
	BaseSlot uint16
}

// DeviceStatusWriter mirrors status snapshots into holding registers.
// The first write and the first write after any failure assert the full
// block; otherwise only changed slots are written.
type DeviceStatusWriter struct {
	plan StatusPlan
	cli  registerClient

	needFull bool
	last     []uint16
}

func NewDeviceStatusWriter(plan StatusPlan, cli registerClient) *DeviceStatusWriter {
	return &DeviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true,
	}
}

// WriteStatus delivers a snapshot. Not safe for concurrent use.
func (sw *DeviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: disabled")
	}

	base := sw.baseAddr()
	regs := status.Encode(s)

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(base, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = regs
		return nil
	}

	var errs []string

	// Live slots, one write per changed slot.
	for slot := 0; slot <= status.SlotLiveEnd; slot++ {
		if sw.last[slot] == regs[slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(base+uint16(slot), regs[slot:slot+1]); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
			continue
		}
		sw.last[slot] = regs[slot]
	}

	// Firmware text changes as a unit.
	fw := regs[status.SlotFirmwareStart : status.SlotFirmwareEnd+1]
	if !equalRegs(sw.last[status.SlotFirmwareStart:status.SlotFirmwareEnd+1], fw) {
		if err := sw.cli.WriteRegisters(base+status.SlotFirmwareStart, fw); err != nil {
			errs = append(errs, fmt.Sprintf("firmware write failed: %v", err))
		} else {
			copy(sw.last[status.SlotFirmwareStart:], fw)
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (sw *DeviceStatusWriter) baseAddr() uint16 {
	return sw.plan.BaseSlot * status.SlotsPerBlock
}

func equalRegs(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
