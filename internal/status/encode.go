// internal/status/encode.go
package status

// Encode converts a Snapshot into a full status block.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerBlock)

	regs[SlotHealth] = s.Health
	regs[SlotLastCode] = s.LastCode
	regs[SlotFlavor] = s.Flavor
	regs[SlotIndex] = s.Index
	regs[SlotSeverity] = s.Severity
	regs[SlotSecondsInError] = s.SecondsInError

	copy(regs[SlotFirmwareStart:SlotFirmwareEnd+1], EncodeASCII(s.Firmware))
	return regs
}

// EncodeASCII packs up to FirmwareMaxChars characters into SlotFirmwareSlots
// registers, two bytes per register, big-endian. Non-printable bytes
// become '?'.
func EncodeASCII(text string) []uint16 {
	out := make([]uint16, SlotFirmwareSlots)

	b := []byte(text)
	if len(b) > FirmwareMaxChars {
		b = b[:FirmwareMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < FirmwareMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}
