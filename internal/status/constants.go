// internal/status/constants.go
package status

// Monitor status block layout.
// These values define the mirrored register map and are not configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerBlock is the fixed number of holding registers per monitor.
const SlotsPerBlock = 20

// ---- LIVE SLOTS ----

const (
	SlotHealth         = 0 // Health* code
	SlotLastCode       = 1 // last decoded post code
	SlotFlavor         = 2 // catalog.CodeFlavor of the last code
	SlotIndex          = 3 // flavor instance index of the last code
	SlotSeverity       = 4 // catalog.Severity of the last code
	SlotSecondsInError = 5 // seconds since the device entered an error code
)

// SlotLiveEnd is the last live slot (inclusive).
const SlotLiveEnd = SlotSecondsInError

// Slots 6–10 are reserved and always zero.

// ---- FIRMWARE ----

// The firmware version string lives at the end of the block.
const (
	SlotFirmwareStart = 11
	SlotFirmwareSlots = 8
	SlotFirmwareEnd   = SlotFirmwareStart + SlotFirmwareSlots - 1
	FirmwareMaxChars  = 2 * SlotFirmwareSlots
)

// ---- HEALTH CODES ----

const (
	HealthUnknown      uint16 = 0 // starting or mid-handshake
	HealthOK           uint16 = 1 // streaming, last code not an error
	HealthError        uint16 = 2 // streaming, last code decoded as an error
	HealthDisconnected uint16 = 3
)
