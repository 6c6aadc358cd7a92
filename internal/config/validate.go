// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"
)

var knownVariants = map[string]struct{}{
	"ALL": {}, "XOP": {}, "XOS": {}, "XOX": {}, "XSS": {}, "XSX": {},
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	if d.Baud < 0 {
		return fmt.Errorf("device: baud must not be negative, got %d", d.Baud)
	}
	if d.Variant != "" {
		if _, ok := knownVariants[strings.ToUpper(strings.TrimSpace(d.Variant))]; !ok {
			return fmt.Errorf("device: unknown variant %q", d.Variant)
		}
	}
	if d.IdleTimeoutMs < 0 || d.ResponseTimeoutMs < 0 {
		return fmt.Errorf("device: timeouts must not be negative")
	}
	if d.ResponseTimeoutMs > 0 && d.IdleTimeoutMs > d.ResponseTimeoutMs {
		return fmt.Errorf(
			"device: idle_timeout_ms (%d) exceeds response_timeout_ms (%d)",
			d.IdleTimeoutMs,
			d.ResponseTimeoutMs,
		)
	}

	// ------------------------------------------------------------
	// METADATA
	// ------------------------------------------------------------

	m := cfg.Meta
	if m.BaseURL != "" {
		u, err := url.Parse(m.BaseURL)
		if err != nil {
			return fmt.Errorf("meta: base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("meta: base_url must be http(s), got %q", m.BaseURL)
		}
	}
	if strings.ContainsAny(m.IndexName, `/\`) {
		return fmt.Errorf("meta: index_name must be a bare file name, got %q", m.IndexName)
	}
	if m.TimeoutMs < 0 {
		return fmt.Errorf("meta: timeout_ms must not be negative")
	}
	if m.DownloadWorkers < 0 {
		return fmt.Errorf("meta: download_workers must not be negative")
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if sm := cfg.StatusMirror; sm != nil {
		if strings.TrimSpace(sm.Endpoint) == "" {
			return fmt.Errorf("status_mirror: endpoint required when the block is present")
		}
		// base_slot addresses whole blocks; keep the last register addressable.
		if uint32(sm.BaseSlot)*statusSlotsPerBlock+statusSlotsPerBlock > 0x10000 {
			return fmt.Errorf("status_mirror: base_slot %d out of range", sm.BaseSlot)
		}
	}

	return nil
}

// statusSlotsPerBlock mirrors status.SlotsPerBlock without importing it.
const statusSlotsPerBlock = 20
