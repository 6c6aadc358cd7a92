// internal/config/config.go
package config

type Config struct {
	Device       DeviceConfig        `yaml:"device" toml:"device"`
	Meta         MetaConfig          `yaml:"meta" toml:"meta"`
	StatusMirror *StatusMirrorConfig `yaml:"status_mirror" toml:"status_mirror"`
	HTTP         HTTPConfig          `yaml:"http" toml:"http"`
	Log          LogConfig           `yaml:"log" toml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Baud     int    `yaml:"baud" toml:"baud"`
	Variant  string `yaml:"variant" toml:"variant"` // ALL, XOP, XOS, XOX, XSS, XSX

	// Drain-read framing: a read that idles for IdleTimeoutMs ends a response,
	// a response that never starts is abandoned after ResponseTimeoutMs.
	IdleTimeoutMs     int `yaml:"idle_timeout_ms" toml:"idle_timeout_ms"`
	ResponseTimeoutMs int `yaml:"response_timeout_ms" toml:"response_timeout_ms"`
}

// ---- METADATA ----

type MetaConfig struct {
	CheckForUpdates *bool  `yaml:"check_for_updates" toml:"check_for_updates"` // nil => true
	BaseURL         string `yaml:"base_url" toml:"base_url"`
	IndexName       string `yaml:"index_name" toml:"index_name"`
	StoragePath     string `yaml:"storage_path" toml:"storage_path"`
	TimeoutMs       int    `yaml:"timeout_ms" toml:"timeout_ms"`
	Watch           bool   `yaml:"watch" toml:"watch"`
	DownloadWorkers int    `yaml:"download_workers" toml:"download_workers"`
}

// UpdatesEnabled reports whether remote catalog updates may be applied.
func (m MetaConfig) UpdatesEnabled() bool {
	return m.CheckForUpdates == nil || *m.CheckForUpdates
}

// ---- STATUS MIRROR (optional, opt-in) ----

type StatusMirrorConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id" toml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot" toml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen" toml:"listen"` // empty => disabled
}

// ---- LOG ----

type LogConfig struct {
	Level   string `yaml:"level" toml:"level"`
	Console bool   `yaml:"console" toml:"console"`
}
