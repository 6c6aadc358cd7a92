// internal/config/normalize.go
package config

import "strings"

const (
	DefaultBaud              = 115200
	DefaultVariant           = "ALL"
	DefaultIdleTimeoutMs     = 50
	DefaultResponseTimeoutMs = 1000

	DefaultBaseURL         = "https://errors.xboxresearch.com/"
	DefaultIndexName       = "meta.json"
	DefaultStoragePath     = "meta"
	DefaultMetaTimeoutMs   = 10000
	DefaultDownloadWorkers = 4

	DefaultStatusTimeoutMs = 1000
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Device
	if d.Baud == 0 {
		d.Baud = DefaultBaud
	}
	d.Variant = strings.ToUpper(strings.TrimSpace(d.Variant))
	if d.Variant == "" {
		d.Variant = DefaultVariant
	}
	if d.IdleTimeoutMs == 0 {
		d.IdleTimeoutMs = DefaultIdleTimeoutMs
	}
	if d.ResponseTimeoutMs == 0 {
		d.ResponseTimeoutMs = DefaultResponseTimeoutMs
	}

	m := &cfg.Meta
	if m.BaseURL == "" {
		m.BaseURL = DefaultBaseURL
	}
	// Entry paths are appended to the base, so it must end in a slash.
	if !strings.HasSuffix(m.BaseURL, "/") {
		m.BaseURL += "/"
	}
	if m.IndexName == "" {
		m.IndexName = DefaultIndexName
	}
	if m.StoragePath == "" {
		m.StoragePath = DefaultStoragePath
	}
	if m.TimeoutMs == 0 {
		m.TimeoutMs = DefaultMetaTimeoutMs
	}
	if m.DownloadWorkers == 0 {
		m.DownloadWorkers = DefaultDownloadWorkers
	}

	if sm := cfg.StatusMirror; sm != nil && sm.TimeoutMs == 0 {
		sm.TimeoutMs = DefaultStatusTimeoutMs
	}
}
