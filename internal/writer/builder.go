// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/postcode-monitor/internal/config"
	wmodbus "github.com/tamzrod/postcode-monitor/internal/writer/modbus"
)

// Build constructs the status writer for a status_mirror block.
// The mirror endpoint is dialled once here so a bad endpoint fails at
// startup. The returned closer releases the connection.
func Build(sm *cfg.StatusMirrorConfig) (*DeviceStatusWriter, func() error, error) {
	if sm == nil {
		return nil, nil, errors.New("writer: status_mirror not configured")
	}

	cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: sm.Endpoint,
		UnitID:   sm.UnitID,
		Timeout:  time.Duration(sm.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	sw := NewDeviceStatusWriter(StatusPlan{
		Endpoint: sm.Endpoint,
		BaseSlot: sm.BaseSlot,
	}, cli)

	return sw, cli.Close, nil
}
