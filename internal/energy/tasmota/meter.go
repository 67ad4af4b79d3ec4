package tasmota

import (
	"context"
	"sync"
)

// Meter maps devices to their smart plugs and exposes the lifetime
// energy counter. Devices without a plug report no reading.
type Meter struct {
	client *Client

	mu    sync.RWMutex
	plugs map[string]string
}

// NewMeter constructs a meter over the given device to plug mapping.
func NewMeter(client *Client, plugs map[string]string) *Meter {
	if client == nil {
		client = NewClient()
	}
	copied := make(map[string]string, len(plugs))
	for deviceID, host := range plugs {
		if host != "" {
			copied[deviceID] = host
		}
	}
	return &Meter{client: client, plugs: copied}
}

// SetPlug assigns or clears the plug host for a device.
func (m *Meter) SetPlug(deviceID, host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if host == "" {
		delete(m.plugs, deviceID)
		return
	}
	m.plugs[deviceID] = host
}

// TotalKWh reads the lifetime counter of the device's plug. The bool
// is false when the device has no plug configured.
func (m *Meter) TotalKWh(ctx context.Context, deviceID string) (float64, bool, error) {
	m.mu.RLock()
	host, ok := m.plugs[deviceID]
	m.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}

	reading, err := m.client.ReadEnergy(ctx, host)
	if err != nil {
		return 0, false, err
	}
	return reading.TotalKWh, true, nil
}
