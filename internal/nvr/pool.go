package nvr

import (
	"context"
	"fmt"

	monitoring "camwatch/internal/monitoring/domain"
)

// Pool holds one authenticated client per configured device. Devices share
// a password but authenticate with their own usernames.
type Pool struct {
	clients map[string]*Client
}

// NewPool constructs a client per device.
func NewPool(devices []monitoring.Device, password string, names map[string]string, opts ...Option) (*Pool, error) {
	pool := &Pool{clients: make(map[string]*Client, len(devices))}
	for _, device := range devices {
		if err := device.Validate(); err != nil {
			return nil, err
		}
		client, err := NewClient(device.Username, password, names, opts...)
		if err != nil {
			return nil, fmt.Errorf("nvr pool: device %s: %w", device.IP, err)
		}
		pool.clients[device.IP] = client
	}
	return pool, nil
}

// Query polls the device through its own client.
func (p *Pool) Query(ctx context.Context, device monitoring.Device) (monitoring.Snapshot, error) {
	if p == nil {
		return monitoring.Snapshot{}, fmt.Errorf("nvr pool: nil pool")
	}
	client, ok := p.clients[device.IP]
	if !ok {
		return monitoring.Snapshot{}, fmt.Errorf("nvr pool: unknown device %s", device.IP)
	}
	return client.Query(ctx, device)
}
