package monitoring

import (
	"errors"
	"time"
)

// Device is one configured NVR, polled as an isolated failure domain.
type Device struct {
	IP       string
	Username string
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.IP == "" {
		return errors.New("device: empty ip")
	}
	if d.Username == "" {
		return errors.New("device: empty username")
	}
	return nil
}

// Reading is one normalized per-camera poll result.
type Reading struct {
	ChannelID string
	CameraIP  string
	Name      string
	Online    bool
}

// Snapshot is the outcome of one successful device poll.
type Snapshot struct {
	NVRIP    string
	TakenAt  time.Time
	Readings []Reading
}
