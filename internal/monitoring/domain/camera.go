package monitoring

import "time"

const (
	StatusUnknown = "Unknown"
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

// Camera is the tracked state of one camera channel on an NVR.
// Identity is (NVRIP, CameraIP); ChannelID is the NVR-side channel number
// kept for naming fallback.
type Camera struct {
	NVRIP     string    `json:"nvr_ip"`
	CameraIP  string    `json:"camera_ip"`
	ChannelID string    `json:"channel_id"`
	Name      string    `json:"camera_name"`
	Status    string    `json:"status"`
	Since     time.Time `json:"since"`
	LastCheck time.Time `json:"last_check"`

	// DownChecks counts consecutive down readings; PendingSince is the time
	// of the first reading in the current down run.
	DownChecks   int       `json:"down_checks"`
	PendingSince time.Time `json:"-"`

	Alert AlertState `json:"alert"`

	UpdatedAt time.Time `json:"updated_at"`
}

// AlertState is the durable escalation state for an ongoing outage.
// All fields are zero while the camera is not Offline.
type AlertState struct {
	FirstOfflineAt time.Time `json:"first_offline_at,omitempty"`
	LastAlertAt    time.Time `json:"last_alert_at,omitempty"`
	SentCount      int       `json:"alerts_sent_count"`
}

// Key returns the identity key for a camera.
func Key(nvrIP, cameraIP string) string {
	return nvrIP + "|" + cameraIP
}

// Key returns the camera's identity key.
func (c *Camera) Key() string {
	return Key(c.NVRIP, c.CameraIP)
}

// IsMuted reports whether notifications for this camera are suppressed.
// Derived from the sent counter against the threshold, never stored.
func (c *Camera) IsMuted(muteAfter int) bool {
	return c.Status == StatusOffline && muteAfter > 0 && c.Alert.SentCount >= muteAfter
}

// DowntimeSeconds returns elapsed offline time. The second return value is
// false when the camera is not Offline and no downtime is defined.
func (c *Camera) DowntimeSeconds(now time.Time) (int64, bool) {
	if c.Status != StatusOffline || c.Since.IsZero() {
		return 0, false
	}
	seconds := int64(now.Sub(c.Since) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return seconds, true
}

// Transition records one confirmed state change.
type Transition struct {
	From string
	To   string
	At   time.Time

	// DowntimeSeconds is the final outage length for Offline->Online.
	DowntimeSeconds int64

	// Camera is a copy of the camera after the transition applied.
	Camera Camera
}

// ObserveUp applies a single up reading. A single up reading confirms
// recovery; the down run counter is reset.
func (c *Camera) ObserveUp(now time.Time) (Transition, bool) {
	prev := c.Status
	c.LastCheck = now
	c.DownChecks = 0
	c.PendingSince = time.Time{}
	c.UpdatedAt = now
	if prev == StatusOnline {
		return Transition{}, false
	}

	var downtime int64
	if prev == StatusOffline && !c.Since.IsZero() {
		downtime = int64(now.Sub(c.Since) / time.Second)
		if downtime < 0 {
			downtime = 0
		}
	}
	c.Status = StatusOnline
	c.Since = now
	c.Alert = AlertState{}
	return Transition{From: prev, To: StatusOnline, At: now, DowntimeSeconds: downtime, Camera: *c}, true
}

// ObserveDown applies a single down reading. The Offline transition is
// confirmed only after confirmChecks consecutive down readings; once
// confirmed, Since is backdated to the first reading of the run.
func (c *Camera) ObserveDown(now time.Time, confirmChecks int) (Transition, bool) {
	if confirmChecks < 1 {
		confirmChecks = 1
	}
	prev := c.Status
	c.LastCheck = now
	c.UpdatedAt = now
	if c.DownChecks == 0 {
		c.PendingSince = now
	}
	c.DownChecks++
	if prev == StatusOffline {
		return Transition{}, false
	}
	if c.DownChecks < confirmChecks {
		return Transition{}, false
	}

	since := c.PendingSince
	if since.IsZero() {
		since = now
	}
	c.Status = StatusOffline
	c.Since = since
	c.Alert = AlertState{FirstOfflineAt: since}
	return Transition{From: prev, To: StatusOffline, At: now, Camera: *c}, true
}
