package application

import (
	"context"
	"time"

	monitoring "camwatch/internal/monitoring/domain"
)

// Event types published to notifiers.
const (
	EventAlertDigest     = "alert_digest"
	EventCameraOffline   = "camera_offline"
	EventCameraRecovered = "camera_recovered"
	EventNVRUnreachable  = "nvr_unreachable"
	EventNVRRecovered    = "nvr_recovered"
)

// Event is one monitoring notification.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	// Camera is set for per-camera events.
	Camera *monitoring.Camera `json:"camera,omitempty"`

	// NVRIP is set for device-level events.
	NVRIP string `json:"nvr_ip,omitempty"`

	// Offline carries the full outage list for digest events.
	Offline []monitoring.Camera `json:"offline,omitempty"`

	// Fired names the cameras whose alert counters advanced this cycle.
	Fired []string `json:"fired,omitempty"`

	// DowntimeSeconds is the outage length for recovery events.
	DowntimeSeconds int64 `json:"downtime_seconds,omitempty"`
}

// Notifier delivers monitoring events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
