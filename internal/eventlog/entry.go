package eventlog

import "time"

// Alert types recorded in the event log.
const (
	TypeCameraDown      = "camera_down"
	TypeCameraUp        = "camera_up"
	TypeCameraMuted     = "camera_muted"
	TypeCameraStillDown = "camera_still_down"
	TypeNVRUnreachable  = "nvr_unreachable"
	TypeNVRRecovered    = "nvr_recovered"
	TypeAlertTriggered  = "mail_alert_triggered"
	TypeMailSent        = "mail_sent"
	TypeMailFailed      = "mail_failed"
	TypeServiceStarted  = "service_started"
	TypeServiceStopped  = "service_stopped"
	TypeConfigChanged   = "service_config_changed"
)

// Severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Entry is one immutable, append-only event log record.
type Entry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AlertType  string    `json:"alert_type"`
	Severity   string    `json:"severity"`
	NVRIP      string    `json:"nvr_ip,omitempty"`
	CameraIP   string    `json:"camera_ip,omitempty"`
	CameraName string    `json:"camera_name,omitempty"`
	Status     string    `json:"status,omitempty"`
	DownChecks int       `json:"down_checks,omitempty"`

	// DurationSeconds carries the final outage length on camera_up entries.
	DurationSeconds *int64 `json:"duration_seconds"`

	Recipients string `json:"recipients,omitempty"`
	Details    string `json:"details,omitempty"`
}
