package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSettings rejects a settings update as a whole.
var ErrInvalidSettings = errors.New("config: invalid alert settings")

// Settings are the runtime-mutable alert timings. An update is applied
// atomically or not at all; a running poll cycle keeps the values it started
// with and the next cycle observes the new ones.
type Settings struct {
	FirstAlertDelayMinutes int `json:"FIRST_ALERT_DELAY_MINUTES" yaml:"first_alert_delay_minutes"`
	AlertFrequencyMinutes  int `json:"ALERT_FREQUENCY_MINUTES" yaml:"alert_frequency_minutes"`
	MuteAfterNAlerts       int `json:"MUTE_AFTER_N_ALERTS" yaml:"mute_after_n_alerts"`
}

// DefaultSettings returns the shipped defaults.
func DefaultSettings() Settings {
	return Settings{
		FirstAlertDelayMinutes: 15,
		AlertFrequencyMinutes:  60,
		MuteAfterNAlerts:       3,
	}
}

// Validate checks that every field is a positive integer.
func (s Settings) Validate() error {
	if s.FirstAlertDelayMinutes <= 0 {
		return fmt.Errorf("%w: FIRST_ALERT_DELAY_MINUTES must be positive", ErrInvalidSettings)
	}
	if s.AlertFrequencyMinutes <= 0 {
		return fmt.Errorf("%w: ALERT_FREQUENCY_MINUTES must be positive", ErrInvalidSettings)
	}
	if s.MuteAfterNAlerts <= 0 {
		return fmt.Errorf("%w: MUTE_AFTER_N_ALERTS must be positive", ErrInvalidSettings)
	}
	return nil
}

// FirstAlertDelay returns the delay before the first alert.
func (s Settings) FirstAlertDelay() time.Duration {
	return time.Duration(s.FirstAlertDelayMinutes) * time.Minute
}

// AlertFrequency returns the interval between repeated alerts.
func (s Settings) AlertFrequency() time.Duration {
	return time.Duration(s.AlertFrequencyMinutes) * time.Minute
}
