package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitoring "camwatch/internal/monitoring/domain"
)

// Scheduler decides when offline cameras are alerted on. It walks the
// outage list on a fixed cadence, advances the durable alert counters and
// only then hands a digest to the notifier.
type Scheduler struct {
	tracker  *Tracker
	settings *config.Store
	writer   *eventlog.Writer
	notifier Notifier
	logger   *log.Logger
	clock    Clock
	interval time.Duration
}

// SchedulerOption customizes the scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock assigns a clock.
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithSchedulerInterval overrides the evaluation cadence.
func WithSchedulerInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewScheduler constructs an alert scheduler.
func NewScheduler(tracker *Tracker, settings *config.Store, writer *eventlog.Writer, notifier Notifier, logger *log.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if tracker == nil {
		return nil, errors.New("monitoring: nil tracker")
	}
	if settings == nil {
		return nil, errors.New("monitoring: nil settings store")
	}
	if writer == nil {
		return nil, errors.New("monitoring: nil event log writer")
	}
	if notifier == nil {
		return nil, errors.New("monitoring: nil notifier")
	}
	if logger == nil {
		return nil, errors.New("monitoring: nil logger")
	}
	scheduler := &Scheduler{
		tracker:  tracker,
		settings: settings,
		writer:   writer,
		notifier: notifier,
		logger:   logger,
		clock:    systemClock{},
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(scheduler)
	}
	return scheduler, nil
}

// Run evaluates alerts on the configured cadence until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.clock.Now())
		}
	}
}

// Tick evaluates every offline camera against the current alert settings.
// Settings are read once per tick, so a concurrent update applies from the
// next evaluation on.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	settings := s.settings.Current()
	offline := s.tracker.Offline()
	if len(offline) == 0 {
		return
	}

	var fired []string
	for i := range offline {
		camera := &offline[i]
		if camera.IsMuted(settings.MuteAfterNAlerts) {
			s.logStillDown(ctx, camera, now)
			continue
		}
		if !s.due(camera, settings, now) {
			continue
		}

		updated, ok := s.tracker.CommitAlert(ctx, camera.Key(), now)
		if !ok {
			continue
		}
		fired = append(fired, updated.Key())
		s.logAlertTriggered(ctx, &updated, now)
		if updated.IsMuted(settings.MuteAfterNAlerts) {
			s.logMuted(ctx, &updated, now, settings.MuteAfterNAlerts)
		}
	}
	if len(fired) == 0 {
		return
	}

	event := Event{
		Type:    EventAlertDigest,
		At:      now,
		Offline: s.tracker.Offline(),
		Fired:   fired,
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Printf("monitoring: alert digest notify failed: %v", err)
	}
}

func (s *Scheduler) due(camera *monitoring.Camera, settings config.Settings, now time.Time) bool {
	if camera.Alert.SentCount == 0 {
		if camera.Alert.FirstOfflineAt.IsZero() {
			return false
		}
		return now.Sub(camera.Alert.FirstOfflineAt) >= settings.FirstAlertDelay()
	}
	if camera.Alert.LastAlertAt.IsZero() {
		return true
	}
	return now.Sub(camera.Alert.LastAlertAt) >= settings.AlertFrequency()
}

func (s *Scheduler) logStillDown(ctx context.Context, camera *monitoring.Camera, now time.Time) {
	seconds, _ := camera.DowntimeSeconds(now)
	s.writer.Append(ctx, &eventlog.Entry{
		Timestamp:       now,
		AlertType:       eventlog.TypeCameraStillDown,
		Severity:        eventlog.SeverityInfo,
		NVRIP:           camera.NVRIP,
		CameraIP:        camera.CameraIP,
		CameraName:      camera.Name,
		Status:          camera.Status,
		DownChecks:      camera.DownChecks,
		DurationSeconds: &seconds,
		Details:         fmt.Sprintf("Camera still offline, alerts muted. Downtime: %s", monitoring.FormatDowntime(seconds)),
	})
}

func (s *Scheduler) logAlertTriggered(ctx context.Context, camera *monitoring.Camera, now time.Time) {
	seconds, _ := camera.DowntimeSeconds(now)
	s.writer.Append(ctx, &eventlog.Entry{
		Timestamp:       now,
		AlertType:       eventlog.TypeAlertTriggered,
		Severity:        eventlog.SeverityWarning,
		NVRIP:           camera.NVRIP,
		CameraIP:        camera.CameraIP,
		CameraName:      camera.Name,
		Status:          camera.Status,
		DownChecks:      camera.DownChecks,
		DurationSeconds: &seconds,
		Details:         fmt.Sprintf("Alert %d triggered. Downtime: %s", camera.Alert.SentCount, monitoring.FormatDowntime(seconds)),
	})
}

func (s *Scheduler) logMuted(ctx context.Context, camera *monitoring.Camera, now time.Time, muteAfter int) {
	s.writer.Append(ctx, &eventlog.Entry{
		Timestamp:  now,
		AlertType:  eventlog.TypeCameraMuted,
		Severity:   eventlog.SeverityWarning,
		NVRIP:      camera.NVRIP,
		CameraIP:   camera.CameraIP,
		CameraName: camera.Name,
		Status:     camera.Status,
		Details:    fmt.Sprintf("Alert limit of %d reached, further notifications muted until recovery", muteAfter),
	})
}
