package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitoring "camwatch/internal/monitoring/domain"
	"camwatch/internal/observability/metrics"
)

// DeviceClient queries one NVR for the status of its camera channels.
type DeviceClient interface {
	Query(ctx context.Context, device monitoring.Device) (monitoring.Snapshot, error)
}

// Poller drives one polling goroutine per configured NVR. A slow or dead
// device never delays the others.
type Poller struct {
	client   DeviceClient
	tracker  *Tracker
	writer   *eventlog.Writer
	notifier Notifier
	settings *config.Store
	logger   *log.Logger
	clock    Clock

	devices      []monitoring.Device
	interval     time.Duration
	attempts     int
	backoff      time.Duration
	queryTimeout time.Duration

	unreachable atomic.Int64
}

// PollerOption customizes the poller.
type PollerOption func(*Poller)

// WithPollInterval sets the per-device polling cadence.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithRetry sets the per-cycle attempt count and the pause between attempts.
func WithRetry(attempts int, backoff time.Duration) PollerOption {
	return func(p *Poller) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

// WithQueryTimeout bounds a single device query.
func WithQueryTimeout(timeout time.Duration) PollerOption {
	return func(p *Poller) {
		if timeout > 0 {
			p.queryTimeout = timeout
		}
	}
}

// WithPollerClock assigns a clock.
func WithPollerClock(clock Clock) PollerOption {
	return func(p *Poller) {
		p.clock = clock
	}
}

// NewPoller constructs a device poller.
func NewPoller(client DeviceClient, tracker *Tracker, writer *eventlog.Writer, notifier Notifier, settings *config.Store, devices []monitoring.Device, logger *log.Logger, opts ...PollerOption) (*Poller, error) {
	if client == nil {
		return nil, errors.New("monitoring: nil device client")
	}
	if tracker == nil {
		return nil, errors.New("monitoring: nil tracker")
	}
	if writer == nil {
		return nil, errors.New("monitoring: nil event log writer")
	}
	if notifier == nil {
		return nil, errors.New("monitoring: nil notifier")
	}
	if settings == nil {
		return nil, errors.New("monitoring: nil settings store")
	}
	if logger == nil {
		return nil, errors.New("monitoring: nil logger")
	}
	for _, device := range devices {
		if err := device.Validate(); err != nil {
			return nil, err
		}
	}
	poller := &Poller{
		client:       client,
		tracker:      tracker,
		writer:       writer,
		notifier:     notifier,
		settings:     settings,
		logger:       logger,
		clock:        systemClock{},
		devices:      devices,
		interval:     time.Minute,
		attempts:     3,
		backoff:      2 * time.Second,
		queryTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(poller)
	}
	return poller, nil
}

// Run polls every device on its own goroutine until ctx is cancelled, then
// waits for the workers to drain.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, device := range p.devices {
		wg.Add(1)
		go func(device monitoring.Device) {
			defer wg.Done()
			p.worker(ctx, device)
		}(device)
	}
	wg.Wait()
}

// deviceRun is worker-local device health. Each device has exactly one
// worker, so no locking is needed.
type deviceRun struct {
	unreachable bool
	authFailed  bool
	authGen     uint64
}

func (p *Poller) worker(ctx context.Context, device monitoring.Device) {
	state := &deviceRun{}
	p.pollDevice(ctx, device, state)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollDevice(ctx, device, state)
		}
	}
}

func (p *Poller) pollDevice(ctx context.Context, device monitoring.Device, state *deviceRun) {
	if state.authFailed {
		if p.settings.Generation() == state.authGen {
			// Rejected credentials; the device stays down until the
			// configuration changes.
			p.markDeviceDown(ctx, device, state, p.clock.Now())
			return
		}
		state.authFailed = false
	}

	started := p.clock.Now()
	snap, err := p.query(ctx, device)
	elapsed := time.Since(started)
	if err == nil {
		metrics.ObservePoll(metrics.ResultSuccess, elapsed)
		p.deviceRecovered(ctx, device, state, snap.TakenAt)
		p.handleTransitions(ctx, p.tracker.ApplySnapshot(ctx, snap))
		return
	}
	metrics.ObservePoll(metrics.ResultError, elapsed)
	metrics.IncPollError(errorReason(err))
	if ctx.Err() != nil {
		// Shutting down; an abandoned query is not evidence of an outage.
		return
	}

	now := p.clock.Now()
	if errors.Is(err, monitoring.ErrDeviceAuth) {
		state.authFailed = true
		state.authGen = p.settings.Generation()
		p.logger.Printf("monitoring: nvr %s authentication failed: %v", device.IP, err)
	} else {
		p.logger.Printf("monitoring: nvr %s poll failed: %v", device.IP, err)
	}
	p.markDeviceDown(ctx, device, state, now)
}

// query runs one poll cycle of bounded attempts. Auth failures abort the
// cycle immediately; other errors retry after a short pause.
func (p *Poller) query(ctx context.Context, device monitoring.Device) (monitoring.Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		queryCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
		snap, err := p.client.Query(queryCtx, device)
		cancel()
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if errors.Is(err, monitoring.ErrDeviceAuth) || ctx.Err() != nil {
			return monitoring.Snapshot{}, lastErr
		}
		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return monitoring.Snapshot{}, lastErr
			case <-time.After(p.backoff):
			}
		}
	}
	return monitoring.Snapshot{}, lastErr
}

func (p *Poller) deviceRecovered(ctx context.Context, device monitoring.Device, state *deviceRun, at time.Time) {
	if !state.unreachable {
		return
	}
	state.unreachable = false
	metrics.SetDevicesUnreachable(int(p.unreachable.Add(-1)))
	p.writer.Append(ctx, &eventlog.Entry{
		Timestamp: at,
		AlertType: eventlog.TypeNVRRecovered,
		Severity:  eventlog.SeverityInfo,
		NVRIP:     device.IP,
		Details:   "NVR is reachable again",
	})
	if err := p.notifier.Notify(ctx, Event{Type: EventNVRRecovered, At: at, NVRIP: device.IP}); err != nil {
		p.logger.Printf("monitoring: nvr recovered notify failed: %v", err)
	}
}

func (p *Poller) markDeviceDown(ctx context.Context, device monitoring.Device, state *deviceRun, at time.Time) {
	if !state.unreachable {
		state.unreachable = true
		metrics.SetDevicesUnreachable(int(p.unreachable.Add(1)))
		p.writer.Append(ctx, &eventlog.Entry{
			Timestamp: at,
			AlertType: eventlog.TypeNVRUnreachable,
			Severity:  eventlog.SeverityError,
			NVRIP:     device.IP,
			Details:   "NVR did not answer after all attempts, its cameras are counted as down",
		})
		if err := p.notifier.Notify(ctx, Event{Type: EventNVRUnreachable, At: at, NVRIP: device.IP}); err != nil {
			p.logger.Printf("monitoring: nvr unreachable notify failed: %v", err)
		}
	}
	p.handleTransitions(ctx, p.tracker.MarkDeviceDown(ctx, device.IP, at))
}

func (p *Poller) handleTransitions(ctx context.Context, transitions []monitoring.Transition) {
	for _, transition := range transitions {
		camera := transition.Camera
		switch {
		case transition.To == monitoring.StatusOffline:
			p.writer.Append(ctx, &eventlog.Entry{
				Timestamp:  transition.At,
				AlertType:  eventlog.TypeCameraDown,
				Severity:   eventlog.SeverityWarning,
				NVRIP:      camera.NVRIP,
				CameraIP:   camera.CameraIP,
				CameraName: camera.Name,
				Status:     camera.Status,
				DownChecks: camera.DownChecks,
				Details:    fmt.Sprintf("Camera confirmed Offline after %d consecutive failed checks", camera.DownChecks),
			})
			if err := p.notifier.Notify(ctx, Event{Type: EventCameraOffline, At: transition.At, Camera: &camera}); err != nil {
				p.logger.Printf("monitoring: camera offline notify failed: %v", err)
			}
		case transition.From == monitoring.StatusOffline && transition.To == monitoring.StatusOnline:
			seconds := transition.DowntimeSeconds
			p.writer.Append(ctx, &eventlog.Entry{
				Timestamp:       transition.At,
				AlertType:       eventlog.TypeCameraUp,
				Severity:        eventlog.SeverityInfo,
				NVRIP:           camera.NVRIP,
				CameraIP:        camera.CameraIP,
				CameraName:      camera.Name,
				Status:          camera.Status,
				DurationSeconds: &seconds,
				Details:         fmt.Sprintf("Camera is back online. Downtime: %s", monitoring.FormatDowntime(seconds)),
			})
			event := Event{Type: EventCameraRecovered, At: transition.At, Camera: &camera, DowntimeSeconds: seconds}
			if err := p.notifier.Notify(ctx, event); err != nil {
				p.logger.Printf("monitoring: camera recovered notify failed: %v", err)
			}
		}
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, monitoring.ErrDeviceAuth):
		return "auth"
	case errors.Is(err, monitoring.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, monitoring.ErrDeviceUnreachable):
		return "unreachable"
	default:
		return "other"
	}
}
