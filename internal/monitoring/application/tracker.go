package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	monitoring "camwatch/internal/monitoring/domain"
	"camwatch/internal/observability/metrics"
)

// StateRepository persists camera state across restarts.
type StateRepository interface {
	LoadAll(ctx context.Context) ([]monitoring.Camera, error)
	Upsert(ctx context.Context, camera *monitoring.Camera) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CameraView is a read-only presentation of one tracked camera.
type CameraView struct {
	NVRIP           string `json:"nvr_ip"`
	CameraIP        string `json:"camera_ip"`
	ChannelID       string `json:"channel_id"`
	Name            string `json:"camera_name"`
	Status          string `json:"status"`
	IsMuted         bool   `json:"is_muted"`
	DowntimeSeconds *int64 `json:"downtime_seconds,omitempty"`
	Downtime        string `json:"downtime,omitempty"`
	AlertsSent      int    `json:"alerts_sent_count"`

	Since     time.Time `json:"since"`
	LastCheck time.Time `json:"last_check"`
}

// Tracker owns the in-memory camera state table and applies device readings
// to it. All mutation goes through the tracker; each camera is only ever
// written from its own device's poll goroutine or from the alert scheduler,
// serialized by the tracker mutex.
type Tracker struct {
	mu      sync.RWMutex
	cameras map[string]*monitoring.Camera
	// active holds, per NVR, the keys seen in the latest successful poll.
	// Cameras that dropped out of a device's channel list stay in the table
	// and in storage but are excluded from views.
	active map[string]map[string]struct{}

	repo          StateRepository
	logger        *log.Logger
	clock         Clock
	confirmChecks int
}

// TrackerOption customizes the tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock assigns a clock.
func WithTrackerClock(clock Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// NewTracker constructs a tracker and loads previously persisted camera
// state, so outages in progress survive a restart.
func NewTracker(ctx context.Context, repo StateRepository, confirmChecks int, logger *log.Logger, opts ...TrackerOption) (*Tracker, error) {
	if repo == nil {
		return nil, errors.New("monitoring: nil state repository")
	}
	if logger == nil {
		return nil, errors.New("monitoring: nil logger")
	}
	if confirmChecks < 1 {
		confirmChecks = 1
	}
	tracker := &Tracker{
		cameras:       make(map[string]*monitoring.Camera),
		active:        make(map[string]map[string]struct{}),
		repo:          repo,
		logger:        logger,
		clock:         systemClock{},
		confirmChecks: confirmChecks,
	}
	for _, opt := range opts {
		opt(tracker)
	}

	persisted, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range persisted {
		camera := persisted[i]
		tracker.cameras[camera.Key()] = &camera
	}
	if len(persisted) > 0 {
		logger.Printf("monitoring: restored %d camera states", len(persisted))
	}
	return tracker, nil
}

// ApplySnapshot folds one successful device poll into the state table and
// returns the confirmed transitions it produced. State is persisted before
// the transitions are handed back to the caller.
func (t *Tracker) ApplySnapshot(ctx context.Context, snap monitoring.Snapshot) []monitoring.Transition {
	if t == nil || snap.NVRIP == "" {
		return nil
	}
	now := snap.TakenAt
	if now.IsZero() {
		now = t.clock.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{}, len(snap.Readings))
	var transitions []monitoring.Transition
	for _, reading := range snap.Readings {
		key := monitoring.Key(snap.NVRIP, reading.CameraIP)
		seen[key] = struct{}{}

		camera, ok := t.cameras[key]
		if !ok {
			camera = &monitoring.Camera{
				NVRIP:    snap.NVRIP,
				CameraIP: reading.CameraIP,
				Status:   monitoring.StatusUnknown,
			}
			t.cameras[key] = camera
		}
		camera.ChannelID = reading.ChannelID
		if reading.Name != "" {
			camera.Name = reading.Name
		}

		var (
			transition monitoring.Transition
			changed    bool
		)
		if reading.Online {
			transition, changed = camera.ObserveUp(now)
		} else {
			transition, changed = camera.ObserveDown(now, t.confirmChecks)
		}
		t.persist(ctx, camera)
		if changed {
			metrics.IncTransition(transition.To)
			transitions = append(transitions, transition)
		}
	}
	t.active[snap.NVRIP] = seen
	t.updateGauges()
	return transitions
}

// MarkDeviceDown applies a down reading to every active camera of an
// unreachable NVR. Confirmation counting runs per camera as usual, so a
// device outage shorter than the confirmation window never flips cameras.
func (t *Tracker) MarkDeviceDown(ctx context.Context, nvrIP string, at time.Time) []monitoring.Transition {
	if t == nil {
		return nil
	}
	if at.IsZero() {
		at = t.clock.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var transitions []monitoring.Transition
	for key, camera := range t.cameras {
		if camera.NVRIP != nvrIP || !t.isActive(nvrIP, key) {
			continue
		}
		transition, changed := camera.ObserveDown(at, t.confirmChecks)
		t.persist(ctx, camera)
		if changed {
			metrics.IncTransition(transition.To)
			transitions = append(transitions, transition)
		}
	}
	t.updateGauges()
	return transitions
}

// CommitAlert durably records one alert attempt against a camera before any
// notification is dispatched. It returns the updated camera copy and false
// when the camera is no longer offline.
func (t *Tracker) CommitAlert(ctx context.Context, key string, at time.Time) (monitoring.Camera, bool) {
	if t == nil {
		return monitoring.Camera{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	camera, ok := t.cameras[key]
	if !ok || camera.Status != monitoring.StatusOffline {
		return monitoring.Camera{}, false
	}
	updated := *camera
	updated.Alert.LastAlertAt = at
	updated.Alert.SentCount++
	updated.UpdatedAt = at
	if err := t.repo.Upsert(ctx, &updated); err != nil {
		// Not recorded, so it must not be sent. The camera stays due and the
		// next cycle retries.
		t.logger.Printf("monitoring: persist alert state %s failed: %v", key, err)
		return monitoring.Camera{}, false
	}
	*camera = updated
	return *camera, true
}

// Offline returns copies of all active cameras currently confirmed Offline.
func (t *Tracker) Offline() []monitoring.Camera {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var offline []monitoring.Camera
	for key, camera := range t.cameras {
		if camera.Status != monitoring.StatusOffline || !t.isActive(camera.NVRIP, key) {
			continue
		}
		offline = append(offline, *camera)
	}
	sort.Slice(offline, func(i, j int) bool {
		if offline[i].NVRIP != offline[j].NVRIP {
			return offline[i].NVRIP < offline[j].NVRIP
		}
		return offline[i].Name < offline[j].Name
	})
	return offline
}

// Views returns the presentation snapshot of all active cameras, sorted by
// NVR then camera name. muteAfter derives the is_muted flag.
func (t *Tracker) Views(now time.Time, muteAfter int) []CameraView {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]CameraView, 0, len(t.cameras))
	for key, camera := range t.cameras {
		if !t.isActive(camera.NVRIP, key) {
			continue
		}
		view := CameraView{
			NVRIP:      camera.NVRIP,
			CameraIP:   camera.CameraIP,
			ChannelID:  camera.ChannelID,
			Name:       camera.Name,
			Status:     camera.Status,
			IsMuted:    camera.IsMuted(muteAfter),
			AlertsSent: camera.Alert.SentCount,
			Since:      camera.Since,
			LastCheck:  camera.LastCheck,
		}
		if seconds, ok := camera.DowntimeSeconds(now); ok {
			view.DowntimeSeconds = &seconds
			view.Downtime = monitoring.FormatDowntime(seconds)
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].NVRIP != views[j].NVRIP {
			return views[i].NVRIP < views[j].NVRIP
		}
		return views[i].Name < views[j].Name
	})
	return views
}

// Cameras returns copies of all tracked cameras, including stale ones.
func (t *Tracker) Cameras() []monitoring.Camera {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	cameras := make([]monitoring.Camera, 0, len(t.cameras))
	for _, camera := range t.cameras {
		cameras = append(cameras, *camera)
	}
	return cameras
}

func (t *Tracker) isActive(nvrIP, key string) bool {
	seen, ok := t.active[nvrIP]
	if !ok {
		// No successful poll yet for this NVR; restored state stays visible.
		return true
	}
	_, ok = seen[key]
	return ok
}

func (t *Tracker) persist(ctx context.Context, camera *monitoring.Camera) {
	if err := t.repo.Upsert(ctx, camera); err != nil {
		t.logger.Printf("monitoring: persist camera %s failed: %v", camera.Key(), err)
	}
}

func (t *Tracker) updateGauges() {
	var online, offline, unknown int
	for key, camera := range t.cameras {
		if !t.isActive(camera.NVRIP, key) {
			continue
		}
		switch camera.Status {
		case monitoring.StatusOnline:
			online++
		case monitoring.StatusOffline:
			offline++
		default:
			unknown++
		}
	}
	metrics.SetCameraCounts(online, offline, unknown)
}
