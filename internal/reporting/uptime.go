// Package reporting computes rolling uptime aggregates from the event log
// and the live camera table.
package reporting

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"camwatch/internal/eventlog"
	monitoring "camwatch/internal/monitoring/domain"
)

// DefaultWindow is the trailing span covered by the uptime report.
const DefaultWindow = 24 * time.Hour

// RecoverySource reads completed-outage entries from the event log.
type RecoverySource interface {
	RecoveriesSince(ctx context.Context, since time.Time) ([]eventlog.Entry, error)
}

// CameraSource exposes the current camera state table.
type CameraSource interface {
	Cameras() []monitoring.Camera
}

// CameraUptime is one camera's share of the report.
type CameraUptime struct {
	Name            string  `json:"name"`
	CameraIP        string  `json:"ip"`
	NVRIP           string  `json:"nvr_ip"`
	DowntimeSeconds int64   `json:"downtime_seconds"`
	UptimePercent   float64 `json:"uptime_percent"`
}

// Aggregator builds uptime reports over a trailing window.
type Aggregator struct {
	recoveries RecoverySource
	cameras    CameraSource
	window     time.Duration
}

// AggregatorOption customizes the aggregator.
type AggregatorOption func(*Aggregator)

// WithWindow overrides the trailing window span.
func WithWindow(window time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if window > 0 {
			a.window = window
		}
	}
}

// NewAggregator constructs an uptime aggregator.
func NewAggregator(recoveries RecoverySource, cameras CameraSource, opts ...AggregatorOption) (*Aggregator, error) {
	if recoveries == nil {
		return nil, errors.New("reporting: nil recovery source")
	}
	if cameras == nil {
		return nil, errors.New("reporting: nil camera source")
	}
	aggregator := &Aggregator{
		recoveries: recoveries,
		cameras:    cameras,
		window:     DefaultWindow,
	}
	for _, opt := range opts {
		opt(aggregator)
	}
	return aggregator, nil
}

// Report computes per-camera uptime over the trailing window ending at now.
// Completed outages are replayed from camera_up log entries clipped to the
// window; a camera still offline contributes up to now. A camera with no
// offline time reports exactly 100.0. The result is sorted ascending by
// (uptime_percent, nvr_ip, camera_name), worst first.
func (a *Aggregator) Report(ctx context.Context, now time.Time) ([]CameraUptime, error) {
	if a == nil {
		return nil, errors.New("reporting: nil aggregator")
	}
	windowStart := now.Add(-a.window)
	windowSeconds := a.window.Seconds()

	entries, err := a.recoveries.RecoveriesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	downtimeByKey := make(map[string]float64)
	for i := range entries {
		entry := &entries[i]
		if entry.DurationSeconds == nil {
			continue
		}
		outageStart := entry.Timestamp.Add(-time.Duration(*entry.DurationSeconds) * time.Second)
		if outageStart.Before(windowStart) {
			outageStart = windowStart
		}
		inWindow := entry.Timestamp.Sub(outageStart).Seconds()
		if inWindow > 0 {
			downtimeByKey[monitoring.Key(entry.NVRIP, entry.CameraIP)] += inWindow
		}
	}

	cameras := a.cameras.Cameras()
	report := make([]CameraUptime, 0, len(cameras))
	for i := range cameras {
		camera := &cameras[i]
		downtime := downtimeByKey[camera.Key()]
		if camera.Status == monitoring.StatusOffline && !camera.Since.IsZero() {
			outageStart := camera.Since
			if outageStart.Before(windowStart) {
				outageStart = windowStart
			}
			if live := now.Sub(outageStart).Seconds(); live > 0 {
				downtime += live
			}
		}
		if downtime > windowSeconds {
			downtime = windowSeconds
		}

		percent := 100 * (windowSeconds - downtime) / windowSeconds
		if percent < 0 {
			percent = 0
		}
		if percent > 100 || downtime == 0 {
			percent = 100
		}
		report = append(report, CameraUptime{
			Name:            camera.Name,
			CameraIP:        camera.CameraIP,
			NVRIP:           camera.NVRIP,
			DowntimeSeconds: int64(downtime),
			UptimePercent:   math.Round(percent*100) / 100,
		})
	}

	sort.Slice(report, func(i, j int) bool {
		if report[i].UptimePercent != report[j].UptimePercent {
			return report[i].UptimePercent < report[j].UptimePercent
		}
		if report[i].NVRIP != report[j].NVRIP {
			return report[i].NVRIP < report[j].NVRIP
		}
		return report[i].Name < report[j].Name
	})
	return report, nil
}
