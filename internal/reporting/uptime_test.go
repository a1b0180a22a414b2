package reporting

import (
	"context"
	"testing"
	"time"

	"camwatch/internal/eventlog"
	monitoring "camwatch/internal/monitoring/domain"
)

type stubCameras struct {
	cameras []monitoring.Camera
}

func (s stubCameras) Cameras() []monitoring.Camera { return s.cameras }

func seconds(v int64) *int64 { return &v }

func TestReportNeverOfflineIsExactlyHundred(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cameras := stubCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOnline, Since: now.Add(-48 * time.Hour)},
	}}
	aggregator, err := NewAggregator(eventlog.NewMemoryRepository(0), cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := aggregator.Report(context.Background(), now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("rows = %d, want 1", len(report))
	}
	if report[0].UptimePercent != 100.0 {
		t.Fatalf("uptime = %v, want 100.0", report[0].UptimePercent)
	}
	if report[0].DowntimeSeconds != 0 {
		t.Fatalf("downtime = %d, want 0", report[0].DowntimeSeconds)
	}
}

func TestReportClipsOutagesToWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	windowStart := now.Add(-24 * time.Hour)

	logs := eventlog.NewMemoryRepository(0)
	// Outage started 2h before the window opened and ended 1h after; only
	// the hour inside the window counts.
	logs.Append(ctx, &eventlog.Entry{
		Timestamp:       windowStart.Add(time.Hour),
		AlertType:       eventlog.TypeCameraUp,
		Severity:        eventlog.SeverityInfo,
		NVRIP:           "10.0.0.1",
		CameraIP:        "10.0.1.5",
		DurationSeconds: seconds(3 * 3600),
	})
	// A second, fully contained outage of 30 minutes.
	logs.Append(ctx, &eventlog.Entry{
		Timestamp:       windowStart.Add(6 * time.Hour),
		AlertType:       eventlog.TypeCameraUp,
		Severity:        eventlog.SeverityInfo,
		NVRIP:           "10.0.0.1",
		CameraIP:        "10.0.1.5",
		DurationSeconds: seconds(1800),
	})

	cameras := stubCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOnline, Since: now.Add(-time.Hour)},
	}}
	aggregator, err := NewAggregator(logs, cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := aggregator.Report(ctx, now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report[0].DowntimeSeconds != 3600+1800 {
		t.Fatalf("downtime = %d, want %d", report[0].DowntimeSeconds, 3600+1800)
	}
	want := 100 * (86400.0 - 5400.0) / 86400.0
	wantRounded := float64(int(want*100+0.5)) / 100
	if report[0].UptimePercent != wantRounded {
		t.Fatalf("uptime = %v, want %v", report[0].UptimePercent, wantRounded)
	}
}

func TestReportCountsLiveOutageUpToNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cameras := stubCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOffline, Since: now.Add(-2 * time.Hour)},
	}}
	aggregator, err := NewAggregator(eventlog.NewMemoryRepository(0), cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := aggregator.Report(context.Background(), now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report[0].DowntimeSeconds != 7200 {
		t.Fatalf("downtime = %d, want 7200", report[0].DowntimeSeconds)
	}
}

func TestReportOfflineWholeWindowIsZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cameras := stubCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOffline, Since: now.Add(-48 * time.Hour)},
	}}
	aggregator, err := NewAggregator(eventlog.NewMemoryRepository(0), cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := aggregator.Report(context.Background(), now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report[0].UptimePercent != 0.0 {
		t.Fatalf("uptime = %v, want 0.0", report[0].UptimePercent)
	}
}

func TestReportSortedWorstFirstWithStableOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cameras := stubCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.2", CameraIP: "10.0.2.5", Name: "Lobby", Status: monitoring.StatusOnline},
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.6", Name: "Yard", Status: monitoring.StatusOffline, Since: now.Add(-time.Hour)},
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOnline},
	}}
	aggregator, err := NewAggregator(eventlog.NewMemoryRepository(0), cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	report, err := aggregator.Report(context.Background(), now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report[0].Name != "Yard" {
		t.Fatalf("worst camera not first: %+v", report)
	}
	// Equal uptime ties break on nvr_ip then camera name.
	if report[1].Name != "Gate" || report[2].Name != "Lobby" {
		t.Fatalf("tie order wrong: %s, %s", report[1].Name, report[2].Name)
	}
}

func TestBuildUptimeExports(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	report := []CameraUptime{
		{Name: "Gate", CameraIP: "10.0.1.5", NVRIP: "10.0.0.1", DowntimeSeconds: 3600, UptimePercent: 95.83},
	}

	xlsx, err := BuildUptimeXLSX(report, now)
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if len(xlsx) == 0 {
		t.Fatal("empty xlsx payload")
	}

	pdf, err := BuildUptimePDF(report, now)
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty pdf payload")
	}
}
