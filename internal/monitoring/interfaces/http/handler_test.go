package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitorapp "camwatch/internal/monitoring/application"
	monitoring "camwatch/internal/monitoring/domain"
	"camwatch/internal/monitoring/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newStatusFixture(t *testing.T, now time.Time) (*StatusHandler, *monitorapp.Tracker) {
	t.Helper()
	ctx := context.Background()
	tracker, err := monitorapp.NewTracker(ctx, memory.NewCameraStateRepository(), 1, testLogger())
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	store, err := config.NewStore(ctx, config.DefaultSettings(), config.NewMemorySettingsRepository(), testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	handler := NewStatusHandler(tracker, store)
	handler.clock = fixedClock{now: now}
	return handler, tracker
}

func TestStatusHandlerReportsCameraTable(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	handler, tracker := newStatusFixture(t, now)
	ctx := context.Background()

	tracker.ApplySnapshot(ctx, monitoring.Snapshot{
		NVRIP:   "10.0.0.1",
		TakenAt: now.Add(-10 * time.Minute),
		Readings: []monitoring.Reading{
			{ChannelID: "1", CameraIP: "10.0.1.5", Name: "Gate", Online: true},
			{ChannelID: "2", CameraIP: "10.0.1.6", Name: "Yard", Online: false},
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var response struct {
		GeneratedAt time.Time `json:"generated_at"`
		Total       int       `json:"total"`
		Online      int       `json:"online"`
		Offline     int       `json:"offline"`
		Cameras     []struct {
			Name     string `json:"camera_name"`
			Status   string `json:"status"`
			IsMuted  bool   `json:"is_muted"`
			Downtime string `json:"downtime,omitempty"`
		} `json:"cameras"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !response.GeneratedAt.Equal(now) {
		t.Fatalf("generated_at = %v", response.GeneratedAt)
	}
	if len(response.Cameras) != 2 {
		t.Fatalf("cameras = %d, want 2", len(response.Cameras))
	}
	if response.Total != 2 || response.Online != 1 || response.Offline != 1 {
		t.Fatalf("counts = %d/%d/%d", response.Total, response.Online, response.Offline)
	}
	if response.Cameras[0].Name != "Gate" || response.Cameras[0].Status != "Online" {
		t.Fatalf("camera 0 = %+v", response.Cameras[0])
	}
	if response.Cameras[1].Status != "Offline" || response.Cameras[1].Downtime != "00:10" {
		t.Fatalf("camera 1 = %+v", response.Cameras[1])
	}
}

func TestStatusHandlerEmptyTableIsEmptyArray(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	handler, _ := newStatusFixture(t, now)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if !strings.Contains(rec.Body.String(), `"cameras":[]`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func newConfigFixture(t *testing.T) (*ConfigHandler, *config.Store, *eventlog.MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	store, err := config.NewStore(ctx, config.DefaultSettings(), config.NewMemorySettingsRepository(), testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	logRepo := eventlog.NewMemoryRepository(0)
	writer, err := eventlog.NewWriter(logRepo, eventlog.NewMemoryRepository(0), testLogger())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	return NewConfigHandler(store, writer), store, logRepo
}

func TestConfigHandlerRoundTrip(t *testing.T) {
	handler, store, logRepo := newConfigFixture(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var current config.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &current); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if current != config.DefaultSettings() {
		t.Fatalf("settings = %+v", current)
	}

	body := `{"FIRST_ALERT_DELAY_MINUTES":5,"ALERT_FREQUENCY_MINUTES":20,"MUTE_AFTER_N_ALERTS":2}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}
	want := config.Settings{FirstAlertDelayMinutes: 5, AlertFrequencyMinutes: 20, MuteAfterNAlerts: 2}
	if store.Current() != want {
		t.Fatalf("settings = %+v, want %+v", store.Current(), want)
	}

	entries, _ := logRepo.Recent(context.Background(), 10)
	if len(entries) != 1 || entries[0].AlertType != eventlog.TypeConfigChanged {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(entries[0].Details, "First_Delay=5") {
		t.Fatalf("details = %q", entries[0].Details)
	}
}

func TestConfigHandlerRejectsInvalidDocument(t *testing.T) {
	handler, store, logRepo := newConfigFixture(t)
	before := store.Current()

	body := `{"FIRST_ALERT_DELAY_MINUTES":0,"ALERT_FREQUENCY_MINUTES":20,"MUTE_AFTER_N_ALERTS":2}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.Current() != before {
		t.Fatalf("settings changed on rejected update")
	}
	if logRepo.Len() != 0 {
		t.Fatal("rejected update logged a config change")
	}
}

func TestConfigHandlerRejectsUnknownFields(t *testing.T) {
	handler, _, _ := newConfigFixture(t)

	body := `{"FIRST_ALERT_DELAY_MINUTES":5,"ALERT_FREQUENCY_MINUTES":20,"MUTE_AFTER_N_ALERTS":2,"EXTRA":1}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSSEBrokerDeliversToSubscribers(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	event := monitorapp.Event{Type: monitorapp.EventCameraOffline, NVRIP: "10.0.0.1"}
	if err := broker.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case payload := <-ch:
		var got monitorapp.Event
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != monitorapp.EventCameraOffline || got.NVRIP != "10.0.0.1" {
			t.Fatalf("event = %+v", got)
		}
	default:
		t.Fatal("no payload delivered")
	}
}

func TestSSEBrokerDropsWhenClientIsFull(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	for i := 0; i < 40; i++ {
		if err := broker.Notify(context.Background(), monitorapp.Event{Type: monitorapp.EventCameraOffline}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if got := len(ch); got != cap(ch) {
		t.Fatalf("buffered = %d, want full buffer %d", got, cap(ch))
	}
}

func TestStreamHandlerSendsReadyFrame(t *testing.T) {
	broker := NewSSEBroker()
	handler := NewStreamHandler(broker)

	// A cancelled request context makes the handler return right after the
	// ready frame instead of blocking on events.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "event: ready") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
