package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camwatch/internal/eventlog"
	monitoring "camwatch/internal/monitoring/domain"
	"camwatch/internal/reporting"
)

type recordingLogSource struct {
	lastLimit int
	entries   []eventlog.Entry
	err       error
}

func (s *recordingLogSource) Recent(_ context.Context, limit int) ([]eventlog.Entry, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func sampleEntries() []eventlog.Entry {
	at := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	duration := int64(1800)
	return []eventlog.Entry{
		{
			ID:              2,
			Timestamp:       at.Add(time.Minute),
			AlertType:       eventlog.TypeCameraUp,
			Severity:        eventlog.SeverityInfo,
			NVRIP:           "10.0.0.1",
			CameraIP:        "10.0.1.5",
			CameraName:      "Gate",
			Status:          "Online",
			DurationSeconds: &duration,
			Details:         "Camera is back online. Downtime: 00:30",
		},
		{
			ID:         1,
			Timestamp:  at,
			AlertType:  eventlog.TypeCameraDown,
			Severity:   eventlog.SeverityWarning,
			NVRIP:      "10.0.0.1",
			CameraIP:   "10.0.1.5",
			CameraName: "Gate",
			Status:     "Offline",
			DownChecks: 2,
		},
	}
}

func TestLogsHandlerDefaults(t *testing.T) {
	source := &recordingLogSource{entries: sampleEntries()}
	handler := NewLogsHandler(source)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if source.lastLimit != defaultLogLimit {
		t.Fatalf("limit = %d, want %d", source.lastLimit, defaultLogLimit)
	}
	var rows []logRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Timestamp != "2026-03-10 09:31:00" {
		t.Fatalf("timestamp = %q", rows[0].Timestamp)
	}
	if rows[0].DurationSeconds == nil || *rows[0].DurationSeconds != 1800 {
		t.Fatalf("duration = %v", rows[0].DurationSeconds)
	}
	if rows[1].DurationSeconds != nil {
		t.Fatalf("camera_down row should have null duration")
	}
}

func TestLogsHandlerTypeFilter(t *testing.T) {
	source := &recordingLogSource{entries: sampleEntries()}
	handler := NewLogsHandler(source)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?type=camera_down", nil))

	var rows []logRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].AlertType != eventlog.TypeCameraDown {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestLogsHandlerLimitValidation(t *testing.T) {
	source := &recordingLogSource{}
	handler := NewLogsHandler(source)

	for _, bad := range []string{"abc", "0", "-5"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?limit="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit %q: status = %d, want 400", bad, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?limit=99999", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if source.lastLimit != maxLogLimit {
		t.Fatalf("limit = %d, want clamped %d", source.lastLimit, maxLogLimit)
	}
}

func TestLogsHandlerRejectsNonGet(t *testing.T) {
	handler := NewLogsHandler(&recordingLogSource{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestExportLogsCSV(t *testing.T) {
	handler := NewExportLogsCSVHandler(&recordingLogSource{entries: sampleEntries()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/logs.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "logs.csv") {
		t.Fatalf("disposition = %q", got)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2 rows", len(records))
	}
	if records[0][0] != "id" || len(records[0]) != 12 {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][1] != "2026-03-10 09:31:00" || records[1][9] != "1800" {
		t.Fatalf("row = %v", records[1])
	}
}

type fixedCameras struct {
	cameras []monitoring.Camera
}

func (s fixedCameras) Cameras() []monitoring.Camera { return s.cameras }

func TestUptimeHandlerEmptyReportIsEmptyArray(t *testing.T) {
	aggregator, err := reporting.NewAggregator(eventlog.NewMemoryRepository(0), fixedCameras{})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	handler := NewUptimeHandler(aggregator)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/uptime", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %q, want []", body)
	}
}

func TestExportUptimeContentTypes(t *testing.T) {
	cameras := fixedCameras{cameras: []monitoring.Camera{
		{NVRIP: "10.0.0.1", CameraIP: "10.0.1.5", Name: "Gate", Status: monitoring.StatusOnline},
	}}
	aggregator, err := reporting.NewAggregator(eventlog.NewMemoryRepository(0), cameras)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	cases := []struct {
		format      string
		contentType string
		filename    string
	}{
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "uptime.xlsx"},
		{"pdf", "application/pdf", "uptime.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			handler := NewExportUptimeHandler(aggregator, tc.format)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/uptime."+tc.format, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tc.contentType {
				t.Fatalf("content type = %q", got)
			}
			if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, tc.filename) {
				t.Fatalf("disposition = %q", got)
			}
			if rec.Body.Len() == 0 {
				t.Fatal("empty payload")
			}
		})
	}
}
