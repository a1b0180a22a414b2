package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"camwatch/internal/eventlog"
	"camwatch/internal/reporting"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	defaultLogLimit = 200
	maxLogLimit     = 1000
)

// LogSource reads recent event log entries.
type LogSource interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Entry, error)
}

// LogsHandler serves recent event log queries.
type LogsHandler struct {
	logs LogSource
}

// NewLogsHandler constructs a LogsHandler.
func NewLogsHandler(logs LogSource) *LogsHandler {
	return &LogsHandler{logs: logs}
}

type logRow struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	AlertType  string `json:"alert_type"`
	Severity   string `json:"severity"`
	NVRIP      string `json:"nvr_ip,omitempty"`
	CameraIP   string `json:"camera_ip,omitempty"`
	CameraName string `json:"camera_name,omitempty"`
	Status     string `json:"status,omitempty"`
	DownChecks int    `json:"down_checks,omitempty"`

	DurationSeconds *int64 `json:"duration_seconds"`

	Recipients string `json:"recipients,omitempty"`
	Details    string `json:"details,omitempty"`
}

// ServeHTTP handles GET /api/v1/logs.
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.logs == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "query logs error", http.StatusInternalServerError)
		return
	}

	alertType := r.URL.Query().Get("type")
	rows := make([]logRow, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if alertType != "" && entry.AlertType != alertType {
			continue
		}
		rows = append(rows, toLogRow(entry))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportLogsCSVHandler serves event log CSV exports.
type ExportLogsCSVHandler struct {
	logs LogSource
}

// NewExportLogsCSVHandler constructs an ExportLogsCSVHandler.
func NewExportLogsCSVHandler(logs LogSource) *ExportLogsCSVHandler {
	return &ExportLogsCSVHandler{logs: logs}
}

// ServeHTTP handles GET /api/v1/exports/logs.csv.
func (h *ExportLogsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.logs == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "query logs error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="logs.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id",
		"timestamp",
		"alert_type",
		"severity",
		"nvr_ip",
		"camera_ip",
		"camera_name",
		"status",
		"down_checks",
		"duration_seconds",
		"recipients",
		"details",
	})
	for i := range entries {
		entry := &entries[i]
		duration := ""
		if entry.DurationSeconds != nil {
			duration = strconv.FormatInt(*entry.DurationSeconds, 10)
		}
		_ = writer.Write([]string{
			strconv.FormatInt(entry.ID, 10),
			entry.Timestamp.Format(timeLayout),
			entry.AlertType,
			entry.Severity,
			entry.NVRIP,
			entry.CameraIP,
			entry.CameraName,
			entry.Status,
			strconv.Itoa(entry.DownChecks),
			duration,
			entry.Recipients,
			entry.Details,
		})
	}
	writer.Flush()
}

// UptimeHandler serves the trailing-window uptime report.
type UptimeHandler struct {
	aggregator *reporting.Aggregator
}

// NewUptimeHandler constructs an UptimeHandler.
func NewUptimeHandler(aggregator *reporting.Aggregator) *UptimeHandler {
	return &UptimeHandler{aggregator: aggregator}
}

// ServeHTTP handles GET /api/v1/reports/uptime.
func (h *UptimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.aggregator == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	report, err := h.aggregator.Report(r.Context(), time.Now())
	if err != nil {
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		report = []reporting.CameraUptime{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// ExportUptimeHandler serves uptime report exports as XLSX or PDF.
type ExportUptimeHandler struct {
	aggregator *reporting.Aggregator
	format     string
}

// NewExportUptimeHandler constructs an ExportUptimeHandler for "xlsx" or
// "pdf".
func NewExportUptimeHandler(aggregator *reporting.Aggregator, format string) *ExportUptimeHandler {
	return &ExportUptimeHandler{aggregator: aggregator, format: format}
}

// ServeHTTP handles GET /api/v1/exports/uptime.{xlsx,pdf}.
func (h *ExportUptimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.aggregator == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	now := time.Now()
	report, err := h.aggregator.Report(r.Context(), now)
	if err != nil {
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}

	var (
		payload     []byte
		contentType string
		filename    string
	)
	switch h.format {
	case "pdf":
		payload, err = reporting.BuildUptimePDF(report, now)
		contentType = "application/pdf"
		filename = "uptime.pdf"
	default:
		payload, err = reporting.BuildUptimeXLSX(report, now)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "uptime.xlsx"
	}
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLogLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return limit, nil
}

func toLogRow(entry *eventlog.Entry) logRow {
	return logRow{
		ID:              entry.ID,
		Timestamp:       entry.Timestamp.Format(timeLayout),
		AlertType:       entry.AlertType,
		Severity:        entry.Severity,
		NVRIP:           entry.NVRIP,
		CameraIP:        entry.CameraIP,
		CameraName:      entry.CameraName,
		Status:          entry.Status,
		DownChecks:      entry.DownChecks,
		DurationSeconds: entry.DurationSeconds,
		Recipients:      entry.Recipients,
		Details:         entry.Details,
	}
}
