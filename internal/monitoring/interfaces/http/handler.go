package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitorapp "camwatch/internal/monitoring/application"
	monitoring "camwatch/internal/monitoring/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// StatusHandler serves the live camera status snapshot.
type StatusHandler struct {
	tracker  *monitorapp.Tracker
	settings *config.Store
	clock    Clock
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(tracker *monitorapp.Tracker, settings *config.Store) *StatusHandler {
	return &StatusHandler{tracker: tracker, settings: settings, clock: systemClock{}}
}

type statusResponse struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Total       int                     `json:"total"`
	Online      int                     `json:"online"`
	Offline     int                     `json:"offline"`
	Cameras     []monitorapp.CameraView `json:"cameras"`
}

// ServeHTTP handles GET /api/v1/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.tracker == nil || h.settings == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	now := h.clock.Now()
	response := statusResponse{
		GeneratedAt: now,
		Cameras:     h.tracker.Views(now, h.settings.Current().MuteAfterNAlerts),
	}
	if response.Cameras == nil {
		response.Cameras = []monitorapp.CameraView{}
	}
	response.Total = len(response.Cameras)
	for i := range response.Cameras {
		switch response.Cameras[i].Status {
		case monitoring.StatusOnline:
			response.Online++
		case monitoring.StatusOffline:
			response.Offline++
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// ConfigHandler reads and updates the alert settings document.
type ConfigHandler struct {
	settings *config.Store
	writer   *eventlog.Writer
	clock    Clock
}

// NewConfigHandler constructs a ConfigHandler.
func NewConfigHandler(settings *config.Store, writer *eventlog.Writer) *ConfigHandler {
	return &ConfigHandler{settings: settings, writer: writer, clock: systemClock{}}
}

// ServeHTTP handles GET and PUT /api/v1/config.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.settings == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.settings.Current())
	case http.MethodPut, http.MethodPost:
		h.update(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ConfigHandler) update(w http.ResponseWriter, r *http.Request) {
	var next config.Settings
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&next); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.settings.Update(r.Context(), next); err != nil {
		if errors.Is(err, config.ErrInvalidSettings) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	if h.writer != nil {
		h.writer.Append(r.Context(), &eventlog.Entry{
			Timestamp: h.clock.Now(),
			AlertType: eventlog.TypeConfigChanged,
			Severity:  eventlog.SeverityInfo,
			Details: fmt.Sprintf("Config updated: First_Delay=%d, Freq=%d, Mute_N=%d",
				next.FirstAlertDelayMinutes, next.AlertFrequencyMinutes, next.MuteAfterNAlerts),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.settings.Current())
}
