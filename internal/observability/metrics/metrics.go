package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "camwatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollTotal   *prometheus.CounterVec
	pollLatency *prometheus.HistogramVec
	pollErrors  *prometheus.CounterVec

	camerasByStatus *prometheus.GaugeVec
	devicesDown     prometheus.Gauge

	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	logAppendsTotal    *prometheus.CounterVec
)

// Init registers monitor metrics.
func Init() {
	registerOnce.Do(func() {
		pollTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_polls_total",
				Help: "Total device polls by result",
			},
			[]string{"result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "device_poll_latency_seconds",
				Help:    "Device poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		pollErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_poll_errors_total",
				Help: "Total device poll errors by reason",
			},
			[]string{"reason"},
		)

		camerasByStatus = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cameras",
				Help: "Tracked cameras by status",
			},
			[]string{"status"},
		)
		devicesDown = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices_unreachable",
				Help: "Currently unreachable devices",
			},
		)

		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "camera_transitions_total",
				Help: "Total confirmed camera state transitions by direction",
			},
			[]string{"to"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification dispatch attempts by kind and result",
			},
			[]string{"kind", "result"},
		)
		logAppendsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "eventlog_appends_total",
				Help: "Total durable event log appends by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			pollTotal,
			pollLatency,
			pollErrors,
			camerasByStatus,
			devicesDown,
			transitionsTotal,
			notificationsTotal,
			logAppendsTotal,
		)
	})
}

// ObservePoll records one device poll attempt.
func ObservePoll(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollTotal != nil {
		pollTotal.WithLabelValues(result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPollError increments the poll error counter.
func IncPollError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if pollErrors != nil {
		pollErrors.WithLabelValues(reason).Inc()
	}
}

// SetCameraCounts publishes the camera status gauges.
func SetCameraCounts(online, offline, unknown int) {
	if camerasByStatus == nil {
		return
	}
	camerasByStatus.WithLabelValues("online").Set(float64(online))
	camerasByStatus.WithLabelValues("offline").Set(float64(offline))
	camerasByStatus.WithLabelValues("unknown").Set(float64(unknown))
}

// SetDevicesUnreachable publishes the unreachable device gauge.
func SetDevicesUnreachable(count int) {
	if devicesDown != nil {
		devicesDown.Set(float64(count))
	}
}

// IncTransition counts one confirmed camera transition.
func IncTransition(to string) {
	if to == "" {
		to = "unknown"
	}
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(to).Inc()
	}
}

// IncNotification counts one notification dispatch attempt.
func IncNotification(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(kind, result).Inc()
	}
}

// IncLogAppend counts one durable append attempt.
func IncLogAppend(result string) {
	if result == "" {
		result = resultSuccess
	}
	if logAppendsTotal != nil {
		logAppendsTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
