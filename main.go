package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "camwatch/internal/api/http"
	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitorapp "camwatch/internal/monitoring/application"
	monitoring "camwatch/internal/monitoring/domain"
	monitormem "camwatch/internal/monitoring/infrastructure/memory"
	monitorpg "camwatch/internal/monitoring/infrastructure/postgres"
	monitorhttp "camwatch/internal/monitoring/interfaces/http"
	"camwatch/internal/monitoring/notify"
	"camwatch/internal/nvr"
	"camwatch/internal/observability/metrics"
	"camwatch/internal/reporting"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// logStore is the event log persistence used for both appends and reads.
type logStore interface {
	eventlog.Appender
	Recent(ctx context.Context, limit int) ([]eventlog.Entry, error)
	RecoveriesSince(ctx context.Context, since time.Time) ([]eventlog.Entry, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		if err := ensureSchema(context.Background(), db); err != nil {
			logger.Fatalf("db schema error: %v", err)
		}
	} else {
		logger.Printf("no DATABASE_URL configured, state and logs are not durable")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		settingsRepo config.SettingsRepository
		stateRepo    monitorapp.StateRepository
		logs         logStore
	)
	if db != nil {
		settingsRepo = config.NewPostgresSettingsRepository(db)
		stateRepo = monitorpg.NewCameraStateRepository(db)
		logs = eventlog.NewRepository(db)
	} else {
		settingsRepo = config.NewMemorySettingsRepository()
		stateRepo = monitormem.NewCameraStateRepository()
		logs = eventlog.NewMemoryRepository(0)
	}

	settingsStore, err := config.NewStore(ctx, cfg.Defaults, settingsRepo, logger)
	if err != nil {
		logger.Fatalf("settings store error: %v", err)
	}
	writer, err := eventlog.NewWriter(logs, eventlog.NewMemoryRepository(0), logger)
	if err != nil {
		logger.Fatalf("event log writer error: %v", err)
	}

	tracker, err := monitorapp.NewTracker(ctx, stateRepo, cfg.ConfirmChecks, logger)
	if err != nil {
		logger.Fatalf("tracker error: %v", err)
	}

	names, err := config.LoadCameraNames(cfg.CameraNamesFile)
	if err != nil {
		logger.Fatalf("camera names error: %v", err)
	}
	devices := make([]monitoring.Device, 0, len(cfg.Devices))
	for _, device := range cfg.Devices {
		devices = append(devices, monitoring.Device{IP: device.IP, Username: device.Username})
	}
	pool, err := nvr.NewPool(devices, cfg.NVRPassword, names, nvr.WithTimeout(cfg.QueryTimeout))
	if err != nil {
		logger.Fatalf("nvr pool error: %v", err)
	}

	broker := monitorhttp.NewSSEBroker()
	channels, err := buildChannels(cfg.Mail)
	if err != nil {
		logger.Fatalf("notification channel error: %v", err)
	}
	emailNotifier, err := notify.NewNotifier(channels, writer, settingsStore, logger, notify.WithRecipients(cfg.Mail.Recipients))
	if err != nil {
		logger.Fatalf("notifier error: %v", err)
	}
	notifier := notify.NewMultiNotifier(broker, emailNotifier)

	scheduler, err := monitorapp.NewScheduler(tracker, settingsStore, writer, notifier, logger,
		monitorapp.WithSchedulerInterval(cfg.PollInterval))
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	poller, err := monitorapp.NewPoller(pool, tracker, writer, notifier, settingsStore, devices, logger,
		monitorapp.WithPollInterval(cfg.PollInterval),
		monitorapp.WithRetry(cfg.RetryAttempts, cfg.RetryBackoff),
		monitorapp.WithQueryTimeout(cfg.QueryTimeout))
	if err != nil {
		logger.Fatalf("poller error: %v", err)
	}

	aggregator, err := reporting.NewAggregator(logs, tracker)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}

	writer.Append(ctx, &eventlog.Entry{
		Timestamp: time.Now().UTC(),
		AlertType: eventlog.TypeServiceStarted,
		Severity:  eventlog.SeverityInfo,
		Details:   "Monitoring service started",
	})
	go poller.Run(ctx)
	go scheduler.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/status", monitorhttp.NewStatusHandler(tracker, settingsStore))
	mux.Handle("/api/v1/config", monitorhttp.NewConfigHandler(settingsStore, writer))
	mux.Handle("/api/v1/events/stream", monitorhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/logs", apihttp.NewLogsHandler(logs))
	mux.Handle("/api/v1/reports/uptime", apihttp.NewUptimeHandler(aggregator))
	mux.Handle("/api/v1/exports/logs.csv", apihttp.NewExportLogsCSVHandler(logs))
	mux.Handle("/api/v1/exports/uptime.xlsx", apihttp.NewExportUptimeHandler(aggregator, "xlsx"))
	mux.Handle("/api/v1/exports/uptime.pdf", apihttp.NewExportUptimeHandler(aggregator, "pdf"))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !writer.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("degraded"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	writer.Append(shutdownCtx, &eventlog.Entry{
		Timestamp: time.Now().UTC(),
		AlertType: eventlog.TypeServiceStopped,
		Severity:  eventlog.SeverityInfo,
		Details:   "Monitoring service stopped",
	})
}

// ensureSchema creates the monitor's tables when they do not exist yet, so a
// fresh database works without a separate migration step.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS camera_states (
	nvr_ip TEXT NOT NULL,
	camera_ip TEXT NOT NULL,
	channel_id TEXT NOT NULL DEFAULT '',
	camera_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Unknown',
	since TIMESTAMPTZ,
	last_check TIMESTAMPTZ,
	down_checks INTEGER NOT NULL DEFAULT 0,
	first_offline_at TIMESTAMPTZ,
	last_alert_at TIMESTAMPTZ,
	alerts_sent_count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (nvr_ip, camera_ip)
)`,
		`CREATE TABLE IF NOT EXISTS event_log (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT 'info',
	nvr_ip TEXT,
	camera_ip TEXT,
	camera_name TEXT,
	status TEXT,
	down_checks INTEGER,
	duration_seconds BIGINT,
	recipients TEXT,
	details TEXT
)`,
		`CREATE INDEX IF NOT EXISTS event_log_ts_idx ON event_log (ts DESC)`,
		`CREATE INDEX IF NOT EXISTS event_log_type_ts_idx ON event_log (alert_type, ts)`,
		`CREATE TABLE IF NOT EXISTS service_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func buildChannels(mail config.MailConfig) ([]notify.Channel, error) {
	var channels []notify.Channel
	switch mail.Channel {
	case "smtp":
		channel, err := notify.NewSMTPChannel(mail.SMTPHost, mail.SMTPPort, mail.SMTPUser, mail.SMTPPass, mail.From, mail.Recipients)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	case "resend":
		channel, err := notify.NewResendChannel(mail.ResendAPIKey, mail.From, mail.Recipients)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	case "":
		// Email disabled.
	default:
		return nil, errors.New("unknown mail channel: " + mail.Channel)
	}
	if mail.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(mail.WebhookURL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
