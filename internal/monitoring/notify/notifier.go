package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/eventlog"
	monitorapp "camwatch/internal/monitoring/application"
	monitoring "camwatch/internal/monitoring/domain"
	"camwatch/internal/observability/metrics"
)

// Message is one rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Channel delivers rendered messages.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Notifier renders monitoring events into messages and pushes them through
// the configured channels. Send outcomes are recorded in the event log.
type Notifier struct {
	channels   []Channel
	writer     *eventlog.Writer
	settings   *config.Store
	logger     *log.Logger
	recipients string
}

// NotifierOption customizes the notifier.
type NotifierOption func(*Notifier)

// WithRecipients sets the recipient list recorded on mail log entries.
func WithRecipients(recipients []string) NotifierOption {
	return func(n *Notifier) {
		n.recipients = strings.Join(recipients, ",")
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channels []Channel, writer *eventlog.Writer, settings *config.Store, logger *log.Logger, opts ...NotifierOption) (*Notifier, error) {
	if writer == nil {
		return nil, errors.New("notify: nil event log writer")
	}
	if settings == nil {
		return nil, errors.New("notify: nil settings store")
	}
	if logger == nil {
		return nil, errors.New("notify: nil logger")
	}
	notifier := &Notifier{
		channels: channels,
		writer:   writer,
		settings: settings,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

// Notify renders and dispatches one event. Digest and recovery events
// produce messages; the rest only matter to streaming notifiers and are
// ignored here.
func (n *Notifier) Notify(ctx context.Context, event monitorapp.Event) error {
	if n == nil || len(n.channels) == 0 {
		return nil
	}

	var (
		msg Message
		err error
	)
	switch event.Type {
	case monitorapp.EventAlertDigest:
		msg, err = n.digestMessage(event)
	case monitorapp.EventCameraRecovered:
		msg, err = n.recoveryMessage(event)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return n.send(ctx, event.At, msg)
}

func (n *Notifier) digestMessage(event monitorapp.Event) (Message, error) {
	settings := n.settings.Current()
	html, err := RenderDigest(event.Offline, settings.MuteAfterNAlerts, event.At)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("%d Camera/NVR Alert(s)", len(event.Offline)),
		HTML:    html,
		Text:    digestText(event.Offline, event.At),
	}, nil
}

func (n *Notifier) recoveryMessage(event monitorapp.Event) (Message, error) {
	if event.Camera == nil {
		return Message{}, errors.New("notify: recovery event without camera")
	}
	downtime := monitoring.FormatDowntime(event.DowntimeSeconds)
	text := fmt.Sprintf("Camera %s (%s on NVR %s) is back online. Downtime: %s",
		event.Camera.Name, event.Camera.CameraIP, event.Camera.NVRIP, downtime)
	html, err := RenderRecovery(*event.Camera, downtime, event.At)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Camera back online: %s", event.Camera.Name),
		HTML:    html,
		Text:    text,
	}, nil
}

func (n *Notifier) send(ctx context.Context, at time.Time, msg Message) error {
	var errs []error
	for _, channel := range n.channels {
		if channel == nil {
			continue
		}
		if err := channel.Send(ctx, msg); err != nil {
			metrics.IncNotification(channel.Name(), metrics.ResultError)
			n.logger.Printf("notify: %s send failed: %v", channel.Name(), err)
			n.writer.Append(ctx, &eventlog.Entry{
				Timestamp:  at,
				AlertType:  eventlog.TypeMailFailed,
				Severity:   eventlog.SeverityError,
				Recipients: n.recipients,
				Details:    fmt.Sprintf("%s delivery failed: %v", channel.Name(), err),
			})
			errs = append(errs, err)
			continue
		}
		metrics.IncNotification(channel.Name(), metrics.ResultSuccess)
		n.writer.Append(ctx, &eventlog.Entry{
			Timestamp:  at,
			AlertType:  eventlog.TypeMailSent,
			Severity:   eventlog.SeverityInfo,
			Recipients: n.recipients,
			Details:    fmt.Sprintf("%s: %s", channel.Name(), msg.Subject),
		})
	}
	return errors.Join(errs...)
}

func digestText(offline []monitoring.Camera, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d camera(s) currently offline:\n", len(offline))
	for i := range offline {
		camera := &offline[i]
		seconds, _ := camera.DowntimeSeconds(now)
		fmt.Fprintf(&b, "- %s (%s on NVR %s), offline for %s, alerts sent: %d\n",
			camera.Name, camera.CameraIP, camera.NVRIP,
			monitoring.FormatDowntime(seconds), camera.Alert.SentCount)
	}
	return b.String()
}
