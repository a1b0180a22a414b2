package notify

import (
	"context"
	"errors"

	monitorapp "camwatch/internal/monitoring/application"
)

// MultiNotifier dispatches monitoring events to multiple notifiers.
type MultiNotifier struct {
	notifiers []monitorapp.Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...monitorapp.Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the event to all notifiers and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, event monitorapp.Event) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
