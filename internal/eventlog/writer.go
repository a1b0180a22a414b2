package eventlog

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"camwatch/internal/observability/metrics"
)

// Appender persists event log entries.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// ErrDegraded indicates the writer is operating without durable storage.
var ErrDegraded = errors.New("eventlog: persistence degraded")

// Writer appends entries through the persistence gateway with bounded
// retries. On continued failure it falls back to an in-memory buffer and
// surfaces a health fault; the monitor keeps running non-durably rather than
// halting.
type Writer struct {
	primary  Appender
	fallback *MemoryRepository
	logger   *log.Logger

	attempts int
	backoff  time.Duration
	degraded atomic.Bool
}

// WriterOption configures the writer.
type WriterOption func(*Writer)

// WithAttempts sets the bounded per-append retry count.
func WithAttempts(attempts int) WriterOption {
	return func(w *Writer) {
		if attempts > 0 {
			w.attempts = attempts
		}
	}
}

// WithBackoff sets the delay between append retries.
func WithBackoff(backoff time.Duration) WriterOption {
	return func(w *Writer) {
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

// NewWriter constructs a writer. primary may be nil, in which case the
// writer starts degraded and only the in-memory buffer is kept.
func NewWriter(primary Appender, fallback *MemoryRepository, logger *log.Logger, opts ...WriterOption) (*Writer, error) {
	if fallback == nil {
		return nil, errors.New("eventlog writer: nil fallback")
	}
	if logger == nil {
		return nil, errors.New("eventlog writer: nil logger")
	}
	w := &Writer{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		attempts: 3,
		backoff:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	if primary == nil {
		w.degraded.Store(true)
	}
	return w, nil
}

// Healthy reports whether durable persistence is operating.
func (w *Writer) Healthy() bool {
	return w != nil && !w.degraded.Load()
}

// Append persists one entry, retrying transient failures a bounded number of
// times. Failure never propagates to the caller: the entry is kept in memory
// and the writer is marked degraded.
func (w *Writer) Append(ctx context.Context, entry *Entry) {
	if w == nil || entry == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if w.primary != nil {
		var lastErr error
		for attempt := 0; attempt < w.attempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					attempt = w.attempts
					continue
				case <-time.After(w.backoff):
				}
			}
			if lastErr = w.primary.Append(ctx, entry); lastErr == nil {
				if w.degraded.CompareAndSwap(true, false) {
					w.logger.Printf("eventlog: durable persistence recovered")
				}
				metrics.IncLogAppend(metrics.ResultSuccess)
				return
			}
		}
		if w.degraded.CompareAndSwap(false, true) {
			w.logger.Printf("eventlog: persistence failing, continuing in memory: %v", lastErr)
		}
		metrics.IncLogAppend(metrics.ResultError)
	}

	_ = w.fallback.Append(ctx, entry)
}
