package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the Postgres persistence gateway for the event log.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Append inserts one entry.
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	if r == nil || r.db == nil {
		return errors.New("eventlog repo: nil db")
	}
	if entry == nil {
		return errors.New("eventlog repo: nil entry")
	}
	if entry.AlertType == "" {
		return errors.New("eventlog repo: empty alert type")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	var duration sql.NullInt64
	if entry.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: *entry.DurationSeconds, Valid: true}
	}
	return r.db.QueryRowContext(ctx, `
INSERT INTO event_log (
	ts, alert_type, severity, nvr_ip, camera_ip, camera_name, status,
	down_checks, duration_seconds, recipients, details
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11
)
RETURNING id`,
		entry.Timestamp,
		entry.AlertType,
		entry.Severity,
		entry.NVRIP,
		entry.CameraIP,
		entry.CameraName,
		entry.Status,
		entry.DownChecks,
		duration,
		entry.Recipients,
		entry.Details,
	).Scan(&entry.ID)
}

// Recent returns up to limit entries, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("eventlog repo: nil db")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ts, alert_type, severity, nvr_ip, camera_ip, camera_name, status,
	down_checks, duration_seconds, recipients, details
FROM event_log
ORDER BY ts DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// RecoveriesSince returns camera_up entries with a recorded duration at or
// after the given time, oldest first. The reporting aggregator replays these
// to reconstruct per-camera offline spans.
func (r *Repository) RecoveriesSince(ctx context.Context, since time.Time) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("eventlog repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ts, alert_type, severity, nvr_ip, camera_ip, camera_name, status,
	down_checks, duration_seconds, recipients, details
FROM event_log
WHERE alert_type = $1 AND ts > $2 AND duration_seconds IS NOT NULL
ORDER BY ts ASC, id ASC`, TypeCameraUp, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var nvrIP, cameraIP, cameraName, status, recipients, details sql.NullString
		var downChecks sql.NullInt64
		var duration sql.NullInt64
		if err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.AlertType,
			&entry.Severity,
			&nvrIP,
			&cameraIP,
			&cameraName,
			&status,
			&downChecks,
			&duration,
			&recipients,
			&details,
		); err != nil {
			return nil, err
		}
		entry.Timestamp = entry.Timestamp.UTC()
		entry.NVRIP = nvrIP.String
		entry.CameraIP = cameraIP.String
		entry.CameraName = cameraName.String
		entry.Status = status.String
		entry.DownChecks = int(downChecks.Int64)
		if duration.Valid {
			value := duration.Int64
			entry.DurationSeconds = &value
		}
		entry.Recipients = recipients.String
		entry.Details = details.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
