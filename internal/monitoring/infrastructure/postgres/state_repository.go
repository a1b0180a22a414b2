package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitoring "camwatch/internal/monitoring/domain"
)

// CameraStateRepository stores per-camera monitor state in camera_states.
type CameraStateRepository struct {
	db *sql.DB
}

// NewCameraStateRepository constructs a repository.
func NewCameraStateRepository(db *sql.DB) *CameraStateRepository {
	return &CameraStateRepository{db: db}
}

// LoadAll fetches every persisted camera state.
func (r *CameraStateRepository) LoadAll(ctx context.Context) ([]monitoring.Camera, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("camera state repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT nvr_ip, camera_ip, channel_id, camera_name, status,
	since, last_check, down_checks,
	first_offline_at, last_alert_at, alerts_sent_count, updated_at
FROM camera_states`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []monitoring.Camera
	for rows.Next() {
		var (
			camera         monitoring.Camera
			since          sql.NullTime
			lastCheck      sql.NullTime
			firstOfflineAt sql.NullTime
			lastAlertAt    sql.NullTime
		)
		if err := rows.Scan(
			&camera.NVRIP,
			&camera.CameraIP,
			&camera.ChannelID,
			&camera.Name,
			&camera.Status,
			&since,
			&lastCheck,
			&camera.DownChecks,
			&firstOfflineAt,
			&lastAlertAt,
			&camera.Alert.SentCount,
			&camera.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if since.Valid {
			camera.Since = since.Time.UTC()
		}
		if lastCheck.Valid {
			camera.LastCheck = lastCheck.Time.UTC()
		}
		if firstOfflineAt.Valid {
			camera.Alert.FirstOfflineAt = firstOfflineAt.Time.UTC()
		}
		if lastAlertAt.Valid {
			camera.Alert.LastAlertAt = lastAlertAt.Time.UTC()
		}
		camera.UpdatedAt = camera.UpdatedAt.UTC()
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

// Upsert inserts or updates one camera state.
func (r *CameraStateRepository) Upsert(ctx context.Context, camera *monitoring.Camera) error {
	if r == nil || r.db == nil {
		return errors.New("camera state repo: nil db")
	}
	if camera == nil {
		return errors.New("camera state repo: nil camera")
	}
	if camera.UpdatedAt.IsZero() {
		camera.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO camera_states (
	nvr_ip, camera_ip, channel_id, camera_name, status,
	since, last_check, down_checks,
	first_offline_at, last_alert_at, alerts_sent_count, updated_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8,
	$9, $10, $11, $12
)
ON CONFLICT (nvr_ip, camera_ip)
DO UPDATE SET
	channel_id = EXCLUDED.channel_id,
	camera_name = EXCLUDED.camera_name,
	status = EXCLUDED.status,
	since = EXCLUDED.since,
	last_check = EXCLUDED.last_check,
	down_checks = EXCLUDED.down_checks,
	first_offline_at = EXCLUDED.first_offline_at,
	last_alert_at = EXCLUDED.last_alert_at,
	alerts_sent_count = EXCLUDED.alerts_sent_count,
	updated_at = EXCLUDED.updated_at`,
		camera.NVRIP,
		camera.CameraIP,
		camera.ChannelID,
		camera.Name,
		camera.Status,
		nullTime(camera.Since),
		nullTime(camera.LastCheck),
		camera.DownChecks,
		nullTime(camera.Alert.FirstOfflineAt),
		nullTime(camera.Alert.LastAlertAt),
		camera.Alert.SentCount,
		camera.UpdatedAt,
	)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
