package config

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Keys used in the service_config table.
const (
	keyFirstAlertDelay = "FIRST_ALERT_DELAY_MINUTES"
	keyAlertFrequency  = "ALERT_FREQUENCY_MINUTES"
	keyMuteAfter       = "MUTE_AFTER_N_ALERTS"
)

// PostgresSettingsRepository stores runtime settings as key/value rows.
type PostgresSettingsRepository struct {
	db *sql.DB
}

// NewPostgresSettingsRepository constructs a repository.
func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	if db == nil {
		return nil
	}
	return &PostgresSettingsRepository{db: db}
}

// LoadSettings reads persisted settings. Returns (nil, nil) when no row is
// present yet.
func (r *PostgresSettingsRepository) LoadSettings(ctx context.Context) (*Settings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settings repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT key, value FROM service_config
WHERE key IN ($1, $2, $3)`, keyFirstAlertDelay, keyAlertFrequency, keyMuteAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]int)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		values[key] = parsed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	settings := DefaultSettings()
	if v, ok := values[keyFirstAlertDelay]; ok {
		settings.FirstAlertDelayMinutes = v
	}
	if v, ok := values[keyAlertFrequency]; ok {
		settings.AlertFrequencyMinutes = v
	}
	if v, ok := values[keyMuteAfter]; ok {
		settings.MuteAfterNAlerts = v
	}
	return &settings, nil
}

// SaveSettings upserts all three keys.
func (r *PostgresSettingsRepository) SaveSettings(ctx context.Context, settings Settings) error {
	if r == nil || r.db == nil {
		return errors.New("settings repo: nil db")
	}
	now := time.Now().UTC()
	for key, value := range map[string]int{
		keyFirstAlertDelay: settings.FirstAlertDelayMinutes,
		keyAlertFrequency:  settings.AlertFrequencyMinutes,
		keyMuteAfter:       settings.MuteAfterNAlerts,
	} {
		if _, err := r.db.ExecContext(ctx, `
INSERT INTO service_config (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			key, strconv.Itoa(value), now); err != nil {
			return err
		}
	}
	return nil
}

// MemorySettingsRepository keeps settings in process memory, for tests and
// database-less operation.
type MemorySettingsRepository struct {
	settings *Settings
}

// NewMemorySettingsRepository constructs a repository.
func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{}
}

// LoadSettings returns the stored settings, or (nil, nil) before any save.
func (r *MemorySettingsRepository) LoadSettings(_ context.Context) (*Settings, error) {
	if r.settings == nil {
		return nil, nil
	}
	copied := *r.settings
	return &copied, nil
}

// SaveSettings stores a copy.
func (r *MemorySettingsRepository) SaveSettings(_ context.Context, settings Settings) error {
	r.settings = &settings
	return nil
}
