package config

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestSettingsValidateRejectsNonPositiveFields(t *testing.T) {
	cases := []struct {
		name     string
		settings Settings
	}{
		{"zero delay", Settings{FirstAlertDelayMinutes: 0, AlertFrequencyMinutes: 60, MuteAfterNAlerts: 3}},
		{"negative frequency", Settings{FirstAlertDelayMinutes: 15, AlertFrequencyMinutes: -1, MuteAfterNAlerts: 3}},
		{"zero mute", Settings{FirstAlertDelayMinutes: 15, AlertFrequencyMinutes: 60, MuteAfterNAlerts: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.settings.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("err = %v, want ErrInvalidSettings", err)
			}
		})
	}
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, DefaultSettings(), NewMemorySettingsRepository(), testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	before := store.Current()
	gen := store.Generation()

	// One bad field rejects the whole document.
	err = store.Update(ctx, Settings{FirstAlertDelayMinutes: 5, AlertFrequencyMinutes: 0, MuteAfterNAlerts: 3})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err = %v, want ErrInvalidSettings", err)
	}
	if store.Current() != before {
		t.Fatalf("settings changed on rejected update: %+v", store.Current())
	}
	if store.Generation() != gen {
		t.Fatalf("generation bumped on rejected update")
	}

	want := Settings{FirstAlertDelayMinutes: 5, AlertFrequencyMinutes: 20, MuteAfterNAlerts: 2}
	if err := store.Update(ctx, want); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.Current() != want {
		t.Fatalf("settings = %+v, want %+v", store.Current(), want)
	}
	if store.Generation() != gen+1 {
		t.Fatalf("generation = %d, want %d", store.Generation(), gen+1)
	}
}

func TestStoreLoadsPersistedSettings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySettingsRepository()
	persisted := Settings{FirstAlertDelayMinutes: 7, AlertFrequencyMinutes: 45, MuteAfterNAlerts: 5}
	if err := repo.SaveSettings(ctx, persisted); err != nil {
		t.Fatalf("save: %v", err)
	}

	store, err := NewStore(ctx, DefaultSettings(), repo, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Current() != persisted {
		t.Fatalf("settings = %+v, want persisted %+v", store.Current(), persisted)
	}
}

func TestLoadCameraNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camera_names.csv")
	csv := "ip,name\n10.0.1.5,Gate\n10.0.1.6, Yard \n,\nmalformed-line\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	names, err := LoadCameraNames(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2 entries", names)
	}
	if names["10.0.1.5"] != "Gate" || names["10.0.1.6"] != "Yard" {
		t.Fatalf("names = %v", names)
	}
}

func TestLoadCameraNamesMissingFileIsEmpty(t *testing.T) {
	names, err := LoadCameraNames(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("names = %v, want empty", names)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Devices:       []DeviceConfig{{IP: "10.0.0.1", Username: "admin"}},
		NVRPassword:   "secret",
		PollInterval:  time.Minute,
		ConfirmChecks: 2,
		RetryAttempts: 3,
		Defaults:      DefaultSettings(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	noDevices := valid
	noDevices.Devices = nil
	if err := noDevices.Validate(); err == nil {
		t.Fatal("expected error for empty device list")
	}

	noPassword := valid
	noPassword.NVRPassword = ""
	if err := noPassword.Validate(); err == nil {
		t.Fatal("expected error for empty password")
	}

	badConfirm := valid
	badConfirm.ConfirmChecks = 0
	if err := badConfirm.Validate(); err == nil {
		t.Fatal("expected error for zero confirm checks")
	}
}
