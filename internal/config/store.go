package config

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// SettingsRepository persists runtime settings across restarts.
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
}

// Store holds the live alert settings. Readers get a consistent copy without
// locking the writers; updates validate the whole document first and bump a
// generation counter so pollers can notice configuration changes.
type Store struct {
	mu         sync.Mutex
	value      atomic.Value // Settings
	generation atomic.Uint64
	repo       SettingsRepository
	logger     *log.Logger
}

// NewStore constructs a store seeded with defaults. When a repository is
// given, previously persisted settings override the defaults; persisted
// values that fail validation are ignored.
func NewStore(ctx context.Context, defaults Settings, repo SettingsRepository, logger *log.Logger) (*Store, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("config store: nil logger")
	}
	store := &Store{repo: repo, logger: logger}
	current := defaults
	if repo != nil {
		persisted, err := repo.LoadSettings(ctx)
		if err != nil {
			logger.Printf("config: loading persisted settings failed, using defaults: %v", err)
		} else if persisted != nil {
			if err := persisted.Validate(); err != nil {
				logger.Printf("config: ignoring invalid persisted settings: %v", err)
			} else {
				current = *persisted
			}
		}
	}
	store.value.Store(current)
	store.generation.Store(1)
	return store, nil
}

// Current returns the active settings.
func (s *Store) Current() Settings {
	return s.value.Load().(Settings)
}

// Generation returns a counter incremented on every applied update.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Update validates and applies a whole settings document. On validation
// failure nothing changes and the previous values stay active. Persistence
// failure is logged but does not reject the update: the monitor keeps the new
// values for this process lifetime.
func (s *Store) Update(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		if err := s.repo.SaveSettings(ctx, settings); err != nil {
			s.logger.Printf("config: persisting settings failed: %v", err)
		}
	}
	s.value.Store(settings)
	s.generation.Add(1)
	return nil
}
