package eventlog

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory event log for tests and for degraded
// operation when the database is unavailable.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
	cap     int
}

// NewMemoryRepository constructs a repository. cap bounds retained entries;
// zero means the default of 10000.
func NewMemoryRepository(cap int) *MemoryRepository {
	if cap <= 0 {
		cap = 10000
	}
	return &MemoryRepository{nextID: 1, cap: cap}
}

// Append stores one entry.
func (r *MemoryRepository) Append(_ context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, *entry)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.entries[i])
	}
	return result, nil
}

// RecoveriesSince returns camera_up entries after since, oldest first.
func (r *MemoryRepository) RecoveriesSince(_ context.Context, since time.Time) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Entry
	for _, entry := range r.entries {
		if entry.AlertType != TypeCameraUp || entry.DurationSeconds == nil {
			continue
		}
		if !entry.Timestamp.After(since) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

// Len returns the number of retained entries.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
