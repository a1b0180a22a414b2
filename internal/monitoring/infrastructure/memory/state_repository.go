package memory

import (
	"context"
	"errors"
	"sync"

	monitoring "camwatch/internal/monitoring/domain"
)

// CameraStateRepository is an in-memory state store used in tests and when
// no database is configured.
type CameraStateRepository struct {
	mu      sync.RWMutex
	cameras map[string]monitoring.Camera
}

// NewCameraStateRepository constructs an empty repository.
func NewCameraStateRepository() *CameraStateRepository {
	return &CameraStateRepository{cameras: make(map[string]monitoring.Camera)}
}

// LoadAll returns copies of every stored camera state.
func (r *CameraStateRepository) LoadAll(_ context.Context) ([]monitoring.Camera, error) {
	if r == nil {
		return nil, errors.New("camera state repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := make([]monitoring.Camera, 0, len(r.cameras))
	for _, camera := range r.cameras {
		cameras = append(cameras, camera)
	}
	return cameras, nil
}

// Upsert stores one camera state.
func (r *CameraStateRepository) Upsert(_ context.Context, camera *monitoring.Camera) error {
	if r == nil {
		return errors.New("camera state repo: nil repository")
	}
	if camera == nil {
		return errors.New("camera state repo: nil camera")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras[camera.Key()] = *camera
	return nil
}

// Get returns one stored camera state by key.
func (r *CameraStateRepository) Get(key string) (monitoring.Camera, bool) {
	if r == nil {
		return monitoring.Camera{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	camera, ok := r.cameras[key]
	return camera, ok
}
