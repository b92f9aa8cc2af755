package registry

import (
	"errors"
	"sync"
	"time"

	"pdf-conversion-service/internal/models"
)

var (
	// ErrDuplicateID is returned by Create when the id is already present.
	ErrDuplicateID = errors.New("registry: duplicate job id")
	// ErrNotFound is returned when no record exists for the id.
	ErrNotFound = errors.New("registry: job not found")
)

// Registry is the single source of truth for job state. It is safe for
// concurrent use by HTTP handlers, monitor tasks, and the cancellation
// coordinator; callers never see the underlying map, only value copies.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobRecord
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*models.JobRecord)}
}

// Create initializes a queued record for id.
func (r *Registry) Create(id string) (models.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; ok {
		return models.JobRecord{}, ErrDuplicateID
	}
	now := time.Now()
	rec := &models.JobRecord{
		ID:        id,
		Status:    models.StatusQueued,
		Progress:  0,
		Step:      models.StepInitialization,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = rec
	return *rec, nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (models.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.jobs[id]
	if !ok {
		return models.JobRecord{}, ErrNotFound
	}
	return *rec, nil
}

// Update merges the non-nil fields of upd into the record. Fields not
// mentioned keep their values. Records that have reached a terminal status
// are frozen: the update is silently dropped so a job never leaves
// completed/error/cancelled once there.
func (r *Registry) Update(id string, upd models.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return nil
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.Progress != nil {
		rec.Progress = *upd.Progress
	}
	if upd.Step != nil {
		rec.Step = *upd.Step
	}
	if upd.Message != nil {
		rec.Message = *upd.Message
	}
	if upd.Error != nil {
		rec.Error = upd.Error
	}
	if upd.CurrentPage != nil {
		rec.CurrentPage = *upd.CurrentPage
	}
	if upd.TotalPages != nil {
		rec.TotalPages = *upd.TotalPages
	}
	if upd.ETA != nil {
		rec.ETA = *upd.ETA
	}
	if upd.OutputRef != nil {
		rec.OutputRef = *upd.OutputRef
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// Delete removes the record. Deleting an absent id is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}
