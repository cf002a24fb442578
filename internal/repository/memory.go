package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
)

// MemoryJobRepository is an in-process JobRepository used by tests and by
// components that need a store without a database at hand. It applies the
// same forward-only status rules as the pgx implementation.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (m *MemoryJobRepository) Create(_ context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryJobRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryJobRepository) ListByUser(_ context.Context, userID string) ([]*entity.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var jobs []*entity.Job
	for _, job := range m.jobs {
		if job.UserID == userID {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	return jobs, nil
}

func (m *MemoryJobRepository) MarkProcessing(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if job.Status == constants.JobStatusQueued {
		job.Status = constants.JobStatusProcessing
	}
	return nil
}

func (m *MemoryJobRepository) FinishSuccess(_ context.Context, id uuid.UUID, result *entity.ExtractionResult, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	job.Status = constants.JobStatusCompleted
	job.Result = result
	job.ErrorMessage = ""
	job.ProcessedAt = &processedAt
	return nil
}

func (m *MemoryJobRepository) FinishFailure(_ context.Context, id uuid.UUID, message string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	job.Status = constants.JobStatusFailed
	job.ErrorMessage = message
	job.ProcessedAt = &processedAt
	return nil
}
