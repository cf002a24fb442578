package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/queue"
	"github.com/escolab/pi-pipeline/internal/repository"
)

// Upload describes a file already staged on disk by the HTTP layer.
type Upload struct {
	UserID   string
	Filename string
	FilePath string
}

// Dispatcher admits a staged upload into the pipeline: it creates the
// queued job record first, then publishes the work descriptor. The record
// exists before the descriptor so a consumer can never observe a message
// without its row.
type Dispatcher struct {
	jobs      repository.JobRepository
	publisher queue.Publisher
	workQueue string
	logger    *slog.Logger
}

func NewDispatcher(jobs repository.JobRepository, publisher queue.Publisher, workQueue string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{jobs: jobs, publisher: publisher, workQueue: workQueue, logger: logger}
}

func (d *Dispatcher) Submit(ctx context.Context, up Upload) (uuid.UUID, error) {
	job := &entity.Job{
		ID:          uuid.New(),
		UserID:      up.UserID,
		Filename:    up.Filename,
		FilePath:    up.FilePath,
		Status:      constants.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		// no record means no worker will ever touch the staged file
		d.removeStaged(job.ID, up.FilePath)
		return uuid.Nil, fmt.Errorf("create job record: %w", err)
	}

	body, err := json.Marshal(entity.JobDescriptor{
		JobID:            job.ID,
		FilePath:         up.FilePath,
		OriginalFilename: up.Filename,
		UserID:           up.UserID,
	})
	if err != nil {
		d.removeStaged(job.ID, up.FilePath)
		return uuid.Nil, fmt.Errorf("encode job descriptor: %w", err)
	}

	if err := d.publisher.Publish(ctx, d.workQueue, body); err != nil {
		// the queued row would otherwise wait forever; close it out and
		// drop the staged file so the client gets a definitive answer
		d.logger.Error("dispatch.publish.failed", "job_id", job.ID, "error", err)
		now := time.Now().UTC()
		if ferr := d.jobs.FinishFailure(ctx, job.ID, "processing queue unavailable", now); ferr != nil {
			d.logger.Error("dispatch.mark_failed.failed", "job_id", job.ID, "error", ferr)
		}
		d.removeStaged(job.ID, up.FilePath)
		return uuid.Nil, fmt.Errorf("publish job descriptor: %w", common.ErrQueueUnavailable)
	}

	d.logger.Info("dispatch.submitted", "job_id", job.ID, "user_id", up.UserID, "filename", up.Filename)
	return job.ID, nil
}

func (d *Dispatcher) removeStaged(jobID uuid.UUID, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("dispatch.cleanup.failed", "job_id", jobID, "path", path, "error", err)
	}
}
