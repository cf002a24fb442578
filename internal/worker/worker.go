package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/queue"
	"github.com/escolab/pi-pipeline/internal/repository"
)

// Extractor is what the worker needs from the extraction engine.
type Extractor interface {
	Extract(ctx context.Context, filePath, originalFilename string) (*entity.ExtractionResult, error)
}

// Worker drains the processing queue one message at a time. Every
// delivery is acknowledged exactly once, success or failure; a poisoned
// message must never cycle back into the queue.
type Worker struct {
	jobs              repository.JobRepository
	consumer          queue.Consumer
	publisher         queue.Publisher
	engine            Extractor
	workQueue         string
	notificationQueue string
	logger            *slog.Logger
}

func New(jobs repository.JobRepository, consumer queue.Consumer, publisher queue.Publisher, engine Extractor, workQueue, notificationQueue string, logger *slog.Logger) *Worker {
	return &Worker{
		jobs:              jobs,
		consumer:          consumer,
		publisher:         publisher,
		engine:            engine,
		workQueue:         workQueue,
		notificationQueue: notificationQueue,
		logger:            logger,
	}
}

// Run consumes until the context is cancelled or the delivery channel
// closes.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx, w.workQueue)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.workQueue, err)
	}
	w.logger.Info("worker.started", "queue", w.workQueue)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker.stopping", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if err := ctx.Err(); err != nil {
					w.logger.Info("worker.stopping", "reason", err)
					return err
				}
				w.logger.Error("worker.channel_closed", "queue", w.workQueue)
				return errors.New("delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle processes a single delivery end to end and acknowledges it
// regardless of the outcome.
func (w *Worker) Handle(ctx context.Context, d queue.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil {
			w.logger.Error("worker.ack.failed", "error", err)
		}
	}()

	var desc entity.JobDescriptor
	if err := json.Unmarshal(d.Body(), &desc); err != nil {
		w.logger.Error("worker.descriptor.malformed", "error", err)
		return
	}

	log := w.logger.With("job_id", desc.JobID, "filename", desc.OriginalFilename)

	job, err := w.jobs.GetByID(ctx, desc.JobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// descriptor outlived its record; nothing to update
			log.Warn("worker.job.missing")
			w.removeFile(desc.FilePath, log)
			return
		}
		log.Error("worker.job.load_failed", "error", err)
		return
	}
	if constants.IsTerminal(job.Status) {
		// redelivery of an already-settled job
		log.Warn("worker.job.already_settled", "status", job.Status)
		w.removeFile(desc.FilePath, log)
		return
	}

	if err := w.jobs.MarkProcessing(ctx, desc.JobID); err != nil {
		log.Error("worker.job.claim_failed", "error", err)
		return
	}

	start := time.Now()
	result, extractErr := w.engine.Extract(ctx, desc.FilePath, desc.OriginalFilename)
	now := time.Now().UTC()

	if extractErr != nil {
		log.Error("worker.extract.failed", "error", extractErr, "elapsed_ms", time.Since(start).Milliseconds())
		// the verbatim error text is what the record and the push
		// notification carry; categories alone are useless to debug
		msg := extractErr.Error()
		if err := w.jobs.FinishFailure(ctx, desc.JobID, msg, now); err != nil {
			log.Error("worker.job.finish_failed", "error", err)
		}
		w.notify(ctx, desc, constants.JobStatusFailed, msg, log)
	} else {
		log.Info("worker.extract.ok", "elapsed_ms", time.Since(start).Milliseconds())
		if err := w.jobs.FinishSuccess(ctx, desc.JobID, result, now); err != nil {
			log.Error("worker.job.finish_failed", "error", err)
		}
		w.notify(ctx, desc, constants.JobStatusCompleted, successMessage, log)
	}

	w.removeFile(desc.FilePath, log)
}

// notify publishes the outcome for the push relay. Best effort: a broken
// notification path never affects the job record.
func (w *Worker) notify(ctx context.Context, desc entity.JobDescriptor, status constants.JobStatus, message string, log *slog.Logger) {
	body, err := json.Marshal(entity.Notification{
		JobID:    desc.JobID,
		UserID:   desc.UserID,
		Filename: desc.OriginalFilename,
		Status:   status,
		Message:  message,
	})
	if err != nil {
		log.Error("worker.notify.encode_failed", "error", err)
		return
	}
	if err := w.publisher.Publish(ctx, w.notificationQueue, body); err != nil {
		log.Error("worker.notify.publish_failed", "error", err)
	}
}

func (w *Worker) removeFile(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("worker.file.remove_failed", "path", path, "error", err)
	}
}

// successMessage is pushed to the client when a job completes.
const successMessage = "File processed successfully."
