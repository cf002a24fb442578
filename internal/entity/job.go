package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
)

// Job is the durable record of one submitted document. It is created by the
// dispatcher in queued state, mutated only by the worker that claimed it,
// and read by the owning client. Status moves forward only:
// queued -> processing -> completed|failed. Result is non-nil iff completed.
type Job struct {
	ID           uuid.UUID            `json:"id"`
	UserID       string               `json:"userId"`
	Filename     string               `json:"filename"`
	FilePath     string               `json:"filePath"`
	Status       constants.JobStatus  `json:"status"`
	Result       *ExtractionResult    `json:"result,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	SubmittedAt  time.Time            `json:"submittedAt"`
	ProcessedAt  *time.Time           `json:"processedAt,omitempty"`
}

// JobDescriptor is the work-queue message between dispatcher and worker.
// It exists only on the wire.
type JobDescriptor struct {
	JobID            uuid.UUID `json:"jobId"`
	FilePath         string    `json:"filePath"`
	OriginalFilename string    `json:"originalFileName"`
	UserID           string    `json:"userId"`
}

// Notification is the notification-queue message between worker and relay,
// forwarded verbatim over the push connection.
type Notification struct {
	JobID    uuid.UUID           `json:"jobId"`
	UserID   string              `json:"userId"`
	Filename string              `json:"filename"`
	Status   constants.JobStatus `json:"status"`
	Message  string              `json:"message"`
}
