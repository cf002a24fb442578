package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/repository"
)

type capturePublisher struct {
	queueName string
	body      []byte
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, queueName string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.queueName = queueName
	p.body = body
	return nil
}

func TestSubmit(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := &capturePublisher{}
	d := NewDispatcher(jobs, pub, "work", slog.Default())

	path := filepath.Join(t.TempDir(), "staged.docx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	id, err := d.Submit(ctx, Upload{UserID: "u1", Filename: "pi.docx", FilePath: path})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("Submit returned the nil id")
	}

	job, err := jobs.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("record missing after submit: %v", err)
	}
	if job.Status != constants.JobStatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.UserID != "u1" || job.Filename != "pi.docx" {
		t.Errorf("job = %+v", job)
	}

	if pub.queueName != "work" {
		t.Errorf("published to %q", pub.queueName)
	}
	var desc entity.JobDescriptor
	if err := json.Unmarshal(pub.body, &desc); err != nil {
		t.Fatalf("decode descriptor: %v", err)
	}
	if desc.JobID != id || desc.FilePath != path || desc.OriginalFilename != "pi.docx" || desc.UserID != "u1" {
		t.Errorf("descriptor = %+v", desc)
	}

	if _, err := os.Stat(path); err != nil {
		t.Error("staged file must survive a successful submit")
	}
}

type createFailRepository struct {
	repository.JobRepository
	err error
}

func (r *createFailRepository) Create(context.Context, *entity.Job) error {
	return r.err
}

func TestSubmitCreateFailureCleansUpStagedFile(t *testing.T) {
	jobs := &createFailRepository{
		JobRepository: repository.NewMemoryJobRepository(),
		err:           errors.New("connection refused"),
	}
	pub := &capturePublisher{}
	d := NewDispatcher(jobs, pub, "work", slog.Default())

	path := filepath.Join(t.TempDir(), "staged.docx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := d.Submit(context.Background(), Upload{UserID: "u1", Filename: "pi.docx", FilePath: path})
	if err == nil {
		t.Fatal("Submit succeeded with a broken record store")
	}
	if pub.body != nil {
		t.Error("descriptor published without a record")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file not cleaned up after record creation failure")
	}
}

func TestSubmitPublishFailure(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := &capturePublisher{err: errors.New("broker unreachable")}
	d := NewDispatcher(jobs, pub, "work", slog.Default())

	path := filepath.Join(t.TempDir(), "staged.docx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	_, err := d.Submit(ctx, Upload{UserID: "u1", Filename: "pi.docx", FilePath: path})
	if !errors.Is(err, common.ErrQueueUnavailable) {
		t.Fatalf("err = %v, want ErrQueueUnavailable", err)
	}

	all, err := jobs.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("found %d records, want the failed one", len(all))
	}
	if all[0].Status != constants.JobStatusFailed {
		t.Errorf("status = %s, want failed", all[0].Status)
	}
	if all[0].ErrorMessage == "" {
		t.Error("failure reason not recorded")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file not cleaned up after publish failure")
	}
}
