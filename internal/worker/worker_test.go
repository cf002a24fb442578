package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/queue"
	"github.com/escolab/pi-pipeline/internal/repository"
)

type fakeDelivery struct {
	body  []byte
	acked int
}

func (d *fakeDelivery) Body() []byte { return d.body }
func (d *fakeDelivery) Ack() error   { d.acked++; return nil }

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][][]byte)}
}

func (p *fakePublisher) Publish(_ context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages[queueName] = append(p.messages[queueName], body)
	return nil
}

func (p *fakePublisher) published(queueName string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[queueName]
}

type stubEngine struct {
	res *entity.ExtractionResult
	err error
}

func (e *stubEngine) Extract(context.Context, string, string) (*entity.ExtractionResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.res, nil
}

func descriptorBody(t *testing.T, desc entity.JobDescriptor) []byte {
	t.Helper()
	b, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	return b
}

func stageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), uuid.NewString()+".docx")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}
	return path
}

const notifQueue = "notifications"

func newWorker(jobs repository.JobRepository, pub *fakePublisher, engine Extractor) *Worker {
	return New(jobs, nil, pub, engine, "work", notifQueue, slog.Default())
}

func TestHandleSuccess(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	curs := "3r ESO"
	w := newWorker(jobs, pub, &stubEngine{res: &entity.ExtractionResult{
		DadesAlumne:         entity.StudentDetails{Curs: &curs},
		AdaptacionsGenerals: []string{},
		Orientacions:        []string{},
	}})

	ctx := context.Background()
	path := stageFile(t)
	job := &entity.Job{ID: uuid.New(), UserID: "u1", Filename: "pi.docx", FilePath: path,
		Status: constants.JobStatusQueued, SubmittedAt: time.Now()}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	d := &fakeDelivery{body: descriptorBody(t, entity.JobDescriptor{
		JobID: job.ID, FilePath: path, OriginalFilename: "pi.docx", UserID: "u1",
	})}
	w.Handle(ctx, d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}

	got, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.Result == nil || got.Result.DadesAlumne.Curs == nil || *got.Result.DadesAlumne.Curs != "3r ESO" {
		t.Errorf("result = %+v", got.Result)
	}
	if got.ProcessedAt == nil {
		t.Error("processedAt not set")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file not removed")
	}

	msgs := pub.published(notifQueue)
	if len(msgs) != 1 {
		t.Fatalf("published %d notifications, want 1", len(msgs))
	}
	var n entity.Notification
	if err := json.Unmarshal(msgs[0], &n); err != nil {
		t.Fatal(err)
	}
	if n.Status != constants.JobStatusCompleted || n.UserID != "u1" || n.JobID != job.ID {
		t.Errorf("notification = %+v", n)
	}
	if n.Message != "File processed successfully." {
		t.Errorf("message = %q, want %q", n.Message, "File processed successfully.")
	}
}

func TestHandleExtractionFailure(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	extractErr := fmt.Errorf("%w: ollama status 500: model llama3.2:3b not loaded", common.ErrAIService)
	w := newWorker(jobs, pub, &stubEngine{err: extractErr})

	ctx := context.Background()
	path := stageFile(t)
	job := &entity.Job{ID: uuid.New(), UserID: "u1", Filename: "pi.docx", FilePath: path,
		Status: constants.JobStatusQueued, SubmittedAt: time.Now()}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	d := &fakeDelivery{body: descriptorBody(t, entity.JobDescriptor{
		JobID: job.ID, FilePath: path, OriginalFilename: "pi.docx", UserID: "u1",
	})}
	w.Handle(ctx, d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}

	got, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if got.ErrorMessage != extractErr.Error() {
		t.Errorf("error message = %q, want the extraction error verbatim %q", got.ErrorMessage, extractErr.Error())
	}
	if !strings.Contains(got.ErrorMessage, "model llama3.2:3b not loaded") {
		t.Errorf("error message %q lost the cause detail", got.ErrorMessage)
	}
	if got.Result != nil {
		t.Error("failed job must not carry a result")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file not removed after failure")
	}

	var n entity.Notification
	msgs := pub.published(notifQueue)
	if len(msgs) != 1 {
		t.Fatalf("published %d notifications, want 1", len(msgs))
	}
	if err := json.Unmarshal(msgs[0], &n); err != nil {
		t.Fatal(err)
	}
	if n.Status != constants.JobStatusFailed {
		t.Errorf("notification = %+v", n)
	}
	if n.Message != extractErr.Error() {
		t.Errorf("notification message = %q, want %q", n.Message, extractErr.Error())
	}
}

func TestHandleMissingRecord(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	w := newWorker(jobs, pub, &stubEngine{})

	path := stageFile(t)
	d := &fakeDelivery{body: descriptorBody(t, entity.JobDescriptor{
		JobID: uuid.New(), FilePath: path, OriginalFilename: "pi.docx", UserID: "u1",
	})}
	w.Handle(context.Background(), d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
	if len(pub.published(notifQueue)) != 0 {
		t.Error("notification published for a missing record")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("orphaned staged file not removed")
	}
}

func TestHandleRedeliveredTerminalJob(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	engine := &stubEngine{res: entity.NewExtractionResult()}
	w := newWorker(jobs, pub, engine)

	ctx := context.Background()
	job := &entity.Job{ID: uuid.New(), UserID: "u1", Filename: "pi.docx", FilePath: "gone",
		Status: constants.JobStatusQueued, SubmittedAt: time.Now()}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := jobs.FinishSuccess(ctx, job.ID, entity.NewExtractionResult(), now); err != nil {
		t.Fatal(err)
	}

	d := &fakeDelivery{body: descriptorBody(t, entity.JobDescriptor{
		JobID: job.ID, FilePath: "", OriginalFilename: "pi.docx", UserID: "u1",
	})}
	w.Handle(ctx, d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
	got, _ := jobs.GetByID(ctx, job.ID)
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("terminal status mutated to %s", got.Status)
	}
	if len(pub.published(notifQueue)) != 0 {
		t.Error("redelivery produced a duplicate notification")
	}
}

func TestHandleMalformedDescriptor(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	w := newWorker(jobs, pub, &stubEngine{})

	d := &fakeDelivery{body: []byte("{not json")}
	w.Handle(context.Background(), d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
}

func TestHandleNotificationPublishFailureDoesNotAffectRecord(t *testing.T) {
	jobs := repository.NewMemoryJobRepository()
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	w := newWorker(jobs, pub, &stubEngine{res: entity.NewExtractionResult()})

	ctx := context.Background()
	path := stageFile(t)
	job := &entity.Job{ID: uuid.New(), UserID: "u1", Filename: "pi.docx", FilePath: path,
		Status: constants.JobStatusQueued, SubmittedAt: time.Now()}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	d := &fakeDelivery{body: descriptorBody(t, entity.JobDescriptor{
		JobID: job.ID, FilePath: path, OriginalFilename: "pi.docx", UserID: "u1",
	})}
	w.Handle(ctx, d)

	got, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed despite notification failure", got.Status)
	}
	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
}

type stubConsumer struct {
	ch chan queue.Delivery
}

func (c *stubConsumer) Consume(context.Context, string) (<-chan queue.Delivery, error) {
	return c.ch, nil
}

func TestRunFailsOnUnexpectedChannelClose(t *testing.T) {
	ch := make(chan queue.Delivery)
	close(ch)
	w := New(repository.NewMemoryJobRepository(), &stubConsumer{ch: ch}, newFakePublisher(), &stubEngine{}, "work", notifQueue, slog.Default())

	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected an error when deliveries stop while the context is alive")
	}
}

var _ queue.Delivery = (*fakeDelivery)(nil)
var _ queue.Publisher = (*fakePublisher)(nil)
