package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/queue"
)

type fakeConn struct {
	sent   []any
	err    error
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestHubSend(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := &fakeConn{}
	hub.Register("u1", conn)

	hub.Send("u1", "hello")
	if len(conn.sent) != 1 || conn.sent[0] != "hello" {
		t.Fatalf("sent = %v", conn.sent)
	}
}

func TestHubSendToAbsentUserIsSilent(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Send("nobody", "hello")
}

func TestHubNewConnectionDisplacesOld(t *testing.T) {
	hub := NewHub(slog.Default())
	old := &fakeConn{}
	hub.Register("u1", old)
	fresh := &fakeConn{}
	hub.Register("u1", fresh)

	if !old.closed {
		t.Error("displaced connection not closed")
	}

	hub.Send("u1", "hello")
	if len(fresh.sent) != 1 {
		t.Errorf("fresh conn got %d messages", len(fresh.sent))
	}
	if len(old.sent) != 0 {
		t.Errorf("old conn got %d messages", len(old.sent))
	}
}

func TestHubWriteFailureEvicts(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := &fakeConn{err: errors.New("broken pipe")}
	hub.Register("u1", conn)

	hub.Send("u1", "hello")
	if !conn.closed {
		t.Error("failing connection not closed")
	}

	// later sends should be no-ops, not retries against a dead conn
	conn.err = nil
	hub.Send("u1", "again")
	if len(conn.sent) != 0 {
		t.Errorf("evicted connection still received %d messages", len(conn.sent))
	}
}

func TestHubStaleUnregisterKeepsFreshConn(t *testing.T) {
	hub := NewHub(slog.Default())
	old := &fakeConn{}
	hub.Register("u1", old)
	fresh := &fakeConn{}
	hub.Register("u1", fresh)

	hub.Unregister("u1", old)
	hub.Send("u1", "hello")
	if len(fresh.sent) != 1 {
		t.Fatal("stale unregister evicted the fresh connection")
	}
}

type relayDelivery struct {
	body  []byte
	acked int
}

func (d *relayDelivery) Body() []byte { return d.body }
func (d *relayDelivery) Ack() error   { d.acked++; return nil }

func TestRelayForwardsToOwner(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := &fakeConn{}
	hub.Register("u1", conn)

	r := NewRelay(nil, hub, "notifications", slog.Default())

	n := entity.Notification{
		JobID:    uuid.New(),
		UserID:   "u1",
		Filename: "pi.docx",
		Status:   constants.JobStatusCompleted,
	}
	body, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	d := &relayDelivery{body: body}
	r.Handle(d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("forwarded %d messages, want 1", len(conn.sent))
	}
	got, ok := conn.sent[0].(entity.Notification)
	if !ok || got.JobID != n.JobID || got.Status != constants.JobStatusCompleted {
		t.Errorf("forwarded = %+v", conn.sent[0])
	}
}

func TestRelayDropsForDisconnectedUser(t *testing.T) {
	hub := NewHub(slog.Default())
	r := NewRelay(nil, hub, "notifications", slog.Default())

	body, err := json.Marshal(entity.Notification{JobID: uuid.New(), UserID: "offline"})
	if err != nil {
		t.Fatal(err)
	}
	d := &relayDelivery{body: body}
	r.Handle(d)

	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once even when nobody listens", d.acked)
	}
}

type stubConsumer struct {
	ch chan queue.Delivery
}

func (c *stubConsumer) Consume(context.Context, string) (<-chan queue.Delivery, error) {
	return c.ch, nil
}

func TestRelayRunFailsOnUnexpectedChannelClose(t *testing.T) {
	ch := make(chan queue.Delivery)
	close(ch)
	r := NewRelay(&stubConsumer{ch: ch}, NewHub(slog.Default()), "notifications", slog.Default())

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected an error when deliveries stop while the context is alive")
	}
}

func TestRelayAcksMalformedMessage(t *testing.T) {
	hub := NewHub(slog.Default())
	r := NewRelay(nil, hub, "notifications", slog.Default())

	d := &relayDelivery{body: []byte("{broken")}
	r.Handle(d)
	if d.acked != 1 {
		t.Fatalf("acked %d times, want exactly once", d.acked)
	}
}
