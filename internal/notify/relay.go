package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/queue"
)

// Relay drains the notification queue and forwards each message to the
// owning user's push connection. Every delivery is acknowledged whether or
// not the user is connected; notifications are transient.
type Relay struct {
	consumer queue.Consumer
	hub      *Hub
	queue    string
	logger   *slog.Logger
}

func NewRelay(consumer queue.Consumer, hub *Hub, queueName string, logger *slog.Logger) *Relay {
	return &Relay{consumer: consumer, hub: hub, queue: queueName, logger: logger}
}

func (r *Relay) Run(ctx context.Context) error {
	deliveries, err := r.consumer.Consume(ctx, r.queue)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.queue, err)
	}
	r.logger.Info("relay.started", "queue", r.queue)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay.stopping", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if err := ctx.Err(); err != nil {
					r.logger.Info("relay.stopping", "reason", err)
					return err
				}
				r.logger.Error("relay.channel_closed", "queue", r.queue)
				return errors.New("delivery channel closed")
			}
			r.Handle(d)
		}
	}
}

func (r *Relay) Handle(d queue.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil {
			r.logger.Error("relay.ack.failed", "error", err)
		}
	}()

	var n entity.Notification
	if err := json.Unmarshal(d.Body(), &n); err != nil {
		r.logger.Error("relay.notification.malformed", "error", err)
		return
	}
	r.hub.Send(n.UserID, n)
}
