package queue

import "context"

// Publisher publishes a persisted message to a named durable queue. The
// broker's receipt acknowledgment is the only confirmation a caller waits
// for; downstream delivery is never awaited.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Delivery is one claimed message. Ack must be called exactly once; until
// then the broker holds the claim and will not hand the message to another
// consumer.
type Delivery interface {
	Body() []byte
	Ack() error
}

// Consumer yields deliveries from a named durable queue, at most one
// unacknowledged delivery in flight per consumer. The channel closes when
// the underlying transport goes away or ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)
}
