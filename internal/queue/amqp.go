package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/escolab/pi-pipeline/internal/common"
)

// Client wraps one AMQP connection and channel. Both queues are declared
// durable and messages are published persistent, so a broker restart does
// not lose queued work. Connectivity failures are retried here with a flat
// backoff, at dial time and again whenever the connection drops; jobs
// themselves are never retried.
type Client struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	cfg    common.QueueConfig
	logger *slog.Logger
}

// Dial connects to the broker, retrying with backoff until ctx expires.
func Dial(ctx context.Context, cfg common.QueueConfig, logger *slog.Logger) (*Client, error) {
	c := &Client{cfg: cfg, logger: logger}
	deadline := time.Now().Add(cfg.DialTimeout)
	var lastErr error
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if lastErr = c.connect(); lastErr == nil {
			logger.Info("connected to broker", "work_queue", cfg.WorkQueue, "notification_queue", cfg.NotificationQueue)
			return c, nil
		}
		if time.Now().After(deadline) {
			logger.Error("broker dial failed", "error", lastErr)
			return nil, fmt.Errorf("%w: %v", common.ErrQueueUnavailable, lastErr)
		}
		logger.Warn("broker dial failed, retrying", "error", lastErr, "backoff", cfg.RetryBackoff)
		select {
		case <-time.After(cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// connect establishes a fresh connection and channel, declares both queues
// on it and swaps it in. Safe to call again after the transport dropped.
func (c *Client) connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, name := range []string{c.cfg.WorkQueue, c.cfg.NotificationQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	c.mu.Lock()
	old := c.conn
	c.conn, c.ch = conn, ch
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// reconnect redials with flat backoff until it succeeds or ctx ends.
func (c *Client) reconnect(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.connect()
		if err == nil {
			c.logger.Info("broker connection re-established")
			return nil
		}
		c.logger.Warn("broker redial failed, retrying", "error", err, "backoff", c.cfg.RetryBackoff)
		select {
		case <-time.After(c.cfg.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) channel() *amqp.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// Publish sends a persistent message and returns after broker receipt. A
// failed publish gets one redial-and-retry before the error surfaces.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	err := c.publish(ctx, queue, body)
	if err == nil {
		return nil
	}
	c.logger.Warn("publish failed, redialing broker", "queue", queue, "error", err)
	if err := c.connect(); err != nil {
		c.logger.Error("broker redial failed", "queue", queue, "error", err)
		return fmt.Errorf("%w: publish to %s: %v", common.ErrQueueUnavailable, queue, err)
	}
	if err := c.publish(ctx, queue, body); err != nil {
		c.logger.Error("publish failed after redial", "queue", queue, "error", err)
		return fmt.Errorf("%w: publish to %s: %v", common.ErrQueueUnavailable, queue, err)
	}
	return nil
}

func (c *Client) publish(ctx context.Context, queue string, body []byte) error {
	return c.channel().PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume claims messages from queue with a prefetch of one, so this
// consumer never holds more than a single unacknowledged delivery. When
// the broker connection drops mid-stream the subscription is re-opened
// with backoff; the returned channel only closes when ctx ends.
func (c *Client) Consume(ctx context.Context, queue string) (<-chan Delivery, error) {
	msgs, err := c.subscribe(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("%w: consume %s: %v", common.ErrQueueUnavailable, queue, err)
	}

	out := make(chan Delivery)
	go forward(ctx, out, msgs, func(ctx context.Context) (<-chan amqp.Delivery, error) {
		return c.resubscribe(ctx, queue)
	}, c.logger)
	return out, nil
}

func (c *Client) subscribe(ctx context.Context, queue string) (<-chan amqp.Delivery, error) {
	ch := c.channel()
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
}

// resubscribe keeps redialing and re-opening the subscription until one
// sticks or ctx ends.
func (c *Client) resubscribe(ctx context.Context, queue string) (<-chan amqp.Delivery, error) {
	for {
		if err := c.reconnect(ctx); err != nil {
			return nil, err
		}
		msgs, err := c.subscribe(ctx, queue)
		if err == nil {
			return msgs, nil
		}
		c.logger.Warn("consume reopen failed, retrying", "queue", queue, "error", err)
		select {
		case <-time.After(c.cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type reopenFunc func(ctx context.Context) (<-chan amqp.Delivery, error)

// forward copies broker deliveries to out. When the broker channel closes
// while ctx is still alive it asks reopen for a replacement subscription
// and carries on; out closes only once ctx ends or reopen gives up.
func forward(ctx context.Context, out chan<- Delivery, msgs <-chan amqp.Delivery, reopen reopenFunc, logger *slog.Logger) {
	defer close(out)
	for {
		for msg := range msgs {
			select {
			case out <- amqpDelivery{msg: msg}:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("broker subscription lost, reconnecting")
		m, err := reopen(ctx)
		if err != nil {
			return
		}
		msgs = m
	}
}

// Close tears down channel and connection.
func (c *Client) Close() {
	c.mu.Lock()
	ch, conn := c.ch, c.conn
	c.ch, c.conn = nil, nil
	c.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			c.logger.Warn("channel close error", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Warn("connection close error", "error", err)
		}
	}
}

type amqpDelivery struct {
	msg amqp.Delivery
}

func (d amqpDelivery) Body() []byte { return d.msg.Body }

func (d amqpDelivery) Ack() error { return d.msg.Ack(false) }
