// Package bus abstracts the at-least-once event transport. The production
// implementation is RabbitMQ; tests use the in-memory double in memory.go.
package bus

import (
	"context"
	"time"
)

// Outcome is a consumer's verdict on one delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Retry schedules a delayed redelivery with the attempt counter bumped.
	Retry
	// Term drops the message without success. The caller is expected to have
	// emitted its dead-letter event already.
	Term
)

// Delivery is one message handed to a handler. Attempt starts at 1 and is
// carried across redeliveries by the transport.
type Delivery struct {
	Subject string
	Body    []byte
	Attempt int
}

// Handler processes one delivery. It must not block past ctx.
type Handler func(ctx context.Context, d Delivery) Outcome

// SubscriptionConfig describes one durable, queue-grouped subscription.
// Replicas sharing the same Queue name compete for messages.
type SubscriptionConfig struct {
	Subject string
	// Queue is the durable consumer group name.
	Queue string
	// MaxDeliver bounds delivery attempts. The handler side converts the last
	// failed attempt into a dead-letter event; the transport additionally
	// refuses to redeliver past this bound.
	MaxDeliver int
	// RetryBase and RetryCap shape the exponential redelivery delay:
	// base * 2^(attempt-1), capped.
	RetryBase time.Duration
	RetryCap  time.Duration
	// AckWait bounds one handler invocation; the handler ctx is cancelled
	// when it elapses and the delivery is retried.
	AckWait time.Duration
	// Workers is the number of concurrent consumers on this queue.
	Workers int
}

// RetryDelay returns the backoff before redelivering attempt+1.
func (c SubscriptionConfig) RetryDelay(attempt int) time.Duration {
	delay := c.RetryBase
	if delay <= 0 {
		delay = 2 * time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.RetryCap > 0 && delay >= c.RetryCap {
			return c.RetryCap
		}
	}
	if c.RetryCap > 0 && delay > c.RetryCap {
		return c.RetryCap
	}
	return delay
}

// Bus is the transport the pipeline stages publish to and consume from.
type Bus interface {
	// Publish marshals v as JSON and sends it on subject.
	Publish(ctx context.Context, subject string, v any) error
	// Subscribe registers a handler and starts consuming. It returns once the
	// consumers are running; delivery happens on background goroutines.
	Subscribe(cfg SubscriptionConfig, h Handler) error
}
