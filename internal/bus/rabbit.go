package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const exchange = "pipeline"

// attemptHeader carries the delivery attempt across the retry queue hop.
const attemptHeader = "x-attempts"

// RabbitBus implements Bus on RabbitMQ. Delayed redelivery uses the retry
// queue pattern: each work queue gets a sibling "<queue>.retry" queue whose
// dead-letter route points back at the work queue, and retried messages are
// published there with a per-message TTL equal to the backoff delay.
type RabbitBus struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger *zap.Logger
}

func NewRabbitBus(url string, logger *zap.Logger) (*RabbitBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitBus{conn: conn, pubCh: ch, logger: logger}, nil
}

func (b *RabbitBus) Close() error {
	return b.conn.Close()
}

func (b *RabbitBus) Publish(ctx context.Context, subject string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	err = b.pubCh.Publish(
		exchange,
		subject, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *RabbitBus) Subscribe(cfg SubscriptionConfig, h Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := b.declareQueues(ch, cfg); err != nil {
		return err
	}

	// One in-flight message per worker goroutine.
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		cfg.Queue,
		"",    // consumer tag
		false, // auto-ack: decisions are explicit
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.Queue, err)
	}

	for i := 0; i < workers; i++ {
		go b.consumeLoop(ch, cfg, h, msgs)
	}
	return nil
}

func (b *RabbitBus) declareQueues(ch *amqp.Channel, cfg SubscriptionConfig) error {
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable (survives broker restarts)
		false, // auto-delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.Subject, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	// Expired retry messages dead-letter straight back into the work queue
	// through the default exchange.
	if _, err := ch.QueueDeclare(
		retryQueue(cfg.Queue),
		true, false, false, false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": cfg.Queue,
		},
	); err != nil {
		return fmt.Errorf("declare retry queue: %w", err)
	}
	return nil
}

func retryQueue(queue string) string { return queue + ".retry" }

func (b *RabbitBus) consumeLoop(ch *amqp.Channel, cfg SubscriptionConfig, h Handler, msgs <-chan amqp.Delivery) {
	log := b.logger.Named("bus").With(zap.String("queue", cfg.Queue))
	for msg := range msgs {
		attempt := attemptFrom(msg.Headers)

		ctx := context.Background()
		var cancel context.CancelFunc = func() {}
		if cfg.AckWait > 0 {
			ctx, cancel = context.WithTimeout(ctx, cfg.AckWait)
		}
		outcome := h(ctx, Delivery{Subject: cfg.Subject, Body: msg.Body, Attempt: attempt})
		cancel()

		switch outcome {
		case Retry:
			if attempt >= cfg.MaxDeliver {
				// Handlers dead-letter before this point; dropping here is the
				// transport's backstop against infinite redelivery.
				log.Warn("max deliveries reached, dropping message", zap.Int("attempt", attempt))
				msg.Ack(false)
				continue
			}
			if err := b.scheduleRetry(ch, cfg, msg.Body, attempt); err != nil {
				log.Error("scheduling retry failed, requeueing", zap.Error(err))
				msg.Nack(false, true)
				continue
			}
			msg.Ack(false)
		case Term, Ack:
			msg.Ack(false)
		}
	}
}

func (b *RabbitBus) scheduleRetry(ch *amqp.Channel, cfg SubscriptionConfig, body []byte, attempt int) error {
	delay := cfg.RetryDelay(attempt)
	return ch.Publish(
		"", // default exchange
		retryQueue(cfg.Queue),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
			Headers:      amqp.Table{attemptHeader: int32(attempt + 1)},
			Body:         body,
		},
	)
}

func attemptFrom(headers amqp.Table) int {
	switch v := headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}
