package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/bus"
)

// stage mounts one handler on one durable subscription and maps its errors to
// bus outcomes: nil acks, transient errors retry until the budget is spent,
// permanent errors and the final failed attempt dead-letter.
type stage struct {
	name   string
	cfg    bus.SubscriptionConfig
	logger *zap.Logger

	handle func(ctx context.Context, body []byte) error
	// exhausted converts the last failure into the stage's terminal event and
	// store write. It runs exactly once per delivery chain (modulo the
	// at-least-once contract).
	exhausted func(ctx context.Context, body []byte, reason error, attempts int)
}

func (s *stage) subscribe(b bus.Bus) error {
	return b.Subscribe(s.cfg, s.onDelivery)
}

func (s *stage) onDelivery(ctx context.Context, d bus.Delivery) bus.Outcome {
	err := s.handle(ctx, d.Body)
	if err == nil {
		return bus.Ack
	}

	if IsPermanent(err) {
		s.logger.Warn("permanent failure, dead-lettering",
			zap.String("stage", s.name),
			zap.Int("attempt", d.Attempt),
			zap.Error(err))
		s.exhausted(ctx, d.Body, err, d.Attempt)
		return bus.Term
	}

	if d.Attempt >= s.cfg.MaxDeliver {
		s.logger.Warn("retry budget exhausted, dead-lettering",
			zap.String("stage", s.name),
			zap.Int("attempt", d.Attempt),
			zap.Error(err))
		s.exhausted(ctx, d.Body, err, d.Attempt)
		return bus.Term
	}

	s.logger.Info("transient failure, redelivering",
		zap.String("stage", s.name),
		zap.Int("attempt", d.Attempt),
		zap.Duration("delay", s.cfg.RetryDelay(d.Attempt)),
		zap.Error(err))
	return bus.Retry
}
