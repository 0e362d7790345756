package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Bus for tests. Delivery is synchronous inside
// Publish; retries queue up and are released by DeliverRetries so a test
// controls interleaving. With Redeliver set, every message is delivered twice
// to every subscriber, which is what an at-least-once transport is allowed to
// do to you.
type Memory struct {
	mu        sync.Mutex
	subs      []*memorySub
	pending   []pendingRetry
	published map[string][][]byte
	// Redeliver makes every Publish deliver each message twice.
	Redeliver bool
}

type memorySub struct {
	cfg SubscriptionConfig
	h   Handler
}

type pendingRetry struct {
	sub     *memorySub
	body    []byte
	attempt int
}

func NewMemory() *Memory {
	return &Memory{published: make(map[string][][]byte)}
}

func (m *Memory) Subscribe(cfg SubscriptionConfig, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.cfg.Queue == cfg.Queue && s.cfg.Subject == cfg.Subject {
			return fmt.Errorf("queue %s already subscribed to %s", cfg.Queue, cfg.Subject)
		}
	}
	m.subs = append(m.subs, &memorySub{cfg: cfg, h: h})
	return nil
}

func (m *Memory) Publish(ctx context.Context, subject string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.published[subject] = append(m.published[subject], body)
	subs := make([]*memorySub, 0, len(m.subs))
	for _, s := range m.subs {
		if s.cfg.Subject == subject {
			subs = append(subs, s)
		}
	}
	redeliver := m.Redeliver
	m.mu.Unlock()

	for _, s := range subs {
		m.deliver(ctx, s, body, 1)
		if redeliver {
			m.deliver(ctx, s, body, 1)
		}
	}
	return nil
}

// deliver runs the handler once and queues a retry if asked for one.
func (m *Memory) deliver(ctx context.Context, s *memorySub, body []byte, attempt int) {
	outcome := s.h(ctx, Delivery{Subject: s.cfg.Subject, Body: body, Attempt: attempt})
	if outcome != Retry {
		return
	}
	if attempt >= s.cfg.MaxDeliver {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, pendingRetry{sub: s, body: body, attempt: attempt + 1})
	m.mu.Unlock()
}

// DeliverRetries releases one round of pending redeliveries and reports how
// many were delivered. Retries requested during the round wait for the next
// call.
func (m *Memory) DeliverRetries(ctx context.Context) int {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, p := range batch {
		m.deliver(ctx, p.sub, p.body, p.attempt)
	}
	return len(batch)
}

// PendingRetries reports how many redeliveries are queued.
func (m *Memory) PendingRetries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Published returns the raw payloads published on subject, in order.
func (m *Memory) Published(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.published[subject]))
	copy(out, m.published[subject])
	return out
}
