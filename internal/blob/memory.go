package blob

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store for tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FetchErr, when set, makes every Fetch fail with it.
	FetchErr error
	// PutErr, when set, makes every Put fail with it.
	PutErr error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Fetch(_ context.Context, handle string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	data, ok := m.objects[handle]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", handle)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Put(_ context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	handle := HandleFor(data)
	m.objects[handle] = append([]byte(nil), data...)
	return handle, nil
}

// Seed stores data under an explicit handle, the way the gateway would have
// uploaded it.
func (m *Memory) Seed(handle string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[handle] = append([]byte(nil), data...)
}
