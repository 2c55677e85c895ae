package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store, used in tests and for throwaway sessions.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
	ready bool
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Initialize(context.Context) error {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *Memory) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, false, notReady(BackendMemory)
	}
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) SetItem(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return notReady(BackendMemory)
	}
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	return nil
}
