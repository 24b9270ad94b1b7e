package preferences

import (
	"context"
	"sync"
)

// MemoryBackend keeps preferences in process memory
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]map[string]string)}
}

// Get returns the value stored for key
func (m *MemoryBackend) Get(ctx context.Context, owner, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[owner][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value for key
func (m *MemoryBackend) Set(ctx context.Context, owner, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[owner] == nil {
		m.values[owner] = make(map[string]string)
	}
	m.values[owner][key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryBackend) Delete(ctx context.Context, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[owner], key)
	if len(m.values[owner]) == 0 {
		delete(m.values, owner)
	}
	return nil
}

// ListOwner returns a copy of every value stored for owner
func (m *MemoryBackend) ListOwner(ctx context.Context, owner string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := make(map[string]string, len(m.values[owner]))
	for k, v := range m.values[owner] {
		values[k] = v
	}
	return values, nil
}

// DropOwner discards everything stored for owner
func (m *MemoryBackend) DropOwner(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, owner)
}
