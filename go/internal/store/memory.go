package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps everything in process memory. Used by tests and single
// process development setups.
type MemoryBackend struct {
	mu      sync.RWMutex
	strings map[string]string
	hashes  map[string]map[string]string
	lists   map[string][]string
	closed  bool
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
	}
}

var _ Backend = (*MemoryBackend)(nil)

func (m *MemoryBackend) GetString(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *MemoryBackend) SetString(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.strings[key] = value
	return nil
}

func (m *MemoryBackend) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]string, len(m.hashes[key]))
	maps.Copy(out, m.hashes[key])
	return out, nil
}

func (m *MemoryBackend) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.hashes[key][field]
	return v, ok, nil
}

func (m *MemoryBackend) HashSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string, len(fields))
	}
	maps.Copy(m.hashes[key], fields)
	return nil
}

func (m *MemoryBackend) ListAppend(ctx context.Context, key, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.lists[key] = append(m.lists[key], value)
	return int64(len(m.lists[key])), nil
}

func (m *MemoryBackend) ListRange(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, len(m.lists[key]))
	copy(out, m.lists[key])
	return out, nil
}

func (m *MemoryBackend) ListIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	list := m.lists[key]
	if index < 0 || index >= int64(len(list)) {
		return "", false, nil
	}
	return list[index], true, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
