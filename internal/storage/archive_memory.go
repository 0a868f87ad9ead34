package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryArchive keeps dumps in a map, for development and testing.
type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // repo -> key -> dump
}

// NewMemoryArchive constructs an in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string]map[string][]byte)}
}

func (m *MemoryArchive) Store(ctx context.Context, repo, key string, data []byte) error {
	if repo == "" || key == "" {
		return &ValidationError{Message: "repo and key are required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dumps, ok := m.data[repo]
	if !ok {
		dumps = make(map[string][]byte)
		m.data[repo] = dumps
	}
	dumps[key] = slices.Clone(data)
	return nil
}

func (m *MemoryArchive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[repo][key]
	if !ok {
		return nil, &NotFoundError{Resource: "dump", Key: repo + "/" + key}
	}
	return slices.Clone(payload), nil
}

func (m *MemoryArchive) Remove(ctx context.Context, repo, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[repo], key)
	return nil
}

func (m *MemoryArchive) List(ctx context.Context, repo string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data[repo]))
	for k := range m.data[repo] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryArchive) Close() error { return nil }
