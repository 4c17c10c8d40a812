package archive

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory stores artifacts in-memory for development and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Save retains the content and returns a memory:// URI.
func (m *Memory) Save(_ context.Context, name, _ string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = content
	return "memory://" + name, nil
}

// Get returns a stored artifact.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.data[name]
	return content, ok
}
