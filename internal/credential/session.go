package credential

import (
	"context"
	"sync"
)

// MemorySession is the default in-process SessionCache.
type MemorySession struct {
	mu    sync.RWMutex
	token string
}

// NewMemorySession creates an empty session cache.
func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

// Token returns the cached token, "" when none is cached.
func (s *MemorySession) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetToken replaces the cached token.
func (s *MemorySession) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}
