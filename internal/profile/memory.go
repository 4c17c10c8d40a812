package profile

import (
	"context"
	"sync"
)

// Memory is an in-memory Store for development and tests.
type Memory struct {
	mu          sync.RWMutex
	token       string
	personalKey string
	pooledKey   string
	entitlement Entitlement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// SetToken records the provider token.
func (m *Memory) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetCaptchaKeys records the personal and pooled solver keys.
func (m *Memory) SetCaptchaKeys(personal, pooled string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personalKey = personal
	m.pooledKey = pooled
}

// SetEntitlement records the entitlement state.
func (m *Memory) SetEntitlement(ent Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entitlement = ent
}

// FetchToken returns the recorded token or ErrNotFound.
func (m *Memory) FetchToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

// PersonalCaptchaKey returns the recorded personal key, possibly "".
func (m *Memory) PersonalCaptchaKey(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.personalKey, nil
}

// PooledCaptchaKey returns the recorded pooled key or ErrNotFound.
func (m *Memory) PooledCaptchaKey(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pooledKey == "" {
		return "", ErrNotFound
	}
	return m.pooledKey, nil
}

// FetchEntitlement returns the recorded entitlement state.
func (m *Memory) FetchEntitlement(context.Context) (Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entitlement, nil
}
