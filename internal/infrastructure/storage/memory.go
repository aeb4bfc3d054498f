package storage

import (
	"context"
	"sync"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Memory keeps documents in process memory. Used in development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://documents"
	}
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Put(_ context.Context, name string, data []byte, _ string) error {
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.objects[n] = cp
	m.puts++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, shared.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[name]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.objects, name)
	m.mu.Unlock()
	return nil
}

func (m *Memory) URL(name string) string {
	return joinURL(m.baseURL, name)
}

// Puts counts successful writes.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Len is the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Close() error { return nil }
