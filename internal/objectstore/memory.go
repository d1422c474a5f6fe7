package objectstore

import (
	"context"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory keeps objects in a map. Put returns mem:// URLs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	puts    int
}

// NewMemory returns an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

// Put stores a copy of data at objectPath.
func (m *Memory) Put(_ context.Context, objectPath string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectPath] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	m.puts++
	return "mem://" + objectPath, nil
}

// Get returns the object at objectPath.
func (m *Memory) Get(objectPath string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[objectPath]
	return o, ok
}

// Len reports how many distinct objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Puts reports how many writes have been made.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
