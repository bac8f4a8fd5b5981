package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager manages multiple storage clients and provides centralized
// health checking and lifecycle management. It is safe for concurrent use.
//
//	mgr := storage.NewManager()
//	mgr.Register("database", dbClient)
//	statuses := mgr.HealthCheckAll(ctx)
//	defer mgr.CloseAll()
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
	order   []string
}

// NewManager creates a new storage manager instance.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]Client)}
}

// Register registers a storage client with the given name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" || client == nil {
		return fmt.Errorf("storage: name and client are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[name]; ok {
		return fmt.Errorf("storage: client %q already registered", name)
	}
	m.clients[name] = client
	m.order = append(m.order, name)
	return nil
}

// HealthCheckAll pings all registered clients concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) []HealthStatus {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	clients := make([]Client, len(names))
	for i, n := range names {
		clients[i] = m.clients[n]
	}
	m.mu.RUnlock()

	statuses := make([]HealthStatus, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			err := clients[i].Ping(ctx)
			statuses[i] = HealthStatus{Name: names[i], Healthy: err == nil, Latency: time.Since(start)}
			if err != nil {
				statuses[i].Error = err.Error()
			}
		}(i)
	}
	wg.Wait()
	sort.SliceStable(statuses, func(a, b int) bool { return statuses[a].Name < statuses[b].Name })
	return statuses
}

// CloseAll closes all registered clients in reverse registration order and
// returns the first error encountered.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close client '%s': %w", name, err)
		}
		delete(m.clients, name)
	}
	m.order = nil
	return firstErr
}
