// Package mocks provides test doubles shared by the server packages.
package mocks

import (
	"sync"

	"github.com/teilomillet/mdconvert/config"
)

// MockConfigWatcher provides a testable implementation of config.Watcher
type MockConfigWatcher struct {
	mu            sync.RWMutex
	currentConfig *config.Config
	subscribers   []chan *config.Config
}

// Verify at compile time that MockConfigWatcher implements config.Watcher
var _ config.Watcher = (*MockConfigWatcher)(nil)

// NewMockConfigWatcher creates a new MockConfigWatcher initialized with the provided config
func NewMockConfigWatcher(cfg *config.Config) *MockConfigWatcher {
	return &MockConfigWatcher{currentConfig: cfg}
}

// GetCurrentConfig implements config.Watcher
func (m *MockConfigWatcher) GetCurrentConfig() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Subscribe implements config.Watcher
func (m *MockConfigWatcher) Subscribe() <-chan *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *config.Config, 1)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Close implements config.Watcher
func (m *MockConfigWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	return nil
}

// UpdateConfig is a test helper that simulates configuration changes.
// A pending update not yet read by a subscriber is replaced.
func (m *MockConfigWatcher) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentConfig = cfg
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}
