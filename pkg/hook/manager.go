// Package hook provides named lifecycle callbacks for a configuration session.
// Hooks run synchronously, in registration order, on the goroutine that
// triggers the event.
package hook

import (
	"context"
	"sync"
)

// Session lifecycle events.
const (
	// EventConfigured fires after a batch of rule declarations was registered.
	EventConfigured = "configured"
	// EventFrozen fires once, when the session stops accepting registrations.
	EventFrozen = "frozen"
)

// HookFunc represents a function that can be triggered by a hook event.
type HookFunc func(ctx context.Context)

// Manager stores and manages hooks for different named events.
type Manager struct {
	mu        sync.RWMutex
	hooks     map[string][]HookFunc
	triggered map[string]int
}

// NewManager creates and returns a new hook manager.
func NewManager() *Manager {
	return &Manager{
		hooks:     make(map[string][]HookFunc),
		triggered: make(map[string]int),
	}
}

// Register adds a hook function to a named event.
func (m *Manager) Register(event string, fn HookFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[event] = append(m.hooks[event], fn)
}

// Trigger calls every hook registered for event and returns when the last
// one has returned. Hooks registered while the event is running are not
// called for this trigger.
func (m *Manager) Trigger(ctx context.Context, event string) {
	m.mu.Lock()
	m.triggered[event]++
	fns := append([]HookFunc(nil), m.hooks[event]...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// IsTriggered checks if a specific event has been triggered.
func (m *Manager) IsTriggered(event string) bool {
	return m.Count(event) > 0
}

// Count returns how many times event has been triggered.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggered[event]
}
