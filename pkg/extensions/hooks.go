package extensions

import (
	"context"
	"fmt"
	"sync"
)

// HookPoint represents a point in the application where hooks can be registered.
// Bridge and integration services use these to extend the server at startup,
// most importantly HookServerStartup for registering additional tools.
type HookPoint string

const (
	// Server lifecycle hooks
	HookServerStartup  HookPoint = "server_startup"
	HookServerShutdown HookPoint = "server_shutdown"

	// Tool invocation hooks
	HookBeforeToolInvoke HookPoint = "before_tool_invoke"
	HookAfterToolInvoke  HookPoint = "after_tool_invoke"
	HookToolFailed       HookPoint = "tool_failed"

	// Connection lifecycle hooks
	HookConnectionOpened HookPoint = "connection_opened"
	HookConnectionClosed HookPoint = "connection_closed"

	// Context entry lifecycle hooks
	HookBeforeEntryStore HookPoint = "before_entry_store"
	HookAfterEntryStore  HookPoint = "after_entry_store"
)

// Hook represents a function that can be executed at a hook point
type Hook func(ctx context.Context, data interface{}) error

// HookManager manages hooks for extension points
type HookManager struct {
	hooks map[HookPoint][]Hook
	mu    sync.RWMutex
}

// NewHookManager creates a new hook manager
func NewHookManager() *HookManager {
	return &HookManager{
		hooks: make(map[HookPoint][]Hook),
	}
}

// Register registers a hook for a specific hook point
func (m *HookManager) Register(point HookPoint, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks[point] = append(m.hooks[point], hook)
}

// Execute executes all hooks for a specific hook point
func (m *HookManager) Execute(ctx context.Context, point HookPoint, data interface{}) error {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for i, hook := range hooks {
		if err := hook(ctx, data); err != nil {
			return fmt.Errorf("hook %d at %s failed: %w", i, point, err)
		}
	}

	return nil
}

// ExecuteAsync executes hooks asynchronously, ignoring errors
func (m *HookManager) ExecuteAsync(ctx context.Context, point HookPoint, data interface{}) {
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	for _, hook := range hooks {
		go func(h Hook) {
			_ = h(ctx, data)
		}(hook)
	}
}

// Clear removes all hooks for a specific hook point
func (m *HookManager) Clear(point HookPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hooks, point)
}

// ClearAll removes all registered hooks
func (m *HookManager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[HookPoint][]Hook)
}
