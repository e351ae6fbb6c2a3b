package mcp

import (
	"sync"

	"go.uber.org/zap"

	"contexthub-backend/pkg/utils"
)

// Event is a broadcast payload delivered to subscribed handlers. A
// non-empty ConnectionID targets the event at that connection's
// handlers only; otherwise it fans out to everyone.
type Event struct {
	Type         string                 `json:"type"`
	Timestamp    string                 `json:"timestamp"`
	ConnectionID string                 `json:"connection_id,omitempty"`
	Data         map[string]interface{} `json:"data"`
}

// EventHandler receives broadcast events. Handlers run synchronously
// on the emitting goroutine; a panicking handler is recovered and
// never stops delivery to the others.
type EventHandler func(event Event)

type subscription struct {
	id           int
	connectionID string
	handler      EventHandler
}

// Bus fans events out to handlers subscribed by event type. The
// wildcard type "*" receives every event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]*subscription
	logger *zap.Logger
}

// NewBus creates an empty event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for an event type and returns the
// subscription ID used to unsubscribe. The connectionID associates
// the handler with a connection so connection teardown can remove all
// of its handlers at once; it may be empty for server-side handlers.
func (b *Bus) Subscribe(eventType, connectionID string, handler EventHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscription{
		id:           b.nextID,
		connectionID: connectionID,
		handler:      handler,
	}
	b.subs[eventType] = append(b.subs[eventType], sub)
	return sub.id
}

// Unsubscribe removes one handler by subscription ID
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subs {
		for i, sub := range subs {
			if sub.id == id {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// UnsubscribeConnection removes every handler registered for a
// connection
func (b *Bus) UnsubscribeConnection(connectionID string) {
	if connectionID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subs {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.connectionID != connectionID {
				kept = append(kept, sub)
			}
		}
		b.subs[eventType] = kept
	}
}

// Emit delivers the event to every handler subscribed to its type or
// to the wildcard. An event carrying a ConnectionID is delivered only
// to that connection's handlers. Each handler is isolated: a panic is
// recovered and logged, and remaining handlers still run.
func (b *Bus) Emit(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = utils.NowRFC3339()
	}

	b.mu.RLock()
	handlers := make([]*subscription, 0, len(b.subs[event.Type])+len(b.subs["*"]))
	handlers = append(handlers, b.subs[event.Type]...)
	handlers = append(handlers, b.subs["*"]...)
	b.mu.RUnlock()

	for _, sub := range handlers {
		if event.ConnectionID != "" && sub.connectionID != event.ConnectionID {
			continue
		}
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("eventType", event.Type),
				zap.String("connectionID", sub.connectionID),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(event)
}

// SubscriberCount returns the number of handlers for an event type
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
