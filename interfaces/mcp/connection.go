package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"contexthub-backend/domain/config"
)

// Transport identifies how a connection reaches the server
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// Connection is one live client connection. The outbound channel has a
// single consumer, the transport's write loop; events that arrive while
// the buffer is full are dropped rather than blocking the emitter.
type Connection struct {
	ID        string
	ClientID  string
	Transport Transport
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time

	outbound  chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection creates a connection with a buffered outbound channel
func NewConnection(clientID string, transport Transport) *Connection {
	now := time.Now().UTC()
	return &Connection{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		Transport:    transport,
		CreatedAt:    now,
		lastActivity: now,
		outbound:     make(chan Event, config.SendBufferSize),
		done:         make(chan struct{}),
	}
}

// Touch records message activity on the connection
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
}

// LastActivity returns the time of the most recent message exchange
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Send queues an event for delivery. Returns false when the buffer is
// full or the connection is closed; the event is dropped either way.
func (c *Connection) Send(event Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- event:
		c.Touch()
		return true
	default:
		return false
	}
}

// Outbound returns the delivery channel consumed by the write loop
func (c *Connection) Outbound() <-chan Event {
	return c.outbound
}

// Close marks the connection as finished. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed when the connection is finished
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ConnectionRegistry tracks live connections
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewConnectionRegistry creates an empty connection registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[string]*Connection)}
}

// Add registers a connection
func (r *ConnectionRegistry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID] = conn
}

// Remove unregisters a connection by ID
func (r *ConnectionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, id)
}

// Get returns a connection by ID, nil when unknown
func (r *ConnectionRegistry) Get(id string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connections[id]
}

// List returns all live connections
func (r *ConnectionRegistry) List() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of live connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CountByTransport returns the number of live connections per transport
func (r *ConnectionRegistry) CountByTransport(transport Transport) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conn := range r.connections {
		if conn.Transport == transport {
			n++
		}
	}
	return n
}
