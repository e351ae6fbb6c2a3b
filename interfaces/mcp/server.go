package mcp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"contexthub-backend/application/ports"
	"contexthub-backend/application/services"
	"contexthub-backend/domain/events"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/extensions"
	"contexthub-backend/pkg/observability"
	"contexthub-backend/pkg/ratelimit"
	"contexthub-backend/pkg/utils"
)

// Server is the MCP protocol server. It owns the tool and resource
// registries, tracks live connections, and broadcasts events to them.
type Server struct {
	tools       *ToolRegistry
	resources   *ResourceRegistry
	connections *ConnectionRegistry
	bus         *Bus
	store       *services.ContextStore
	hooks       *extensions.HookManager
	limiter     ratelimit.Limiter
	metrics     *observability.Metrics
	publisher   ports.EventPublisher
	logger      *zap.Logger

	heartbeatInterval time.Duration
}

// ServerOption configures the server
type ServerOption func(*Server)

// WithRateLimiter sets the per-connection invocation limiter
func WithRateLimiter(limiter ratelimit.Limiter) ServerOption {
	return func(s *Server) { s.limiter = limiter }
}

// WithHeartbeatInterval overrides the transport heartbeat period
func WithHeartbeatInterval(interval time.Duration) ServerOption {
	return func(s *Server) { s.heartbeatInterval = interval }
}

// WithMetrics enables CloudWatch metric emission
func WithMetrics(metrics *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = metrics }
}

// WithEventPublisher forwards protocol domain events to an external
// publisher in addition to the connection bus
func WithEventPublisher(publisher ports.EventPublisher) ServerOption {
	return func(s *Server) { s.publisher = publisher }
}

// NewServer creates an MCP server wired to the context store. Builtin
// tools are registered immediately; extension tools arrive through the
// server startup hook.
func NewServer(store *services.ContextStore, bus *Bus, hooks *extensions.HookManager, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		tools:             NewToolRegistry(),
		resources:         NewResourceRegistry(),
		connections:       NewConnectionRegistry(),
		bus:               bus,
		store:             store,
		hooks:             hooks,
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerBuiltinTools()
	return s
}

// Start runs the server startup hook so bridge services can register
// their tools before any client connects
func (s *Server) Start(ctx context.Context) error {
	if s.hooks != nil {
		if err := s.hooks.Execute(ctx, extensions.HookServerStartup, s); err != nil {
			return err
		}
	}
	s.logger.Info("MCP server started", zap.Int("tools", len(s.tools.List())))
	return nil
}

// RegisterTool adds a tool to the registry
func (s *Server) RegisterTool(tool *Tool) error {
	return s.tools.Register(tool)
}

// ListTools returns the registered tools
func (s *Server) ListTools() []*Tool {
	return s.tools.List()
}

// InvokeTool executes a tool request. Unknown tools and missing
// required parameters are rejected before the handler runs; handler
// errors are folded into an error response rather than propagated.
func (s *Server) InvokeTool(ctx context.Context, req *ToolRequest) *ToolResponse {
	start := time.Now()

	tool := s.tools.Get(req.Tool)
	if tool == nil {
		return s.finishInvoke(ctx, req, start, errorResponse(
			pkgerrors.NewNotFoundError("tool "+req.Tool)))
	}

	for _, param := range tool.RequiredParameters {
		if _, ok := req.Parameters[param]; !ok {
			return s.finishInvoke(ctx, req, start, errorResponse(
				pkgerrors.NewInvalidArgumentError("missing required parameter: "+param)))
		}
	}

	if req.ContextID != "" {
		resource := s.resources.Get(req.ContextID)
		if resource == nil {
			return s.finishInvoke(ctx, req, start, errorResponse(
				pkgerrors.NewNotFoundError("context "+req.ContextID)))
		}
		if resource.Type != ResourceTypeContext {
			return s.finishInvoke(ctx, req, start, errorResponse(
				pkgerrors.NewInvalidArgumentError("resource "+req.ContextID+" is not a context")))
		}
		req.Context = resource
	}

	if s.limiter != nil && req.ConnectionID != "" {
		allowed, err := s.limiter.Allow(ctx, req.ConnectionID)
		if err != nil {
			s.logger.Warn("Rate limiter failure", zap.Error(err))
		}
		if err == nil && !allowed {
			return s.finishInvoke(ctx, req, start, errorResponse(&pkgerrors.AppError{
				Type:       pkgerrors.ErrorTypeRateLimit,
				Message:    "rate limit exceeded for connection " + req.ConnectionID,
				HTTPStatus: http.StatusTooManyRequests,
			}))
		}
	}

	if s.hooks != nil {
		if err := s.hooks.Execute(ctx, extensions.HookBeforeToolInvoke, req); err != nil {
			return s.finishInvoke(ctx, req, start, errorResponse(err))
		}
	}

	result, err := s.runHandler(ctx, tool, req)
	if err != nil {
		if s.hooks != nil {
			s.hooks.ExecuteAsync(ctx, extensions.HookToolFailed, req)
		}
		s.logger.Warn("Tool invocation failed",
			zap.String("tool", req.Tool),
			zap.String("connectionID", req.ConnectionID),
			zap.Error(err),
		)
		return s.finishInvoke(ctx, req, start, errorResponse(err))
	}

	if s.hooks != nil {
		s.hooks.ExecuteAsync(ctx, extensions.HookAfterToolInvoke, req)
	}
	return s.finishInvoke(ctx, req, start, &ToolResponse{
		Status: StatusSuccess,
		Result: result,
	})
}

// runHandler isolates handler panics so one misbehaving tool cannot
// take down the connection loop
func (s *Server) runHandler(ctx context.Context, tool *Tool, req *ToolRequest) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Tool handler panicked",
				zap.String("tool", tool.Name),
				zap.Any("panic", r),
			)
			err = pkgerrors.NewToolExecutionError(tool.Name, pkgerrors.NewInternalError("tool handler panicked"))
		}
	}()
	return tool.Handler(ctx, req)
}

func (s *Server) finishInvoke(ctx context.Context, req *ToolRequest, start time.Time, resp *ToolResponse) *ToolResponse {
	resp.ToolName = req.Tool
	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordToolInvocation(ctx, req.Tool, duration, resp.Status)
	}
	s.bus.Emit(Event{
		Type: "tool_executed",
		Data: map[string]interface{}{
			"tool":        req.Tool,
			"status":      resp.Status,
			"duration_ms": strconv.FormatInt(duration.Milliseconds(), 10),
		},
	})
	s.publishDomain(ctx, events.NewToolExecuted(
		req.Tool, req.ConnectionID, resp.Status, duration.Milliseconds(), time.Now().UTC()))
	return resp
}

// publishDomain forwards a protocol event on a best-effort basis
func (s *Server) publishDomain(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish protocol event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// CreateResource registers a resource and announces it on the bus
func (s *Server) CreateResource(resource *Resource) error {
	if err := s.resources.Register(resource); err != nil {
		return err
	}
	s.bus.Emit(Event{
		Type: "resource_created",
		Data: map[string]interface{}{
			"uri":  resource.URI,
			"name": resource.Name,
			"type": resource.Type,
		},
	})
	s.publishDomain(context.Background(), events.NewResourceCreated(resource.URI, resource.Type, "", time.Now().UTC()))
	return nil
}

// GetResource returns a resource by URI, NotFound error when unknown
func (s *Server) GetResource(uri string) (*Resource, error) {
	resource := s.resources.Get(uri)
	if resource == nil {
		return nil, pkgerrors.NewNotFoundError("resource " + uri)
	}
	return resource, nil
}

// ListResources returns all registered resources
func (s *Server) ListResources() []*Resource {
	return s.resources.List()
}

// Connect registers a new connection and subscribes it to the event
// stream. Events emitted on the bus are queued on the connection's
// outbound channel for its transport loop to deliver.
func (s *Server) Connect(ctx context.Context, clientID string, transport Transport) *Connection {
	conn := NewConnection(clientID, transport)
	s.connections.Add(conn)

	s.bus.Subscribe("*", conn.ID, func(event Event) {
		if !conn.Send(event) {
			s.logger.Debug("Dropped event for slow connection",
				zap.String("connectionID", conn.ID),
				zap.String("eventType", event.Type),
			)
		}
	})

	if s.hooks != nil {
		s.hooks.ExecuteAsync(ctx, extensions.HookConnectionOpened, conn)
	}
	if s.metrics != nil {
		s.metrics.RecordConnectionCount(ctx, string(transport), s.connections.CountByTransport(transport))
	}
	s.logger.Info("Client connected",
		zap.String("connectionID", conn.ID),
		zap.String("clientID", clientID),
		zap.String("transport", string(transport)),
	)
	return conn
}

// Disconnect tears a connection down: registry removal and handler
// unsubscription complete before this returns, so no event emitted
// afterwards reaches the connection.
func (s *Server) Disconnect(ctx context.Context, conn *Connection) {
	conn.Close()
	s.connections.Remove(conn.ID)
	s.bus.UnsubscribeConnection(conn.ID)

	if s.hooks != nil {
		s.hooks.ExecuteAsync(ctx, extensions.HookConnectionClosed, conn)
	}
	if s.metrics != nil {
		s.metrics.RecordConnectionCount(ctx, string(conn.Transport), s.connections.CountByTransport(conn.Transport))
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, conn.ID); err != nil {
			s.logger.Debug("Failed to reset rate limiter", zap.Error(err))
		}
	}
	s.logger.Info("Client disconnected",
		zap.String("connectionID", conn.ID),
		zap.String("clientID", conn.ClientID),
	)
}

// Broadcast emits an event to every subscribed connection
func (s *Server) Broadcast(eventType string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: utils.NowRFC3339(),
		Data:      data,
	}
	s.bus.Emit(event)
	if s.metrics != nil {
		s.metrics.RecordEventBroadcast(context.Background(), eventType, s.connections.Count())
	}
}

// Connections returns the live connection registry
func (s *Server) Connections() *ConnectionRegistry {
	return s.connections
}

// Bus returns the event bus
func (s *Server) Bus() *Bus {
	return s.bus
}

// HeartbeatInterval returns the transport heartbeat period
func (s *Server) HeartbeatInterval() time.Duration {
	return s.heartbeatInterval
}

// Shutdown closes every live connection and runs the shutdown hook
func (s *Server) Shutdown(ctx context.Context) error {
	for _, conn := range s.connections.List() {
		s.Disconnect(ctx, conn)
	}
	if s.hooks != nil {
		return s.hooks.Execute(ctx, extensions.HookServerShutdown, s)
	}
	return nil
}
