package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contexthub-backend/application/services"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/infrastructure/persistence/memory"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/observability"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	entries := memory.NewEntryRepository()
	store := services.NewContextStore(
		entries,
		memory.NewRelationshipRepository(),
		services.NewNaiveSearcher(entries),
		nil,
		nil,
		nil,
		observability.NewTracer("test", false),
		zap.NewNop(),
	)
	return NewServer(store, NewBus(zap.NewNop()), nil, zap.NewNop(), opts...)
}

func logContentMap(lines ...string) map[string]interface{} {
	lineValues := make([]interface{}, len(lines))
	for i, l := range lines {
		lineValues[i] = l
	}
	return map[string]interface{}{
		"type": "log",
		"log": map[string]interface{}{
			"source": "test",
			"lines":  lineValues,
		},
	}
}

func TestServer_BuiltinToolsRegistered(t *testing.T) {
	server := newTestServer(t)

	names := make(map[string]bool)
	for _, tool := range server.ListTools() {
		names[tool.Name] = true
	}

	for _, want := range []string{
		"save_context", "get_context", "search_context", "list_project_context",
		"save_artifact", "get_artifact", "create_relationship",
		"get_related_context", "create_summary", "list_connections",
	} {
		assert.True(t, names[want], "missing builtin tool %s", want)
	}
}

func TestServer_InvokeTool_UnknownTool(t *testing.T) {
	server := newTestServer(t)

	resp := server.InvokeTool(context.Background(), &ToolRequest{Tool: "no_such_tool"})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "no_such_tool", resp.ToolName)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), resp.ErrorType)
	assert.NotEmpty(t, resp.Error)
}

func TestServer_InvokeTool_MissingRequiredParameter(t *testing.T) {
	server := newTestServer(t)

	resp := server.InvokeTool(context.Background(), &ToolRequest{
		Tool:       "save_context",
		Parameters: map[string]interface{}{"project_id": "proj-1"},
	})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeInvalidArgument), resp.ErrorType)
	assert.Contains(t, resp.Error, "content")
}

func TestServer_InvokeTool_SaveAndGetContext(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	saved := server.InvokeTool(ctx, &ToolRequest{
		Tool: "save_context",
		Parameters: map[string]interface{}{
			"project_id": "proj-1",
			"content":    logContentMap("deploy started"),
			"tags":       []interface{}{"deploy"},
		},
	})
	require.Equal(t, StatusSuccess, saved.Status, "save_context failed: %+v", saved.Error)

	envelope, ok := saved.Result.(contexts.Envelope)
	require.True(t, ok)
	assert.Equal(t, "proj-1", envelope.Project.ID)
	assert.Equal(t, "log", envelope.Type)
	assert.Contains(t, envelope.Tags, "deploy")

	fetched := server.InvokeTool(ctx, &ToolRequest{
		Tool:       "get_context",
		Parameters: map[string]interface{}{"entry_id": envelope.ID},
	})
	require.Equal(t, StatusSuccess, fetched.Status)
}

func TestServer_InvokeTool_HandlerErrorBecomesErrorResponse(t *testing.T) {
	server := newTestServer(t)

	resp := server.InvokeTool(context.Background(), &ToolRequest{
		Tool:       "get_context",
		Parameters: map[string]interface{}{"entry_id": "ghost"},
	})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), resp.ErrorType)
}

func TestServer_InvokeTool_PanickingHandlerIsRecovered(t *testing.T) {
	server := newTestServer(t)
	require.NoError(t, server.RegisterTool(&Tool{
		Name: "explode",
		Handler: func(context.Context, *ToolRequest) (interface{}, error) {
			panic("boom")
		},
	}))

	var resp *ToolResponse
	assert.NotPanics(t, func() {
		resp = server.InvokeTool(context.Background(), &ToolRequest{Tool: "explode"})
	})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeToolExecution), resp.ErrorType)
}

type denyingLimiter struct{}

func (denyingLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyingLimiter) Reset(context.Context, string) error         { return nil }

func TestServer_InvokeTool_RateLimited(t *testing.T) {
	server := newTestServer(t, WithRateLimiter(denyingLimiter{}))

	resp := server.InvokeTool(context.Background(), &ToolRequest{
		Tool:         "list_connections",
		Parameters:   map[string]interface{}{},
		ConnectionID: "conn-1",
	})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeRateLimit), resp.ErrorType)

	// Requests without a connection are not throttled
	direct := server.InvokeTool(context.Background(), &ToolRequest{
		Tool:       "list_connections",
		Parameters: map[string]interface{}{},
	})
	assert.Equal(t, StatusSuccess, direct.Status)
}

func TestServer_ConnectionLifecycle(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	conn := server.Connect(ctx, "client-1", TransportSSE)
	assert.Equal(t, 1, server.Connections().Count())

	server.Broadcast("deploy_finished", map[string]interface{}{"env": "prod"})

	select {
	case event := <-conn.Outbound():
		assert.Equal(t, "deploy_finished", event.Type)
	default:
		t.Fatal("expected broadcast event on the connection")
	}

	server.Disconnect(ctx, conn)
	assert.Equal(t, 0, server.Connections().Count())

	// Events emitted after Disconnect returns never reach the connection
	server.Broadcast("too_late", nil)
	select {
	case event := <-conn.Outbound():
		t.Fatalf("unexpected event after disconnect: %s", event.Type)
	default:
	}
}

func TestServer_ToolInvocationEmitsBusEvent(t *testing.T) {
	server := newTestServer(t)

	var got []Event
	server.Bus().Subscribe("tool_executed", "", func(event Event) {
		got = append(got, event)
	})

	server.InvokeTool(context.Background(), &ToolRequest{
		Tool:       "list_connections",
		Parameters: map[string]interface{}{},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "list_connections", got[0].Data["tool"])
	assert.Equal(t, StatusSuccess, got[0].Data["status"])
}

func TestServer_Resources(t *testing.T) {
	server := newTestServer(t)

	var created []Event
	server.Bus().Subscribe("resource_created", "", func(event Event) {
		created = append(created, event)
	})

	resource := &Resource{
		URI:  "context://proj-1/report",
		Name: "report",
		Type: "artifact",
	}
	require.NoError(t, server.CreateResource(resource))
	require.Len(t, created, 1)
	assert.Equal(t, resource.URI, created[0].Data["uri"])

	// Duplicate URIs are conflicts
	err := server.CreateResource(&Resource{URI: resource.URI, Name: "other", Type: "artifact"})
	assert.True(t, pkgerrors.IsConflict(err))

	got, err := server.GetResource(resource.URI)
	require.NoError(t, err)
	assert.Equal(t, "report", got.Name)

	_, err = server.GetResource("context://nowhere")
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.Len(t, server.ListResources(), 1)
}

func TestServer_Shutdown(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	first := server.Connect(ctx, "client-1", TransportSSE)
	second := server.Connect(ctx, "client-2", TransportWebSocket)

	require.NoError(t, server.Shutdown(ctx))

	assert.Equal(t, 0, server.Connections().Count())
	select {
	case <-first.Done():
	default:
		t.Fatal("first connection not closed")
	}
	select {
	case <-second.Done():
	default:
		t.Fatal("second connection not closed")
	}
}

func TestServer_InvokeTool_ContextResolution(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	var got *Resource
	require.NoError(t, server.RegisterTool(&Tool{
		Name:        "inspect_context",
		Description: "captures the resolved context resource",
		Handler: func(_ context.Context, req *ToolRequest) (interface{}, error) {
			got = req.Context
			return "ok", nil
		},
	}))

	// Unknown context id fails before the handler runs
	resp := server.InvokeTool(ctx, &ToolRequest{Tool: "inspect_context", ContextID: "context://nowhere"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), resp.ErrorType)
	assert.Nil(t, got)

	// A resource of the wrong type is rejected
	require.NoError(t, server.CreateResource(&Resource{URI: "report://1", Name: "report", Type: "artifact"}))
	resp = server.InvokeTool(ctx, &ToolRequest{Tool: "inspect_context", ContextID: "report://1"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, string(pkgerrors.ErrorTypeInvalidArgument), resp.ErrorType)
	assert.Nil(t, got)

	// A context resource is resolved and handed to the handler
	require.NoError(t, server.CreateResource(&Resource{
		URI:  "context://proj-1/e1",
		Name: "e1",
		Type: ResourceTypeContext,
	}))
	resp = server.InvokeTool(ctx, &ToolRequest{Tool: "inspect_context", ContextID: "context://proj-1/e1"})
	require.Equal(t, StatusSuccess, resp.Status)
	require.NotNil(t, got)
	assert.Equal(t, "context://proj-1/e1", got.URI)
}

func TestToolRequest_ContextIDDecodes(t *testing.T) {
	payload := `{"tool_name":"get_context","parameters":{"entry_id":"e1"},"context_id":"context://proj-1/e1"}`

	var req ToolRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	assert.Equal(t, "get_context", req.Tool)
	assert.Equal(t, "e1", req.String("entry_id"))
	assert.Equal(t, "context://proj-1/e1", req.ContextID)
}

func TestConnection_LastActivityAdvancesOnSend(t *testing.T) {
	conn := NewConnection("client-1", TransportSSE)
	before := conn.LastActivity()
	assert.False(t, before.IsZero())

	time.Sleep(5 * time.Millisecond)
	require.True(t, conn.Send(Event{Type: "ping"}))
	assert.True(t, conn.LastActivity().After(before))
}

func TestConnection_SendAfterCloseIsDropped(t *testing.T) {
	conn := NewConnection("client-1", TransportSSE)

	assert.True(t, conn.Send(Event{Type: "before"}))
	conn.Close()
	assert.False(t, conn.Send(Event{Type: "after"}))

	// Close is idempotent
	assert.NotPanics(t, conn.Close)
}
