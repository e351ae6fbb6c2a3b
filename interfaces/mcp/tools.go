// Package mcp implements the MCP protocol surface: tool discovery and
// invocation, resource registration, connection lifecycle over SSE and
// WebSocket, and event broadcast to connected clients.
package mcp

import (
	"context"
	"sync"

	pkgerrors "contexthub-backend/pkg/errors"
)

// ToolHandler executes a tool invocation. Returned errors are caught
// by the server and folded into an error ToolResponse.
type ToolHandler func(ctx context.Context, req *ToolRequest) (interface{}, error)

// Tool describes an invokable MCP tool
type Tool struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	Parameters         map[string]ParamSpec   `json:"parameters"`
	RequiredParameters []string               `json:"required_parameters"`
	Annotations        map[string]interface{} `json:"annotations,omitempty"`
	Handler            ToolHandler            `json:"-"`
}

// ParamSpec documents one tool parameter
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolRequest is a single tool invocation. ContextID optionally names
// a context resource the invocation operates on; the server resolves
// it through the resource registry before dispatch and hands the
// resolved resource to the handler via Context.
type ToolRequest struct {
	Tool         string                 `json:"tool_name"`
	Parameters   map[string]interface{} `json:"parameters"`
	ContextID    string                 `json:"context_id,omitempty"`
	ConnectionID string                 `json:"-"`
	Context      *Resource              `json:"-"`
}

// String returns a string parameter, empty when absent or mistyped
func (r *ToolRequest) String(name string) string {
	v, _ := r.Parameters[name].(string)
	return v
}

// StringSlice returns a string list parameter. JSON arrays decode as
// []interface{}, so both shapes are accepted.
func (r *ToolRequest) StringSlice(name string) []string {
	switch v := r.Parameters[name].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Int returns an integer parameter. JSON numbers decode as float64.
func (r *ToolRequest) Int(name string) int {
	switch v := r.Parameters[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Map returns an object parameter, nil when absent or mistyped
func (r *ToolRequest) Map(name string) map[string]interface{} {
	v, _ := r.Parameters[name].(map[string]interface{})
	return v
}

// ToolResponse is the result envelope of a tool invocation. Error is
// the human-readable message; ErrorType carries the machine-readable
// error code alongside it.
type ToolResponse struct {
	ToolName  string      `json:"tool_name,omitempty"`
	Status    string      `json:"status"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// errorResponse folds an error into an error ToolResponse
func errorResponse(err error) *ToolResponse {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		appErr = pkgerrors.NewInternalError(err.Error())
	}
	return &ToolResponse{
		Status:    StatusError,
		Error:     appErr.Message,
		ErrorType: string(appErr.Type),
	}
}

// ToolRegistry holds the registered tools
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewToolRegistry creates an empty tool registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool by name
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return pkgerrors.NewInvalidArgumentError("tool name is required")
	}
	if tool.Handler == nil {
		return pkgerrors.NewInvalidArgumentError("tool " + tool.Name + " has no handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
	return nil
}

// Get returns the tool by name, nil when unknown
func (r *ToolRegistry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tools
func (r *ToolRegistry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}
