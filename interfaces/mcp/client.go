package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

// Client talks to an MCP server over HTTP and SSE. It is the
// counterpart bridge services embed to discover tools, invoke them and
// subscribe to the event stream.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates an MCP client for the server at baseURL
func NewClient(baseURL, clientID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTools fetches the server's tool catalog
func (c *Client) ListTools(ctx context.Context) ([]*Tool, error) {
	var result struct {
		Tools []*Tool `json:"tools"`
	}
	if err := c.getJSON(ctx, "/mcp/tools", &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// InvokeTool calls a tool by name. A transport failure is an error;
// a tool-level failure comes back as an error-status ToolResponse.
func (c *Client) InvokeTool(ctx context.Context, tool string, parameters map[string]interface{}) (*ToolResponse, error) {
	return c.InvokeToolWithContext(ctx, tool, parameters, "")
}

// InvokeToolWithContext calls a tool against a context resource
// registered on the server. The server mirrors the tool's error type
// in the HTTP status, so the response envelope is decoded regardless
// of status code.
func (c *Client) InvokeToolWithContext(ctx context.Context, tool string, parameters map[string]interface{}, contextID string) (*ToolResponse, error) {
	payload, err := json.Marshal(ToolRequest{Tool: tool, Parameters: parameters, ContextID: contextID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/tools/invoke", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var toolResp ToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&toolResp); err != nil || toolResp.Status == "" {
		return nil, fmt.Errorf("tool invocation failed with status %d", resp.StatusCode)
	}
	return &toolResp, nil
}

// PushContext stores a context event through the save_context tool and
// returns the stored envelope
func (c *Client) PushContext(ctx context.Context, projectID string, content contexts.Content, tags []string) (*contexts.Envelope, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}
	var contentMap map[string]interface{}
	if err := json.Unmarshal(contentJSON, &contentMap); err != nil {
		return nil, fmt.Errorf("failed to round-trip content: %w", err)
	}

	params := map[string]interface{}{
		"project_id": projectID,
		"content":    contentMap,
	}
	if len(tags) > 0 {
		params["tags"] = tags
	}

	resp, err := c.InvokeTool(ctx, "save_context", params)
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess {
		return nil, toolResponseError(resp)
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal tool result: %w", err)
	}
	var envelope contexts.Envelope
	if err := json.Unmarshal(resultJSON, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected save_context result shape: %w", err)
	}
	return &envelope, nil
}

// CreateResource registers a resource with the server
func (c *Client) CreateResource(ctx context.Context, resource *Resource) error {
	return c.postJSON(ctx, "/mcp/resources", resource, nil)
}

// GetResource fetches a resource by URI
func (c *Client) GetResource(ctx context.Context, uri string) (*Resource, error) {
	var resource Resource
	path := "/mcp/resources?uri=" + url.QueryEscape(uri)
	if err := c.getJSON(ctx, path, &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

// SSEFrame is one decoded frame from the event stream
type SSEFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"id,omitempty"`
	Timestamp    string `json:"timestamp"`
	Event        *Event `json:"event,omitempty"`
}

// Events subscribes to the server's SSE stream. Frames arrive on the
// returned channel until the context is cancelled or the stream ends;
// the channel is closed either way.
func (c *Client) Events(ctx context.Context) (<-chan SSEFrame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/mcp/sse?client_id="+url.QueryEscape(c.clientID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse subscribe failed with status %d", resp.StatusCode)
	}

	frames := make(chan SSEFrame)
	go func() {
		defer close(frames)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var frame SSEFrame
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				continue
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr pkgerrors.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return &pkgerrors.AppError{
				Type:       pkgerrors.ErrorType(apiErr.Type),
				Message:    apiErr.Message,
				HTTPStatus: resp.StatusCode,
			}
		}
		return fmt.Errorf("request to %s failed with status %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toolResponseError(resp *ToolResponse) error {
	if resp.Error == "" {
		return fmt.Errorf("tool invocation failed")
	}
	return &pkgerrors.AppError{
		Type:    pkgerrors.ErrorType(resp.ErrorType),
		Message: resp.Error,
	}
}
