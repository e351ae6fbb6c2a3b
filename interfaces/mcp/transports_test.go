package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "contexthub-backend/pkg/errors"
)

type sseFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// readSSEFrame blocks until the next data line of the stream arrives
func readSSEFrame(t *testing.T, scanner *bufio.Scanner) sseFrame {
	t.Helper()
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame sseFrame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		return frame
	}
	t.Fatal("stream ended before a frame arrived")
	return sseFrame{}
}

func TestSSEHandler_ConnectionFrameThenHeartbeat(t *testing.T) {
	server := newTestServer(t, WithHeartbeatInterval(20*time.Millisecond))
	srv := httptest.NewServer(server.SSEHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?client_id=sse-test", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)

	first := readSSEFrame(t, scanner)
	assert.Equal(t, "connection", first.Type)
	assert.NotEmpty(t, first.ID)

	second := readSSEFrame(t, scanner)
	assert.Equal(t, "heartbeat", second.Type)
}

func TestWebSocketHandler_MessageLoop(t *testing.T) {
	server := newTestServer(t)
	srv := httptest.NewServer(server.WebSocketHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?client_id=ws-test"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() outboundMessage {
		var msg outboundMessage
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, ws.ReadJSON(&msg))
		return msg
	}

	hello := read()
	assert.Equal(t, "connection", hello.Type)
	assert.NotEmpty(t, hello.ID)

	// An unknown frame type gets an error reply, not a disconnect
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":       "telepathy",
		"request_id": "r1",
	}))
	errFrame := read()
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "r1", errFrame.RequestID)
	assert.Contains(t, errFrame.Error, "unknown message type")
	assert.Equal(t, string(pkgerrors.ErrorTypeInvalidArgument), errFrame.ErrorType)

	// The loop keeps serving tool invocations afterwards
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":       "invoke_tool",
		"request_id": "r2",
		"tool_name":  "list_connections",
		"parameters": map[string]interface{}{},
	}))
	result := read()
	assert.Equal(t, "tool_result", result.Type)
	assert.Equal(t, "r2", result.RequestID)
	require.NotNil(t, result.Response)
	assert.Equal(t, StatusSuccess, result.Response.Status)
	assert.Equal(t, "list_connections", result.Response.ToolName)

	// Client heartbeats are echoed back
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":       "heartbeat",
		"request_id": "r3",
	}))
	beat := read()
	assert.Equal(t, "heartbeat", beat.Type)
	assert.Equal(t, "r3", beat.RequestID)
	assert.NotEmpty(t, beat.Timestamp)
}
