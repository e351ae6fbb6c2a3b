package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"contexthub-backend/pkg/utils"
)

// SSEHandler streams server events to one client over Server-Sent
// Events. The goroutine serving the request is the sole consumer of
// the connection's outbound channel; cleanup runs synchronously before
// the handler returns.
func (s *Server) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			clientID = "anonymous"
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		ctx := r.Context()
		conn := s.Connect(ctx, clientID, TransportSSE)
		defer s.Disconnect(ctx, conn)

		writeFrame(w, map[string]interface{}{
			"type":      "connection",
			"id":        conn.ID,
			"timestamp": utils.NowRFC3339(),
		})
		flusher.Flush()

		heartbeat := time.NewTicker(s.heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-conn.Done():
				return
			case <-heartbeat.C:
				writeFrame(w, map[string]interface{}{
					"type":      "heartbeat",
					"timestamp": utils.NowRFC3339(),
				})
				flusher.Flush()
			case event := <-conn.Outbound():
				writeFrame(w, map[string]interface{}{
					"type":      "event",
					"event":     event,
					"timestamp": utils.NowRFC3339(),
				})
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// ToolsHandler lists the registered tools for discovery over plain HTTP
func (s *Server) ToolsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tools := s.ListTools()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"tools": tools,
			"count": len(tools),
		}); err != nil {
			s.logger.Warn("Failed to encode tool list", zap.Error(err))
		}
	}
}
