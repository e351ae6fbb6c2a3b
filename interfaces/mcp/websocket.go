package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"contexthub-backend/domain/config"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/utils"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundMessage is a client-to-server frame over WebSocket
type inboundMessage struct {
	Type       string                 `json:"type"`
	RequestID  string                 `json:"request_id,omitempty"`
	Tool       string                 `json:"tool_name,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	ContextID  string                 `json:"context_id,omitempty"`
	Resource   *Resource              `json:"resource,omitempty"`
	URI        string                 `json:"uri,omitempty"`
}

// outboundMessage is a server-to-client frame over WebSocket
type outboundMessage struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Timestamp string        `json:"timestamp"`
	Response  *ToolResponse `json:"response,omitempty"`
	Resource  *Resource     `json:"resource,omitempty"`
	Event     *Event        `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
}

// WebSocketHandler upgrades the request and serves the bidirectional
// MCP protocol: tool invocation and resource access inbound, event
// broadcast and heartbeats outbound.
func (s *Server) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			clientID = "anonymous"
		}

		conn := s.Connect(r.Context(), clientID, TransportWebSocket)
		session := &wsSession{
			server: s,
			conn:   conn,
			ws:     wsConn,
			logger: s.logger.With(
				zap.String("connectionID", conn.ID),
				zap.String("clientID", clientID),
			),
		}
		session.run(r.Context())
	}
}

type wsSession struct {
	server *Server
	conn   *Connection
	ws     *websocket.Conn
	logger *zap.Logger

	// writeCh funnels reply frames from the read loop to the write
	// loop, the sole writer on the socket
	writeCh chan outboundMessage
}

func (sess *wsSession) run(ctx context.Context) {
	sess.writeCh = make(chan outboundMessage, config.SendBufferSize)

	defer func() {
		sess.server.Disconnect(ctx, sess.conn)
		sess.ws.Close()
	}()

	sess.enqueue(outboundMessage{
		Type:      "connection",
		ID:        sess.conn.ID,
		Timestamp: utils.NowRFC3339(),
	})

	go sess.readPump(ctx)
	sess.writePump(ctx)
}

// readPump reads client frames and dispatches them. Closing the
// connection stops the write pump through conn.Done.
func (sess *wsSession) readPump(ctx context.Context) {
	defer sess.conn.Close()

	sess.ws.SetReadLimit(config.MaxInboundMessageBytes)
	sess.ws.SetReadDeadline(time.Now().Add(pongWait))
	sess.ws.SetPongHandler(func(string) error {
		sess.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := sess.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			sess.enqueue(outboundMessage{
				Type:      "error",
				Timestamp: utils.NowRFC3339(),
				Error:     "malformed message",
				ErrorType: string(pkgerrors.ErrorTypeInvalidArgument),
			})
			continue
		}
		sess.conn.Touch()
		sess.dispatch(ctx, msg)
	}
}

func (sess *wsSession) dispatch(ctx context.Context, msg inboundMessage) {
	switch msg.Type {
	case "invoke_tool":
		resp := sess.server.InvokeTool(ctx, &ToolRequest{
			Tool:         msg.Tool,
			Parameters:   msg.Parameters,
			ContextID:    msg.ContextID,
			ConnectionID: sess.conn.ID,
		})
		sess.enqueue(outboundMessage{
			Type:      "tool_result",
			RequestID: msg.RequestID,
			Timestamp: utils.NowRFC3339(),
			Response:  resp,
		})

	case "create_resource":
		if err := sess.server.CreateResource(msg.Resource); err != nil {
			sess.enqueue(errorMessage(msg.RequestID, err))
			return
		}
		sess.enqueue(outboundMessage{
			Type:      "resource_created",
			RequestID: msg.RequestID,
			Timestamp: utils.NowRFC3339(),
			Resource:  msg.Resource,
		})

	case "get_resource":
		resource, err := sess.server.GetResource(msg.URI)
		if err != nil {
			sess.enqueue(errorMessage(msg.RequestID, err))
			return
		}
		sess.enqueue(outboundMessage{
			Type:      "resource",
			RequestID: msg.RequestID,
			Timestamp: utils.NowRFC3339(),
			Resource:  resource,
		})

	case "heartbeat":
		sess.enqueue(outboundMessage{
			Type:      "heartbeat",
			RequestID: msg.RequestID,
			Timestamp: utils.NowRFC3339(),
		})

	default:
		sess.enqueue(outboundMessage{
			Type:      "error",
			RequestID: msg.RequestID,
			Timestamp: utils.NowRFC3339(),
			Error:     "unknown message type: " + msg.Type,
			ErrorType: string(pkgerrors.ErrorTypeInvalidArgument),
		})
	}
}

// writePump is the sole writer on the socket. It races broadcast
// events, reply frames, the heartbeat ticker and connection teardown.
func (sess *wsSession) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.conn.Done():
			sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
			sess.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-sess.writeCh:
			if !sess.writeJSON(msg) {
				return
			}
		case event := <-sess.conn.Outbound():
			if !sess.writeJSON(outboundMessage{
				Type:      "event",
				Timestamp: utils.NowRFC3339(),
				Event:     &event,
			}) {
				return
			}
		case <-ticker.C:
			sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (sess *wsSession) writeJSON(msg outboundMessage) bool {
	sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sess.ws.WriteJSON(msg); err != nil {
		sess.logger.Debug("Failed to write message", zap.Error(err))
		return false
	}
	return true
}

func (sess *wsSession) enqueue(msg outboundMessage) {
	select {
	case sess.writeCh <- msg:
	default:
		sess.logger.Warn("Dropped reply for slow connection", zap.String("messageType", msg.Type))
	}
}

func errorMessage(requestID string, err error) outboundMessage {
	resp := errorResponse(err)
	return outboundMessage{
		Type:      "error",
		RequestID: requestID,
		Timestamp: utils.NowRFC3339(),
		Error:     resp.Error,
		ErrorType: resp.ErrorType,
	}
}
