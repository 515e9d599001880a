// Package chat serves the conversation over a WebSocket, mirroring the
// HTTP /api/chat endpoint for clients that want streaming-style turn
// exchange without polling.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/ashureev/orderdesk/internal/identity"
	"github.com/ashureev/orderdesk/internal/orchestrator"
)

// maxWSMessageSize caps a single inbound frame.
const maxWSMessageSize = 64 << 10

// ConversationService is the orchestrator surface the WebSocket layer needs.
type ConversationService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.Reply, error)
}

// WebSocketHandler handles WebSocket chat sessions.
type WebSocketHandler struct {
	svc           ConversationService
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(svc ConversationService, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, allowedOrigin: allowedOrigin, isDev: isDev}
}

// wsMessage represents the WebSocket message structure, both directions.
type wsMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	State    string `json:"conversationState,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	ws.SetReadLimit(maxWSMessageSize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, sessionID)
	slog.Info("WebSocket chat session ended", "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			// Treat a bare text frame as a chat message.
			msg = wsMessage{Type: "message", Content: string(message)}
		}

		switch msg.Type {
		case "message":
			text := strings.TrimSpace(msg.Content)
			if text == "" {
				if err := h.writeJSON(ws, wsMessage{Type: "error", Error: "message is required"}); err != nil {
					return
				}
				continue
			}

			reply, err := h.svc.HandleMessage(ctx, sessionID, text)
			if err != nil {
				slog.Error("chat handling failed", "session_id", sessionID, "error", err)
				if err := h.writeJSON(ws, wsMessage{Type: "error", Error: "failed to process message"}); err != nil {
					return
				}
				continue
			}

			out := wsMessage{
				Type:     "response",
				Content:  reply.Response,
				State:    reply.State,
				Resolved: reply.Resolved,
			}
			if err := h.writeJSON(ws, out); err != nil {
				slog.Debug("Failed to send response", "error", err, "session_id", sessionID)
				return
			}
		case "ping":
			if err := h.writeJSON(ws, wsMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
