package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/orderdesk/internal/identity"
	"github.com/ashureev/orderdesk/internal/orchestrator"
	"github.com/ashureev/orderdesk/internal/store"
)

// maxRequestBodySize caps chat request bodies (64KB is generous for text).
const maxRequestBodySize = 64 << 10

// maxMessageLength caps a single chat message.
const maxMessageLength = 2000

// ConversationService is the orchestrator surface the HTTP layer needs.
type ConversationService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.Reply, error)
}

// ChatHandler handles the chat and session endpoints.
type ChatHandler struct {
	*Handler
	svc ConversationService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(base *Handler, svc ConversationService) *ChatHandler {
	return &ChatHandler{Handler: base, svc: svc}
}

// RegisterRoutes registers the chat API routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.DeleteSession)
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat runs one user message through the conversation pipeline.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			Error(w, http.StatusBadRequest, "request body is required")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(message) > maxMessageLength {
		Error(w, http.StatusBadRequest, "message is too long")
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), sessionID, message)
	if err != nil {
		slog.Error("chat handling failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id":        sessionID,
		"response":          reply.Response,
		"conversationState": reply.State,
		"resolved":          reply.Resolved,
	})
}

// GetSession returns the conversation history for the caller's session.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}

	sess, err := h.repo.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			JSON(w, http.StatusOK, map[string]interface{}{
				"session_id": sessionID,
				"history":    []struct{}{},
				"resolved":   false,
			})
			return
		}
		slog.Error("session lookup failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    sess.History,
		"resolved":   sess.Resolved,
	})
}

// DeleteSession discards the caller's conversation so the next message
// starts fresh.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}

	if err := h.repo.Delete(r.Context(), sessionID); err != nil {
		slog.Error("session delete failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset session")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Healthz reports service and storage health.
func (h *ChatHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
