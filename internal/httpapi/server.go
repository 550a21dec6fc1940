// ABOUTME: HTTP surface for the chatbot: chat, history, capabilities, health
// ABOUTME: JSON endpoints plus a minimal HTML transcript view

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/orchestrator"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/session"
)

// DefaultSessionID is used when a request does not name a session.
const DefaultSessionID = "default"

// maxRequestBody bounds chat request bodies.
const maxRequestBody = 1 << 20

// Server exposes the orchestrator and registry over HTTP.
type Server struct {
	orch       *orchestrator.Orchestrator
	registry   *capability.Registry
	logger     *slog.Logger
	httpServer *http.Server
}

// Options configures a Server.
type Options struct {
	Addr         string
	Orchestrator *orchestrator.Orchestrator
	Registry     *capability.Registry
	Logger       *slog.Logger
}

// NewServer builds the HTTP server and its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orch:     opts.Orchestrator,
		registry: opts.Registry,
		logger:   logger.With("component", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chat", s.handleChatPage)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/clear", s.handleChatClear)
	mux.HandleFunc("/api/chat/history", s.handleChatHistory)
	mux.HandleFunc("/api/capabilities", s.handleCapabilities)
	mux.HandleFunc("/api/capabilities/reload", s.handleCapabilitiesReload)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Rounds         int    `json:"rounds"`
	ToolCalls      int    `json:"tool_calls"`
	LimitReached   bool   `json:"limit_reached,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.sendJSONError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	result, err := s.orch.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("chat turn failed", "session", sessionID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "Sorry, I encountered an error while processing your message. Please try again.")
		return
	}

	s.sendJSON(w, http.StatusOK, ChatResponse{
		Response:       result.Content,
		ConversationID: sessionID,
		Rounds:         result.Rounds,
		ToolCalls:      result.ToolCalls,
		LimitReached:   result.LimitReached,
	})
}

// ClearRequest is the JSON request body for POST /api/chat/clear.
type ClearRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ClearRequest
	if r.Body != nil {
		// An empty body clears the default session.
		json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	if err := s.orch.ClearSession(r.Context(), sessionID); err != nil {
		s.logger.Error("clearing session failed", "session", sessionID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "Error clearing conversation")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "Conversation cleared successfully"})
}

// HistoryMessage is one transcript entry in GET /api/chat/history.
type HistoryMessage struct {
	Role       string    `json:"role"`
	Content    string    `json:"content,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolCalls  int       `json:"tool_calls,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	history, err := s.orch.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("loading history failed", "session", sessionID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "Error retrieving history")
		return
	}

	messages := make([]HistoryMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, HistoryMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  len(msg.ToolCalls),
			CreatedAt:  msg.CreatedAt,
		})
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"conversation_id": sessionID,
		"history":         messages,
		"message_count":   len(messages),
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"capabilities": s.registry.List(),
		"active":       s.registry.ActiveNames(),
		"allow_list":   s.registry.AllowList(),
	})
}

// ReloadRequest is the JSON request body for POST /api/capabilities/reload.
// A null active field keeps the current allow-list.
type ReloadRequest struct {
	Active *string `json:"active"`
}

func (s *Server) handleCapabilitiesReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ReloadRequest
	if r.Body != nil {
		json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
	}
	allowList := s.registry.AllowList()
	if req.Active != nil {
		allowList = *req.Active
	}

	s.registry.Reload(allowList)
	s.logger.Info("capability registry reloaded", "allow_list", allowList)
	s.sendJSON(w, http.StatusOK, map[string]any{
		"message": "Capabilities reloaded",
		"active":  s.registry.ActiveNames(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chatbot-api",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"message": "Multi-Domain AI Chatbot API",
		"endpoints": map[string]string{
			"chat":         "/api/chat",
			"clear_chat":   "/api/chat/clear",
			"chat_history": "/api/chat/history",
			"capabilities": "/api/capabilities",
			"chat_ui":      "/chat",
		},
	})
}

// describeToolCalls summarizes an assistant message's tool requests for
// the HTML view.
func describeToolCalls(msg session.Message) string {
	if len(msg.ToolCalls) == 0 {
		return ""
	}
	names := make([]string, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		names = append(names, call.Function.Name)
	}
	return fmt.Sprintf("requested: %s", strings.Join(names, ", "))
}
