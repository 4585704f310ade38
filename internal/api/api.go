// ABOUTME: REST API server: accounts, rooms, messages, AI conversations
// ABOUTME: Owns route registration and the shared JSON response helpers

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
)

// Server handles the JSON API. Everything except register and login runs
// behind the auth middleware.
type Server struct {
	store     store.Store
	hub       *hub.Hub
	assistant *assistant.Service
	verifier  *auth.JWTVerifier
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewServer creates an API server. Pass nil logger for default.
func NewServer(st store.Store, h *hub.Hub, svc *assistant.Service, verifier *auth.JWTVerifier, tokenTTL time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		hub:       h,
		assistant: svc,
		verifier:  verifier,
		tokenTTL:  tokenTTL,
		logger:    logger.With("component", "api"),
	}
}

// RegisterPublicRoutes registers the routes reachable without a token
func (s *Server) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
}

// RegisterRoutes registers the authenticated routes. The handlers expect the
// auth middleware to have run already.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("GET /api/users", s.handleListUsers)

	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	mux.HandleFunc("GET /api/rooms/{id}/messages", s.handleRoomMessages)
	mux.HandleFunc("POST /api/rooms/{id}/messages", s.handleSendRoomMessage)
	mux.HandleFunc("GET /api/rooms/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /api/rooms/{id}/members", s.handleAddMember)
	mux.HandleFunc("DELETE /api/rooms/{id}/members/{userID}", s.handleRemoveMember)

	mux.HandleFunc("GET /api/ai/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/ai/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/ai/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("PATCH /api/ai/conversations/{id}", s.handleUpdateConversation)
	mux.HandleFunc("DELETE /api/ai/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /api/ai/conversations/{id}/messages", s.handleConversationMessages)
	mux.HandleFunc("POST /api/ai/conversations/{id}/messages", s.handleSendConversationMessage)
	mux.HandleFunc("GET /api/ai/conversations/{id}/context", s.handleContextPreview)
}

// decodeJSON decodes a request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON writes a JSON response with the given status
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
