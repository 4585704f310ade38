// ABOUTME: WebSocket endpoints for room chat and AI conversations
// ABOUTME: Owns admission checks and the upgrade; sessions own the pumps

package ws

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
)

// Server handles WebSocket connections for both chat surfaces
type Server struct {
	store     store.Store
	hub       *hub.Hub
	assistant *assistant.Service
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewServer creates a WebSocket server. Pass nil logger for default.
func NewServer(st store.Store, h *hub.Hub, svc *assistant.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		hub:       h,
		assistant: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth gates the handshake; origin policy is left to the
			// deployment's reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws"),
	}
}

// RegisterRoutes registers the WebSocket routes on the given mux. The
// handlers expect the auth middleware to have run already.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms/{id}", s.handleRoom)
	mux.HandleFunc("GET /ws/ai/{id}", s.handleConversation)
}

// handleRoom admits a member to a room's live stream. Admission failures
// refuse the connection before the upgrade: no frames, no socket.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	member, err := s.store.IsMember(r.Context(), roomID, user.ID)
	if err != nil {
		s.logger.Error("membership check failed", "error", err, "room_id", roomID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant in this room", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	session := &roomSession{
		server: s,
		conn:   conn,
		user:   user,
		roomID: roomID,
		handle: hub.NewHandle(),
		logger: s.logger.With("room_id", roomID, "username", user.Username),
	}
	session.run(r.Context())
}

// handleConversation admits the owner to an AI conversation's stream
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	convID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	conv, err := s.store.GetConversation(r.Context(), convID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if conv.UserID != user.ID {
		http.Error(w, "not the owner of this conversation", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	session := &aiSession{
		server: s,
		conn:   conn,
		conv:   conv,
		handle: hub.NewHandle(),
		logger: s.logger.With("conversation_id", convID, "username", user.Username),
	}
	session.run(r.Context())
}
