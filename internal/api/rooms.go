// ABOUTME: Room handlers: create, list, delete, membership, message history
// ABOUTME: HTTP message send persists and broadcasts on the live wire format

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/store"
	"github.com/2389/campus-chat/internal/ws"
)

// CreateRoomRequest is the JSON request body for POST /api/rooms.
type CreateRoomRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids,omitempty"`
}

// AddMemberRequest is the JSON request body for POST /api/rooms/{id}/members.
type AddMemberRequest struct {
	UserID int64 `json:"user_id"`
}

// SendMessageRequest is the JSON request body for POST /api/rooms/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// RoomResponse is the JSON shape for a room.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse is the JSON shape for a room message.
type MessageResponse struct {
	ID        int64        `json:"id"`
	Chat      int64        `json:"chat"`
	Sender    UserResponse `json:"sender"`
	Content   string       `json:"content"`
	Timestamp string       `json:"timestamp"`
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	}
}

func messageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Chat:      msg.RoomID,
		Sender:    userResponse(msg.Sender),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}
}

// roomFromRequest resolves the room in the path and checks the requester is a
// member. Writes the error response itself and returns nil when admission
// fails.
func (s *Server) roomFromRequest(w http.ResponseWriter, r *http.Request) (*store.Room, *store.User) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return nil, nil
	}

	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid room id")
		return nil, nil
	}

	room, err := s.store.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "room not found")
			return nil, nil
		}
		s.logger.Error("failed to get room", "error", err, "room_id", roomID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil, nil
	}

	member, err := s.store.IsMember(r.Context(), roomID, user.ID)
	if err != nil {
		s.logger.Error("membership check failed", "error", err, "room_id", roomID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil, nil
	}
	if !member {
		s.sendJSONError(w, http.StatusForbidden, "not a participant in this room")
		return nil, nil
	}

	return room, user
}

// handleListRooms handles GET /api/rooms.
// Returns only rooms the requester is a member of.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rooms, err := s.store.ListRoomsForUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to list rooms", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = roomResponse(room)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCreateRoom handles POST /api/rooms.
// The creator is always a member; member_ids adds more up front.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	room := &store.Room{Name: req.Name}
	if err := s.store.CreateRoom(r.Context(), room); err != nil {
		s.logger.Error("failed to create room", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.store.AddMember(r.Context(), room.ID, user.ID); err != nil {
		s.logger.Error("failed to add creator to room", "error", err, "room_id", room.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	for _, memberID := range req.MemberIDs {
		if err := s.store.AddMember(r.Context(), room.ID, memberID); err != nil {
			s.logger.Error("failed to add member to room",
				"error", err, "room_id", room.ID, "user_id", memberID)
			s.sendJSONError(w, http.StatusBadRequest, "unknown member id")
			return
		}
	}

	s.logger.Info("room created", "room_id", room.ID, "name", room.Name, "creator", user.Username)
	s.writeJSON(w, http.StatusCreated, roomResponse(room))
}

// handleGetRoom handles GET /api/rooms/{id}.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, _ := s.roomFromRequest(w, r)
	if room == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, roomResponse(room))
}

// handleDeleteRoom handles DELETE /api/rooms/{id}.
// Deletion removes the room, its membership, and its messages; conversations
// linked to the room survive with the link cleared.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	room, user := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	if err := s.store.DeleteRoom(r.Context(), room.ID); err != nil {
		s.logger.Error("failed to delete room", "error", err, "room_id", room.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("room deleted", "room_id", room.ID, "deleted_by", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleRoomMessages handles GET /api/rooms/{id}/messages.
// Returns full history in chronological order, or the most recent ?limit=N.
func (s *Server) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	room, _ := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	var msgs []*store.Message
	var err error
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, parseErr := strconv.Atoi(limitStr)
		if parseErr != nil || limit < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		msgs, err = s.store.RecentMessages(r.Context(), room.ID, limit)
	} else {
		msgs, err = s.store.RoomMessages(r.Context(), room.ID)
	}
	if err != nil {
		s.logger.Error("failed to load messages", "error", err, "room_id", room.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]MessageResponse, len(msgs))
	for i, msg := range msgs {
		response[i] = messageResponse(msg)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSendRoomMessage handles POST /api/rooms/{id}/messages.
// Same persist-then-broadcast flow as the WebSocket path, so live members see
// HTTP-sent messages immediately.
func (s *Server) handleSendRoomMessage(w http.ResponseWriter, r *http.Request) {
	room, user := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := s.store.AppendMessage(r.Context(), room.ID, user.ID, req.Content)
	if err != nil {
		s.logger.Error("failed to persist message", "error", err, "room_id", room.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if payload, err := ws.MarshalMessageEvent(msg); err == nil {
		s.hub.Broadcast(room.ID, payload)
	} else {
		s.logger.Error("failed to serialize message event", "error", err)
	}

	s.writeJSON(w, http.StatusCreated, messageResponse(msg))
}

// handleListMembers handles GET /api/rooms/{id}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	room, _ := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	members, err := s.store.ListMembers(r.Context(), room.ID)
	if err != nil {
		s.logger.Error("failed to list members", "error", err, "room_id", room.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]UserResponse, len(members))
	for i, m := range members {
		response[i] = userResponse(m)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAddMember handles POST /api/rooms/{id}/members.
// Adding an existing member is a no-op, not an error.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	room, user := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.store.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusBadRequest, "unknown user id")
			return
		}
		s.logger.Error("failed to look up user", "error", err, "user_id", req.UserID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.store.AddMember(r.Context(), room.ID, req.UserID); err != nil {
		s.logger.Error("failed to add member", "error", err, "room_id", room.ID, "user_id", req.UserID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("member added",
		"room_id", room.ID, "user_id", req.UserID, "added_by", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveMember handles DELETE /api/rooms/{id}/members/{userID}.
// A removed member keeps their past messages but loses live and history
// access; in-flight completion context picks up the removal on its next
// membership check.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	room, user := s.roomFromRequest(w, r)
	if room == nil {
		return
	}

	userID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := s.store.RemoveMember(r.Context(), room.ID, userID); err != nil {
		s.logger.Error("failed to remove member", "error", err, "room_id", room.ID, "user_id", userID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("member removed",
		"room_id", room.ID, "user_id", userID, "removed_by", user.Username)
	w.WriteHeader(http.StatusNoContent)
}
