// ABOUTME: AI conversation handlers: lifecycle, history, HTTP send, context preview
// ABOUTME: Every route past creation checks ownership; there is no sharing

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/store"
)

// CreateConversationRequest is the JSON request body for POST /api/ai/conversations.
type CreateConversationRequest struct {
	Title         string `json:"title,omitempty"`
	SystemPrompt  string `json:"system_prompt,omitempty"`
	RelatedChatID *int64 `json:"related_chat_id,omitempty"`
}

// UpdateConversationRequest is the JSON request body for PATCH /api/ai/conversations/{id}.
type UpdateConversationRequest struct {
	SystemPrompt *string `json:"system_prompt,omitempty"`
}

// SendAIMessageRequest is the JSON request body for POST /api/ai/conversations/{id}/messages.
type SendAIMessageRequest struct {
	Content                   string `json:"content"`
	IncludeRelatedChatContext bool   `json:"include_related_chat_context,omitempty"`
	ContextMessageLimit       int    `json:"context_message_limit,omitempty"`
}

// ConversationResponse is the JSON shape for an AI conversation.
type ConversationResponse struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	SystemPrompt  string `json:"system_prompt"`
	RelatedChatID *int64 `json:"related_chat_id"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`

	// Usage totals are populated on single-conversation fetches only
	Usage *UsageResponse `json:"usage,omitempty"`
}

// UsageResponse carries token accounting on assistant messages.
type UsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AIMessageResponse is the JSON shape for an AI conversation message.
type AIMessageResponse struct {
	ID        int64          `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Usage     *UsageResponse `json:"usage,omitempty"`
}

// SendAIMessageResponse is the JSON response for a successful HTTP send.
type SendAIMessageResponse struct {
	UserMessage      AIMessageResponse `json:"user_message"`
	AssistantMessage AIMessageResponse `json:"assistant_message"`
}

// ContextPreviewResponse is the JSON response for GET /api/ai/conversations/{id}/context.
type ContextPreviewResponse struct {
	Context string `json:"context"`
}

func conversationResponse(conv *store.AIConversation) ConversationResponse {
	return ConversationResponse{
		ID:            conv.ID,
		Title:         conv.Title,
		SystemPrompt:  conv.SystemPrompt,
		RelatedChatID: conv.RelatedRoomID,
		CreatedAt:     conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     conv.UpdatedAt.Format(time.RFC3339),
	}
}

func aiMessageResponse(msg *store.AIMessage) AIMessageResponse {
	resp := AIMessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}
	if msg.PromptTokens != nil || msg.CompletionTokens != nil || msg.TotalTokens != nil {
		resp.Usage = &UsageResponse{}
		if msg.PromptTokens != nil {
			resp.Usage.PromptTokens = *msg.PromptTokens
		}
		if msg.CompletionTokens != nil {
			resp.Usage.CompletionTokens = *msg.CompletionTokens
		}
		if msg.TotalTokens != nil {
			resp.Usage.TotalTokens = *msg.TotalTokens
		}
	}
	return resp
}

// conversationFromRequest resolves the conversation in the path and checks
// the requester owns it. Writes the error response itself and returns nil
// when admission fails.
func (s *Server) conversationFromRequest(w http.ResponseWriter, r *http.Request) (*store.AIConversation, *store.User) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return nil, nil
	}

	convID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return nil, nil
	}

	conv, err := s.store.GetConversation(r.Context(), convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return nil, nil
		}
		s.logger.Error("failed to get conversation", "error", err, "conversation_id", convID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil, nil
	}
	if conv.UserID != user.ID {
		s.sendJSONError(w, http.StatusForbidden, "not the owner of this conversation")
		return nil, nil
	}

	return conv, user
}

// handleListConversations handles GET /api/ai/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convs, err := s.store.ListConversationsForUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		response[i] = conversationResponse(conv)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCreateConversation handles POST /api/ai/conversations.
// A related chat link requires current membership in that room; the link is
// weak and survives the room's deletion with the reference cleared.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.RelatedChatID != nil {
		member, err := s.store.IsMember(r.Context(), *req.RelatedChatID, user.ID)
		if err != nil {
			s.logger.Error("membership check failed", "error", err, "room_id", *req.RelatedChatID)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !member {
			s.sendJSONError(w, http.StatusForbidden, "not a participant in the related room")
			return
		}
	}

	conv := &store.AIConversation{
		UserID:        user.ID,
		Title:         req.Title,
		SystemPrompt:  req.SystemPrompt,
		RelatedRoomID: req.RelatedChatID,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("conversation created", "conversation_id", conv.ID, "owner", user.Username)
	s.writeJSON(w, http.StatusCreated, conversationResponse(conv))
}

// handleGetConversation handles GET /api/ai/conversations/{id}.
// The response carries the summed token usage across the conversation's
// assistant messages.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, _ := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	totals, err := s.store.ConversationUsage(r.Context(), conv.ID)
	if err != nil {
		s.logger.Error("failed to sum usage", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := conversationResponse(conv)
	response.Usage = &UsageResponse{
		PromptTokens:     totals.PromptTokens,
		CompletionTokens: totals.CompletionTokens,
		TotalTokens:      totals.TotalTokens,
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleUpdateConversation handles PATCH /api/ai/conversations/{id}.
// Only the system prompt is mutable; the change applies to the next send,
// past messages are never rewritten.
func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	conv, _ := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	var req UpdateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SystemPrompt == nil {
		s.sendJSONError(w, http.StatusBadRequest, "system_prompt is required")
		return
	}

	if err := s.store.UpdateSystemPrompt(r.Context(), conv.ID, *req.SystemPrompt); err != nil {
		s.logger.Error("failed to update system prompt", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	conv.SystemPrompt = *req.SystemPrompt
	s.writeJSON(w, http.StatusOK, conversationResponse(conv))
}

// handleDeleteConversation handles DELETE /api/ai/conversations/{id}.
// Deletion takes the conversation's messages with it.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, user := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	if err := s.store.DeleteConversation(r.Context(), conv.ID); err != nil {
		s.logger.Error("failed to delete conversation", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("conversation deleted", "conversation_id", conv.ID, "owner", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleConversationMessages handles GET /api/ai/conversations/{id}/messages.
func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	conv, _ := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	msgs, err := s.store.ConversationMessages(r.Context(), conv.ID)
	if err != nil {
		s.logger.Error("failed to load messages", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]AIMessageResponse, len(msgs))
	for i, msg := range msgs {
		response[i] = aiMessageResponse(msg)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSendConversationMessage handles POST /api/ai/conversations/{id}/messages.
// Same flow as the WebSocket path: the user entry is persisted before the
// gateway is called, and a gateway failure leaves it in place.
func (s *Server) handleSendConversationMessage(w http.ResponseWriter, r *http.Request) {
	conv, _ := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	var req SendAIMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	userMsg, err := s.assistant.RecordUserMessage(r.Context(), conv, content)
	if err != nil {
		s.logger.Error("failed to persist user message", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reply, err := s.assistant.Reply(r.Context(), conv, assistant.ContextOptions{
		IncludeRelatedRoom: req.IncludeRelatedChatContext,
		RoomMessageLimit:   req.ContextMessageLimit,
	})
	if err != nil {
		s.logger.Error("completion failed", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusBadGateway, "failed to get assistant response")
		return
	}

	s.writeJSON(w, http.StatusCreated, SendAIMessageResponse{
		UserMessage:      aiMessageResponse(userMsg),
		AssistantMessage: aiMessageResponse(reply),
	})
}

// handleContextPreview handles GET /api/ai/conversations/{id}/context.
// Returns the related-room block a send would splice into the system prompt,
// computed with the same bounds and membership checks as a real send.
func (s *Server) handleContextPreview(w http.ResponseWriter, r *http.Request) {
	conv, _ := s.conversationFromRequest(w, r)
	if conv == nil {
		return
	}

	opts := assistant.ContextOptions{IncludeRelatedRoom: true}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.RoomMessageLimit = limit
	}

	block, err := s.assistant.RelatedRoomContext(r.Context(), conv, opts)
	if err != nil {
		s.logger.Error("failed to assemble context", "error", err, "conversation_id", conv.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, ContextPreviewResponse{Context: block})
}
