// ABOUTME: Wire frame types and serialization for the WebSocket endpoints
// ABOUTME: JSON shapes match the documented room and AI chat protocols

package ws

import (
	"encoding/json"
	"time"

	"github.com/2389/campus-chat/internal/store"
)

// roomFrame is the inbound frame for room chat
type roomFrame struct {
	Content string `json:"content"`
}

// aiFrame is the inbound frame for AI chat
type aiFrame struct {
	Type                      string `json:"type"`
	Content                   string `json:"content"`
	IncludeRelatedChatContext bool   `json:"include_related_chat_context"`
	ContextMessageLimit       int    `json:"context_message_limit"`
}

// userPayload is the sender block embedded in room message events
type userPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// messagePayload is the body of a room message event
type messagePayload struct {
	ID        int64       `json:"id"`
	Chat      int64       `json:"chat"`
	Sender    userPayload `json:"sender"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
}

// messageEvent is the outbound success frame for room chat
type messageEvent struct {
	Type    string         `json:"type"`
	Message messagePayload `json:"message"`
}

// usagePayload carries token accounting on assistant message events
type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// aiMessagePayload is the body of user_message and assistant_message events
type aiMessagePayload struct {
	ID        int64         `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Timestamp string        `json:"timestamp"`
	Usage     *usagePayload `json:"usage,omitempty"`
}

// aiMessageEvent is the outbound frame for AI chat messages
type aiMessageEvent struct {
	Type    string           `json:"type"`
	Message aiMessagePayload `json:"message"`
}

// errorEvent is the outbound error frame shared by both endpoints
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MarshalMessageEvent serializes a room message for delivery to live
// connections. Exported for the HTTP send fallback, which broadcasts on the
// same wire format as the WebSocket path.
func MarshalMessageEvent(msg *store.Message) ([]byte, error) {
	return json.Marshal(messageEvent{
		Type: "message",
		Message: messagePayload{
			ID:   msg.ID,
			Chat: msg.RoomID,
			Sender: userPayload{
				ID:       msg.Sender.ID,
				Username: msg.Sender.Username,
				Email:    msg.Sender.Email,
				UserType: string(msg.Sender.UserType),
			},
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		},
	})
}

func marshalAIMessageEvent(eventType string, msg *store.AIMessage) ([]byte, error) {
	payload := aiMessagePayload{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}
	if msg.PromptTokens != nil || msg.CompletionTokens != nil || msg.TotalTokens != nil {
		payload.Usage = &usagePayload{}
		if msg.PromptTokens != nil {
			payload.Usage.PromptTokens = *msg.PromptTokens
		}
		if msg.CompletionTokens != nil {
			payload.Usage.CompletionTokens = *msg.CompletionTokens
		}
		if msg.TotalTokens != nil {
			payload.Usage.TotalTokens = *msg.TotalTokens
		}
	}
	return json.Marshal(aiMessageEvent{Type: eventType, Message: payload})
}

// marshalErrorEvent never fails; the frame is two plain strings
func marshalErrorEvent(msg string) []byte {
	payload, _ := json.Marshal(errorEvent{Type: "error", Message: msg})
	return payload
}
