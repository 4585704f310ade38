// ABOUTME: AI chat session: echo the user entry, then stream in the completion
// ABOUTME: Gateway failures keep the user entry and produce no assistant entry

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
)

// aiSession is one live connection to an AI conversation. There is no room
// fan-out: the handle only carries this user's own events, but it gives the
// session a single writer and makes send-after-close a no-op.
type aiSession struct {
	server *Server
	conn   *websocket.Conn
	conv   *store.AIConversation
	handle *hub.Handle
	logger *slog.Logger
}

func (s *aiSession) run(ctx context.Context) {
	s.logger.Debug("session opened")

	go s.writePump()
	s.readPump(ctx)

	s.handle.Close()
	_ = s.conn.Close()
	s.logger.Debug("session closed")
}

func (s *aiSession) readPump(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame aiFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("Invalid JSON")
			continue
		}
		if frame.Type != "" && frame.Type != "message" {
			// Typing indicators and other frame types are not handled
			continue
		}

		s.handleSend(ctx, frame)
	}
}

// handleSend runs one send end to end. The completion call happens inline,
// so this connection reads nothing until it finishes, but no hub lock or
// other session is ever held up by it. A disconnect mid-call doesn't stop
// the reply from being persisted; delivery just quietly goes nowhere.
func (s *aiSession) handleSend(ctx context.Context, frame aiFrame) {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		s.sendError("Message content cannot be empty")
		return
	}

	userMsg, err := s.server.assistant.RecordUserMessage(ctx, s.conv, content)
	if err != nil {
		s.logger.Error("failed to persist user message", "error", err)
		s.sendError("Failed to save message")
		return
	}
	s.sendEvent("user_message", userMsg)

	reply, err := s.server.assistant.Reply(ctx, s.conv, assistant.ContextOptions{
		IncludeRelatedRoom: frame.IncludeRelatedChatContext,
		RoomMessageLimit:   frame.ContextMessageLimit,
	})
	if err != nil {
		// The user entry stands; nothing assistant-side was persisted
		s.logger.Error("completion failed", "error", err)
		s.sendError("Failed to get assistant response: " + err.Error())
		return
	}
	s.sendEvent("assistant_message", reply)
}

func (s *aiSession) writePump() {
	for payload := range s.handle.Events() {
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = s.conn.Close()
			return
		}
	}
	_ = s.conn.Close()
}

func (s *aiSession) sendEvent(eventType string, msg *store.AIMessage) {
	payload, err := marshalAIMessageEvent(eventType, msg)
	if err != nil {
		s.logger.Error("failed to serialize event", "error", err, "event", eventType)
		return
	}
	s.handle.Send(payload)
}

func (s *aiSession) sendError(msg string) {
	s.handle.Send(marshalErrorEvent(msg))
}
