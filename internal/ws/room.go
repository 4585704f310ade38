// ABOUTME: Room chat session: validate, persist, broadcast per inbound frame
// ABOUTME: One reader and one writer goroutine per live connection

package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
)

// roomSession is one live connection to a room. It holds nothing beyond its
// identity, room key, and handle; all business state lives in the store.
type roomSession struct {
	server *Server
	conn   *websocket.Conn
	user   *store.User
	roomID int64
	handle *hub.Handle
	logger *slog.Logger
}

// run joins the hub and serves the connection until it closes. The session
// deregisters from the hub before finalizing so broadcasts stop targeting
// the dead handle.
func (s *roomSession) run(ctx context.Context) {
	s.server.hub.Join(s.roomID, s.handle)
	s.logger.Debug("session joined")

	go s.writePump()
	s.readPump(ctx)

	s.server.hub.Leave(s.roomID, s.handle)
	_ = s.conn.Close()
	s.logger.Debug("session closed")
}

// readPump processes inbound frames one at a time. Persist-then-broadcast
// runs synchronously before the next frame is read, so one sender's own
// messages never reorder.
func (s *roomSession) readPump(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame roomFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("Invalid JSON")
			continue
		}
		if frame.Content == "" {
			s.sendError("Content cannot be empty")
			continue
		}

		msg, err := s.server.store.AppendMessage(ctx, s.roomID, s.user.ID, frame.Content)
		if err != nil {
			// Not persisted means not delivered: nothing is broadcast
			s.logger.Error("failed to persist message", "error", err)
			s.sendError("Failed to save message")
			continue
		}

		payload, err := MarshalMessageEvent(msg)
		if err != nil {
			s.logger.Error("failed to serialize message", "error", err)
			s.sendError("Failed to serialize message")
			continue
		}

		// The sender receives its own copy through the broadcast like any
		// other member
		s.server.hub.Broadcast(s.roomID, payload)
	}
}

// writePump copies queued events to the socket. It exits when the handle is
// closed (hub removal or session teardown) or the socket dies.
func (s *roomSession) writePump() {
	for payload := range s.handle.Events() {
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = s.conn.Close()
			return
		}
	}
	_ = s.conn.Close()
}

// sendError queues an error event for this sender only
func (s *roomSession) sendError(msg string) {
	s.handle.Send(marshalErrorEvent(msg))
}
