// ABOUTME: Package documentation for the WebSocket layer
// ABOUTME: Documents the wire protocol and the session lifecycle

// Package ws serves the live chat surfaces over WebSocket.
//
// # Endpoints
//
// Two endpoints exist, both requiring an authenticated user:
//
//   - GET /ws/rooms/{id} streams a room. Admission requires membership;
//     non-members are refused with 403 before any upgrade happens.
//   - GET /ws/ai/{id} streams an AI conversation. Admission requires
//     ownership; anyone else gets 403.
//
// # Room protocol
//
// Inbound frames are {"content": "..."}. A valid frame is persisted and
// then broadcast to every connected member of the room, sender included,
// as {"type": "message", "message": {...}}. Invalid frames produce
// {"type": "error", "message": "..."} delivered to the sender only, and
// nothing is persisted or broadcast.
//
// # AI protocol
//
// Inbound frames are {"type": "message", "content": "...", ...} with
// optional context controls. Each send produces a user_message echo and,
// if the completion succeeds, an assistant_message carrying token usage.
// A failed completion leaves the user message persisted and reports an
// error frame instead.
//
// # Sessions
//
// Every connection runs one reader and one writer goroutine. The writer
// is the only goroutine that touches the socket; everything it writes,
// including sender-only error frames, arrives through the session's hub
// handle. Frames are processed strictly one at a time, so a sender's own
// messages never reorder.
package ws
