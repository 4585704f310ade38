// ABOUTME: In-memory fan-out hub for live room connections
// ABOUTME: Delivers serialized events to every handle joined to a room

package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// handleBufferSize is the outbound channel buffer per handle. A handle
	// that falls this far behind is treated as dead and removed.
	handleBufferSize = 64
)

// Handle is the live, addressable reference to one connected session. The
// session's writer drains Events and copies payloads to the socket; the hub
// (or the session itself, for sender-only errors) feeds it via Send.
type Handle struct {
	id string

	mu     sync.Mutex
	closed bool
	ch     chan []byte
}

// NewHandle creates a handle with a fresh subscription ID
func NewHandle() *Handle {
	return &Handle{
		id: uuid.New().String(),
		ch: make(chan []byte, handleBufferSize),
	}
}

// ID returns the handle's subscription ID
func (h *Handle) ID() string {
	return h.id
}

// Events returns the channel the session's writer drains. The channel is
// closed when the handle is removed from the hub.
func (h *Handle) Events() <-chan []byte {
	return h.ch
}

// Send queues a payload for delivery to this handle. Returns false without
// blocking if the handle is closed or its buffer is full. Send after close
// is a no-op, not an error.
func (h *Handle) Send(payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	select {
	case h.ch <- payload:
		return true
	default:
		return false
	}
}

// Close marks the handle closed and closes its channel. Idempotent.
// Sessions that use a handle without a hub (AI conversations have no room
// fan-out) call this directly on disconnect.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.ch)
}

// Hub tracks which handles are joined to which room and fans events out to
// them. It is the one piece of state shared across connection goroutines;
// the RWMutex guards the room map against concurrent join/leave/broadcast.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]*Handle // roomID -> handle ID -> handle
	logger *slog.Logger
}

// New creates a hub. Pass nil logger for default.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[int64]map[string]*Handle),
		logger: logger.With("component", "hub"),
	}
}

// Join registers a handle under a room. Joining twice with the same handle
// is a no-op.
func (h *Hub) Join(roomID int64, handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handles, ok := h.rooms[roomID]
	if !ok {
		handles = make(map[string]*Handle)
		h.rooms[roomID] = handles
	}
	if _, ok := handles[handle.id]; ok {
		return
	}
	handles[handle.id] = handle

	h.logger.Debug("handle joined",
		"room_id", roomID,
		"handle_id", handle.id)
}

// Leave deregisters a handle and closes it. Leaving a room the handle is not
// in is a no-op. Empty room entries are dropped; the room itself persists in
// storage regardless.
func (h *Hub) Leave(roomID int64, handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, handle.id)
}

// Broadcast delivers payload to every handle currently joined to the room.
// Best-effort: a handle that cannot accept the payload is removed as an
// implicit disconnect without affecting delivery to the others, and nothing
// is ever raised to the caller. The write lock is held for the whole fan-out
// so broadcasts to one room reach every surviving handle in a single order;
// Send never blocks, so the critical section stays short.
func (h *Hub) Broadcast(roomID int64, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []string
	for id, handle := range h.rooms[roomID] {
		if !handle.Send(payload) {
			dead = append(dead, id)
		}
	}

	for _, id := range dead {
		h.logger.Debug("removing unresponsive handle",
			"room_id", roomID,
			"handle_id", id)
		h.removeLocked(roomID, id)
	}
}

// RoomSize returns how many handles are currently joined to the room
func (h *Hub) RoomSize(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Close removes and closes every handle in every room
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, handles := range h.rooms {
		for id := range handles {
			h.removeLocked(roomID, id)
		}
	}
	h.logger.Debug("hub closed")
}

// removeLocked removes and closes one handle. Caller holds h.mu.
func (h *Hub) removeLocked(roomID int64, handleID string) {
	handles, ok := h.rooms[roomID]
	if !ok {
		return
	}
	handle, ok := handles[handleID]
	if !ok {
		return
	}
	delete(handles, handleID)
	handle.Close()

	if len(handles) == 0 {
		delete(h.rooms, roomID)
	}
}
