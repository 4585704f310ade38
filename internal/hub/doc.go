// Package hub provides the in-process broadcast fabric for live room
// connections.
//
// # Overview
//
// Each connected session owns a Handle: a buffered outbound channel plus a
// closed flag. The Hub maps room IDs to the handles currently joined, and
// Broadcast copies a serialized event to each of them.
//
// The hub is owned by the process and injected into each session rather than
// reached as ambient global state, so tests get clean per-test instances.
//
// # Delivery semantics
//
//   - Best-effort: a slow or dead handle never blocks delivery to others
//   - A handle whose buffer is full is removed as an implicit disconnect
//   - Broadcasts to one room are delivered to all live handles in a single
//     relative order
//   - Send after close is a no-op, not an error
package hub
