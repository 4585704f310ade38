// Package store provides persistence for campus-chat entities.
//
// # Overview
//
// The store is an append-only message log plus the account, room, and AI
// conversation records around it. A single Store interface fronts the SQLite
// implementation so handlers and tests depend on behavior, not on SQL.
//
// # Entities
//
//   - User: account with a role tag (owner, student, staff)
//   - Room: named group with a persistent member set
//   - Message: immutable room message with a server-assigned timestamp
//   - AIConversation: single-owner chat, optionally linked to a room
//   - AIMessage: conversation entry with a closed role set and optional
//     token usage counters on assistant entries
//
// # Ordering
//
// Messages are append-only. The autoincrement id fixes creation order, and
// timestamps are assigned from the store clock in UTC at append time, so
// within one container timestamps are non-decreasing in creation order.
// RecentMessages walks backwards from the newest row and re-reverses, so
// callers always see chronological order with the most recent entry last.
//
// # Deletion semantics
//
// Deleting a room cascades its messages and membership rows but only nulls
// the related_room_id link on AI conversations that referenced it. Deleting
// a conversation cascades its messages.
package store
