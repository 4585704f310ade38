// ABOUTME: SQLite implementation of room, membership, and message persistence
// ABOUTME: Append-only message log with server-assigned ids and timestamps

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateRoom inserts a new room and assigns its ID and creation time
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *Room) error {
	room.CreatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (name, created_at) VALUES (?, ?)`,
		room.Name, room.CreatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}

	room.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading room id: %w", err)
	}

	s.logger.Debug("room created", "room_id", room.ID, "name", room.Name)
	return nil
}

// GetRoom retrieves a room by ID
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*Room, error) {
	var room Room
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &room.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning room row: %w", err)
	}

	room.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms the user is currently a member of
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.created_at
		 FROM rooms r
		 JOIN room_members m ON m.room_id = r.id
		 WHERE m.user_id = ?
		 ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rooms []*Room
	for rows.Next() {
		var room Room
		var createdAt string
		if err := rows.Scan(&room.ID, &room.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		room.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// DeleteRoom removes a room, its membership rows, and its messages.
// Conversations referencing the room keep existing with the link nulled;
// the ON DELETE SET NULL constraint on ai_conversations handles that inside
// the same statement, so a crash can't leave a dangling reference.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("room deleted", "room_id", id)
	return nil
}

// AddMember adds a user to a room. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_members (room_id, user_id, added_at)
		 VALUES (?, ?, ?)`,
		roomID, userID, now().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("adding member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room. Removing a non-member is a no-op.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	return nil
}

// IsMember reports whether the user is currently a member of the room.
// Always queries live state; admission decisions must not use cached results.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying membership: %w", err)
	}
	return true, nil
}

// ListMembers returns the current members of a room ordered by username
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.user_type, u.password_hash, u.created_at
		 FROM users u
		 JOIN room_members m ON m.user_id = u.id
		 WHERE m.room_id = ?
		 ORDER BY u.username`, roomID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return users, nil
}

// AppendMessage persists a room message with a server-assigned id and
// timestamp and returns it with the sender attached. The room must exist;
// every failure is surfaced to the caller.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID, senderID int64, content string) (*Message, error) {
	sender, err := s.GetUser(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("resolving sender: %w", err)
	}

	msg := &Message{
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: now(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender_id, content, timestamp)
		 VALUES (?, ?, ?, ?)`,
		roomID, senderID, content, msg.Timestamp.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	s.logger.Debug("message appended",
		"room_id", roomID,
		"message_id", msg.ID,
		"sender", sender.Username)
	return msg, nil
}

// RoomMessages returns every message in the room in chronological order
func (s *SQLiteStore) RoomMessages(ctx context.Context, roomID int64) ([]*Message, error) {
	return s.queryMessages(ctx,
		`SELECT m.id, m.room_id, m.content, m.timestamp,
		        u.id, u.username, u.email, u.user_type, u.password_hash, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.room_id = ?
		 ORDER BY m.id ASC`, roomID)
}

// RecentMessages returns at most limit messages from the room, chronological
// order, most recent last. Creation order is fixed by the autoincrement id.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error) {
	msgs, err := s.queryMessages(ctx,
		`SELECT m.id, m.room_id, m.content, m.timestamp,
		        u.id, u.username, u.email, u.user_type, u.password_hash, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.room_id = ?
		 ORDER BY m.id DESC
		 LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, err
	}

	// The query walks backwards from the newest; re-reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		var sender User
		var timestamp, userType, userCreatedAt string

		err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Content, &timestamp,
			&sender.ID, &sender.Username, &sender.Email, &userType,
			&sender.PasswordHash, &userCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Timestamp, err = parseTime(timestamp)
		if err != nil {
			return nil, err
		}
		sender.UserType = UserType(userType)
		sender.CreatedAt, err = parseTime(userCreatedAt)
		if err != nil {
			return nil, err
		}
		msg.Sender = &sender
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return msgs, nil
}
