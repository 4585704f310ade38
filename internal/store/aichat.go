// ABOUTME: SQLite implementation of AI conversation and AI message persistence
// ABOUTME: Enforces the closed role set and keeps token usage on assistant rows

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateConversation inserts a new AI conversation and assigns its ID and
// timestamps. A related room, if set, must exist.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *AIConversation) error {
	if conv.SystemPrompt == "" {
		conv.SystemPrompt = "You are a helpful assistant."
	}
	conv.CreatedAt = now()
	conv.UpdatedAt = conv.CreatedAt

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_conversations (user_id, related_room_id, title, system_prompt, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.UserID, nullInt64(conv.RelatedRoomID), conv.Title, conv.SystemPrompt,
		conv.CreatedAt.Format(timeFormat), conv.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	conv.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("conversation created",
		"conversation_id", conv.ID,
		"user_id", conv.UserID)
	return nil
}

// GetConversation retrieves an AI conversation by ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*AIConversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, related_room_id, title, system_prompt, created_at, updated_at
		 FROM ai_conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// ListConversationsForUser returns the user's conversations, most recently
// updated first
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID int64) ([]*AIConversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, related_room_id, title, system_prompt, created_at, updated_at
		 FROM ai_conversations
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*AIConversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes a conversation and cascades its messages
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("conversation deleted", "conversation_id", id)
	return nil
}

// UpdateSystemPrompt replaces the conversation's system prompt
func (s *SQLiteStore) UpdateSystemPrompt(ctx context.Context, id int64, prompt string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ai_conversations SET system_prompt = ?, updated_at = ? WHERE id = ?`,
		prompt, now().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("updating system prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAIMessage persists an AI message with a server-assigned id and
// timestamp. Roles outside {system, user, assistant} are rejected here so a
// bad tag never reaches the table.
func (s *SQLiteStore) AppendAIMessage(ctx context.Context, msg *AIMessage) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, msg.Role)
	}

	msg.Timestamp = now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_messages (conversation_id, role, content, timestamp, prompt_tokens, completion_tokens, total_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, string(msg.Role), msg.Content,
		msg.Timestamp.Format(timeFormat),
		nullInt(msg.PromptTokens), nullInt(msg.CompletionTokens), nullInt(msg.TotalTokens))
	if err != nil {
		return fmt.Errorf("appending ai message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading ai message id: %w", err)
	}

	// Conversations sort by recent activity
	if _, err := s.db.ExecContext(ctx,
		`UPDATE ai_conversations SET updated_at = ? WHERE id = ?`,
		msg.Timestamp.Format(timeFormat), msg.ConversationID); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	s.logger.Debug("ai message appended",
		"conversation_id", msg.ConversationID,
		"message_id", msg.ID,
		"role", msg.Role)
	return nil
}

// ConversationMessages returns every message in the conversation in
// chronological order
func (s *SQLiteStore) ConversationMessages(ctx context.Context, conversationID int64) ([]*AIMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, timestamp, prompt_tokens, completion_tokens, total_tokens
		 FROM ai_messages
		 WHERE conversation_id = ?
		 ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying ai messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*AIMessage
	for rows.Next() {
		var msg AIMessage
		var role, timestamp string
		var prompt, completion, total sql.NullInt64

		err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&timestamp, &prompt, &completion, &total)
		if err != nil {
			return nil, fmt.Errorf("scanning ai message row: %w", err)
		}

		msg.Role = Role(role)
		msg.Timestamp, err = parseTime(timestamp)
		if err != nil {
			return nil, err
		}
		msg.PromptTokens = intPtr(prompt)
		msg.CompletionTokens = intPtr(completion)
		msg.TotalTokens = intPtr(total)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ai message rows: %w", err)
	}
	return msgs, nil
}

// ConversationUsage sums the token counters across the conversation's
// assistant messages. Returns ErrNotFound for an unknown conversation.
func (s *SQLiteStore) ConversationUsage(ctx context.Context, conversationID int64) (*UsageTotals, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ai_conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var totals UsageTotals
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(total_tokens), 0)
		 FROM ai_messages WHERE conversation_id = ?`, conversationID).
		Scan(&totals.PromptTokens, &totals.CompletionTokens, &totals.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("summing usage: %w", err)
	}
	return &totals, nil
}

func scanConversation(row rowScanner) (*AIConversation, error) {
	var conv AIConversation
	var relatedRoom sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&conv.ID, &conv.UserID, &relatedRoom, &conv.Title,
		&conv.SystemPrompt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation row: %w", err)
	}

	if relatedRoom.Valid {
		id := relatedRoom.Int64
		conv.RelatedRoomID = &id
	}
	conv.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	conv.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
