// ABOUTME: Deterministic prompt assembly for AI conversations
// ABOUTME: Splices a bounded window of related-room history into the system prompt

package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/campus-chat/internal/store"
)

const (
	// DefaultContextLimit is how many related-room messages are spliced in
	// when the caller doesn't say
	DefaultContextLimit = 20

	// MaxContextLimit caps the related-room window regardless of what the
	// caller asks for
	MaxContextLimit = 100

	// contextHeader introduces the related-room block appended to the
	// system prompt
	contextHeader = "\n\nContext from related chat:\n"
)

// ContextOptions controls whether and how much related-room history is
// spliced into the prompt
type ContextOptions struct {
	IncludeRelatedRoom bool
	RoomMessageLimit   int
}

// clampedLimit returns the effective message limit
func (o ContextOptions) clampedLimit() int {
	switch {
	case o.RoomMessageLimit <= 0:
		return DefaultContextLimit
	case o.RoomMessageLimit > MaxContextLimit:
		return MaxContextLimit
	}
	return o.RoomMessageLimit
}

// AssemblerStore is what prompt assembly needs from storage
type AssemblerStore interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error)
	ConversationMessages(ctx context.Context, conversationID int64) ([]*store.AIMessage, error)
}

// Assembler builds the ordered message list handed to the completion
// gateway. For a fixed conversation state, related-room state, and limit the
// output is fully deterministic.
type Assembler struct {
	store AssemblerStore
}

// NewAssembler creates an assembler backed by the given store
func NewAssembler(st AssemblerStore) *Assembler {
	return &Assembler{store: st}
}

// Assemble returns the prompt for a send on the given conversation: the
// system prompt (with the optional related-room splice) followed by the
// conversation's full user/assistant history in chronological order.
// Persisted system rows are excluded from replay; only the freshly computed
// system entry is used.
func (a *Assembler) Assemble(ctx context.Context, conv *store.AIConversation, opts ContextOptions) ([]PromptMessage, error) {
	system := conv.SystemPrompt

	if opts.IncludeRelatedRoom && conv.RelatedRoomID != nil {
		block, err := a.relatedRoomBlock(ctx, conv, opts.clampedLimit())
		if err != nil {
			return nil, err
		}
		system += block
	}

	messages := []PromptMessage{{Role: store.RoleSystem, Content: system}}

	history, err := a.store.ConversationMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}
	for _, msg := range history {
		if msg.Role != store.RoleUser && msg.Role != store.RoleAssistant {
			continue
		}
		messages = append(messages, PromptMessage{Role: msg.Role, Content: msg.Content})
	}

	return messages, nil
}

// relatedRoomBlock formats the most recent room messages as a context block,
// or returns the empty string when there is nothing to splice. Membership is
// re-checked on every call: the room may have been deleted or the owner
// removed since the link was created.
func (a *Assembler) relatedRoomBlock(ctx context.Context, conv *store.AIConversation, limit int) (string, error) {
	member, err := a.store.IsMember(ctx, *conv.RelatedRoomID, conv.UserID)
	if err != nil {
		return "", fmt.Errorf("checking related room membership: %w", err)
	}
	if !member {
		return "", nil
	}

	msgs, err := a.store.RecentMessages(ctx, *conv.RelatedRoomID, limit)
	if err != nil {
		return "", fmt.Errorf("loading related room messages: %w", err)
	}
	if len(msgs) == 0 {
		// No header for an empty room
		return "", nil
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, msg := range msgs {
		b.WriteString(msg.Sender.Username)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
