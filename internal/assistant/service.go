// ABOUTME: Assistant send flow shared by the WebSocket and HTTP surfaces
// ABOUTME: Record first, then act: the user entry survives any gateway failure

package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/campus-chat/internal/store"
)

// Service runs the send-to-assistant flow: persist the user entry, assemble
// the prompt, call the gateway, persist the assistant entry with its usage.
type Service struct {
	store     store.Store
	gateway   CompletionGateway
	assembler *Assembler
	logger    *slog.Logger
}

// NewService creates an assistant service. Pass nil logger for default.
func NewService(st store.Store, gateway CompletionGateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		gateway:   gateway,
		assembler: NewAssembler(st),
		logger:    logger.With("component", "assistant"),
	}
}

// RecordUserMessage persists the user's entry for a send. This happens
// before any gateway work so a later failure never loses the user's input.
func (s *Service) RecordUserMessage(ctx context.Context, conv *store.AIConversation, content string) (*store.AIMessage, error) {
	msg := &store.AIMessage{
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        content,
	}
	if err := s.store.AppendAIMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	s.logger.Debug("user message recorded",
		"conversation_id", conv.ID,
		"message_id", msg.ID)
	return msg, nil
}

// RelatedRoomContext returns the related-room block that a send with the
// given options would splice into the system prompt. Empty when the
// conversation has no link, the room is gone, or there is nothing to splice.
func (s *Service) RelatedRoomContext(ctx context.Context, conv *store.AIConversation, opts ContextOptions) (string, error) {
	if conv.RelatedRoomID == nil {
		return "", nil
	}
	return s.assembler.relatedRoomBlock(ctx, conv, opts.clampedLimit())
}

// Reply assembles the prompt, calls the completion gateway, and persists the
// assistant entry carrying the completion content and usage counters. On
// gateway failure nothing is persisted and the error is returned; the user
// entry recorded earlier stands, which lets the user retry without losing
// their input.
func (s *Service) Reply(ctx context.Context, conv *store.AIConversation, opts ContextOptions) (*store.AIMessage, error) {
	prompt, err := s.assembler.Assemble(ctx, conv, opts)
	if err != nil {
		return nil, err
	}

	completion, err := s.gateway.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion gateway: %w", err)
	}

	msg := &store.AIMessage{
		ConversationID:   conv.ID,
		Role:             store.RoleAssistant,
		Content:          completion.Content,
		PromptTokens:     &completion.Usage.PromptTokens,
		CompletionTokens: &completion.Usage.CompletionTokens,
		TotalTokens:      &completion.Usage.TotalTokens,
	}
	if err := s.store.AppendAIMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording assistant message: %w", err)
	}

	s.logger.Debug("assistant message recorded",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"total_tokens", completion.Usage.TotalTokens)
	return msg, nil
}
