// ABOUTME: OpenAI chat-completions implementation of the CompletionGateway
// ABOUTME: Maps roles and usage counters between store types and the OpenAI API

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/2389/campus-chat/internal/store"
)

// ErrNoCompletion is returned when the API answers without any choices
var ErrNoCompletion = errors.New("completion service returned no choices")

// OpenAIGateway implements CompletionGateway against the OpenAI
// chat-completions API
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIGateway creates a gateway for the given API key and model.
// A non-positive timeout disables the per-request deadline.
func NewOpenAIGateway(apiKey, model string, timeout time.Duration) *OpenAIGateway {
	return &OpenAIGateway{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  slog.Default().With("component", "openai"),
	}
}

// Complete issues a chat completion request and returns the first choice
// with its usage counters
func (g *OpenAIGateway) Complete(ctx context.Context, messages []PromptMessage) (*Completion, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    apiRole(msg.Role),
			Content: msg.Content,
		})
	}

	// Correlates the request/response pair in the logs
	requestID := uuid.NewString()
	g.logger.Debug("completion requested",
		"request_id", requestID,
		"model", g.model,
		"prompt_messages", len(messages))

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoCompletion
	}

	g.logger.Debug("completion received",
		"request_id", requestID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func apiRole(role store.Role) string {
	switch role {
	case store.RoleSystem:
		return openai.ChatMessageRoleSystem
	case store.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// Ensure OpenAIGateway implements the gateway interface
var _ CompletionGateway = (*OpenAIGateway)(nil)
