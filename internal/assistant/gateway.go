// ABOUTME: CompletionGateway boundary for the external completion service
// ABOUTME: Defines the prompt message list in, content plus usage out contract

package assistant

import (
	"context"

	"github.com/2389/campus-chat/internal/store"
)

// PromptMessage is one entry in the ordered list handed to the completion
// service
type PromptMessage struct {
	Role    store.Role
	Content string
}

// Usage carries the token accounting returned with a completion
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the completion service's answer to a prompt
type Completion struct {
	Content string
	Usage   Usage
}

// CompletionGateway issues a completion request against the external
// service. Implementations own their timeout policy and surface it as an
// ordinary error.
type CompletionGateway interface {
	Complete(ctx context.Context, messages []PromptMessage) (*Completion, error)
}
