// Package assistant runs AI conversations against an external completion
// service.
//
// # Overview
//
// The package owns two boundaries:
//
//   - Assembler: builds the ordered {role, content} prompt for a send — the
//     conversation's system prompt, an optional splice of recent related-room
//     history, then the full user/assistant history. Deterministic for a
//     fixed conversation state, room state, and limit.
//   - CompletionGateway: the external service that turns a prompt into
//     generated text plus token usage. The OpenAI implementation applies its
//     own request timeout and surfaces it as an ordinary error.
//
// # Failure asymmetry
//
// Service.RecordUserMessage runs before any gateway work and its result is
// never rolled back. Service.Reply persists an assistant entry only when the
// gateway succeeds. A failed completion therefore leaves exactly the user's
// own entry behind, so a retry costs nothing.
//
// The conversation's entire user/assistant history is replayed on every
// send with no truncation or summarization. Prompt size grows without bound
// with conversation length; capping it is a deliberate product decision,
// not something this package does silently.
package assistant
