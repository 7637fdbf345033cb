// Package llmrunner drives a multi-turn agent session against a model
// provider, dispatching tool calls through the scheduler and enforcing the
// complete_task termination protocol.
package llmrunner

import "context"

// ToolCall is one function call a provider's response asked for.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Message is one entry of the conversation sent to/received from a provider.
// Role follows the usual "system" | "user" | "assistant" | "tool" shape.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
	ToolCallID string // set on role "tool" responses
}

// ToolSchema describes one callable function in provider-neutral form.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerateRequest is what Provider.Generate receives for one turn.
type GenerateRequest struct {
	Messages []Message
	Tools    []ToolSchema
}

// GenerateResponse is a provider's reply to one turn.
type GenerateResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider abstracts over a concrete model backend (OpenAI-compatible HTTP
// API, a mock for tests, etc). Generate blocks on network I/O, hence the
// context.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}
