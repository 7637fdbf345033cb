package llmrunner

import (
	"context"
	"fmt"
)

// MockProvider is a deterministic, network-free Provider for development and
// tests. It never reasons about tool results; it either echoes a
// pre-scripted response per turn or, once the script runs out, calls
// complete_task with a canned summary of the conversation so far.
type MockProvider struct {
	// Responses are returned in order, one per call to Generate. When
	// exhausted, Generate falls back to a synthetic complete_task call.
	Responses []GenerateResponse
	calls     int
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if m.calls < len(m.Responses) {
		resp := m.Responses[m.calls]
		m.calls++
		return resp, nil
	}
	m.calls++

	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}

	return GenerateResponse{
		ToolCalls: []ToolCall{{
			CallID: fmt.Sprintf("mock-%d", m.calls),
			Name:   "complete_task",
			Args:   map[string]any{"result": fmt.Sprintf("[mock] processed %d messages, %d tools available, last user message: %s", len(req.Messages), len(req.Tools), truncate(lastUser, 200))},
		}},
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
