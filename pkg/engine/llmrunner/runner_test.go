package llmrunner

import (
	"context"
	"testing"

	"AgentEngine/pkg/engine/bus"
	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

// testConfig is a minimal Config (scheduler.Config + AgentNames) for
// exercising the agent loop without a full runtime.Config.
type testConfig struct {
	registry   *tools.Registry
	policy     *policy.Engine
	messageBus *bus.Bus
}

func newTestConfig() *testConfig {
	p := policy.NewEngine()
	return &testConfig{
		registry:   tools.NewRegistry(),
		policy:     p,
		messageBus: bus.New(p),
	}
}

func (c *testConfig) WorkspaceRoot() string         { return "." }
func (c *testConfig) PolicyEngine() *policy.Engine  { return c.policy }
func (c *testConfig) ToolRegistry() *tools.Registry { return c.registry }
func (c *testConfig) MessageBus() *bus.Bus          { return c.messageBus }
func (c *testConfig) Interactive() bool             { return true }
func (c *testConfig) AgentNames() []string          { return nil }

func TestRun_CompletesOnFirstTurn(t *testing.T) {
	cfg := newTestConfig()
	provider := &MockProvider{Responses: []GenerateResponse{
		{ToolCalls: []ToolCall{{CallID: "1", Name: "complete_task", Args: map[string]any{"result": "all done"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "do the thing", MaxTurns: 3})
	if !result.Success || result.Result != "all done" || result.Turns != 1 {
		t.Fatalf("expected a first-turn success, got %+v", result)
	}
}

func TestRun_DispatchesToolCallsThenCompletes(t *testing.T) {
	cfg := newTestConfig()
	cfg.registry.MustRegister(tools.NewEchoTool())
	name := "echo"
	cfg.policy.AddRule(policy.Rule{ToolName: &name, Decision: policy.Allow, Priority: 1})

	provider := &MockProvider{Responses: []GenerateResponse{
		{ToolCalls: []ToolCall{{CallID: "1", Name: "echo", Args: map[string]any{"text": "hi"}}}},
		{ToolCalls: []ToolCall{{CallID: "2", Name: "complete_task", Args: map[string]any{"result": "echoed"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "echo then finish", MaxTurns: 5})
	if !result.Success || result.Turns != 2 {
		t.Fatalf("expected success after dispatching a tool call, got %+v", result)
	}
}

func TestRun_NoToolCallsTriggersRecovery(t *testing.T) {
	cfg := newTestConfig()
	provider := &MockProvider{Responses: []GenerateResponse{
		{Content: "I am thinking out loud with no tool calls."},
		{ToolCalls: []ToolCall{{CallID: "1", Name: "complete_task", Args: map[string]any{"result": "recovered"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "ponder", MaxTurns: 3, AllowRecovery: true})
	if !result.Success || result.Result != "recovered" {
		t.Fatalf("expected recovery turn to salvage the session, got %+v", result)
	}
}

func TestRun_NoToolCallsWithoutRecoveryFails(t *testing.T) {
	cfg := newTestConfig()
	provider := &MockProvider{Responses: []GenerateResponse{{Content: "no calls"}}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "ponder", MaxTurns: 3, AllowRecovery: false})
	if result.Success {
		t.Fatalf("expected failure when recovery is disabled and the model returns no tool calls")
	}
}

func TestRun_PolicyDenyEndsSessionWithFailure(t *testing.T) {
	cfg := newTestConfig()
	cfg.registry.MustRegister(tools.NewEchoTool())
	name := "echo"
	cfg.policy.AddRule(policy.Rule{ToolName: &name, Decision: policy.Deny, Priority: 1})

	provider := &MockProvider{Responses: []GenerateResponse{
		{ToolCalls: []ToolCall{{CallID: "1", Name: "echo", Args: map[string]any{"text": "hi"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "echo", MaxTurns: 3, AllowRecovery: false})
	if result.Success {
		t.Fatalf("expected a policy-denied tool call to fail the session")
	}
}

func TestRun_CompletionSchemaViolationFailsWithoutRecovery(t *testing.T) {
	cfg := newTestConfig()
	provider := &MockProvider{Responses: []GenerateResponse{
		{ToolCalls: []ToolCall{{CallID: "1", Name: "complete_task", Args: map[string]any{"result": "short"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{
		UserPrompt:       "finish",
		MaxTurns:         3,
		CompletionSchema: map[string]any{"type": "string", "minLength": 100},
	})
	if result.Success {
		t.Fatalf("expected a completion schema violation to fail the session")
	}
}

func TestRun_MaxTurnsExhaustedWithoutRecoveryFails(t *testing.T) {
	cfg := newTestConfig()
	cfg.registry.MustRegister(tools.NewEchoTool())
	name := "echo"
	cfg.policy.AddRule(policy.Rule{ToolName: &name, Decision: policy.Allow, Priority: 1})

	provider := &MockProvider{Responses: []GenerateResponse{
		{ToolCalls: []ToolCall{{CallID: "1", Name: "echo", Args: map[string]any{"text": "again"}}}},
		{ToolCalls: []ToolCall{{CallID: "2", Name: "echo", Args: map[string]any{"text": "again"}}}},
	}}

	result := Run(context.Background(), cfg, provider, RunOptions{UserPrompt: "loop", MaxTurns: 2, AllowRecovery: false})
	if result.Success || result.Error != recoveryReasonMaxTurns {
		t.Fatalf("expected max-turns exhaustion to fail with the standard reason, got %+v", result)
	}
}
