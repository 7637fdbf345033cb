package agents

import (
	"testing"

	"AgentEngine/pkg/engine/bus"
	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

// testConfig is a minimal Config (scheduler.Config + AgentNames) for exercising
// the sub-agent tool without a full runtime.Config.
type testConfig struct {
	registry   *tools.Registry
	policy     *policy.Engine
	messageBus *bus.Bus
	agentNames []string
}

func newTestConfig() *testConfig {
	p := policy.NewEngine()
	return &testConfig{
		registry:   tools.DefaultRegistry("."),
		policy:     p,
		messageBus: bus.New(p),
	}
}

func (c *testConfig) WorkspaceRoot() string         { return "." }
func (c *testConfig) PolicyEngine() *policy.Engine  { return c.policy }
func (c *testConfig) ToolRegistry() *tools.Registry { return c.registry }
func (c *testConfig) MessageBus() *bus.Bus          { return c.messageBus }
func (c *testConfig) Interactive() bool             { return true }
func (c *testConfig) AgentNames() []string          { return c.agentNames }

func turnWithCompleteTask(result string) []any {
	return []any{
		map[string]any{"name": "complete_task", "args": map[string]any{"result": result}},
	}
}

func TestSubagentTool_ValidateParams_RequiresNonEmptyTurns(t *testing.T) {
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true})
	if err := tool.ValidateParams(map[string]any{}); err == "" {
		t.Fatalf("expected missing turns to be rejected")
	}
	if err := tool.ValidateParams(map[string]any{"turns": []any{}}); err == "" {
		t.Fatalf("expected empty turns array to be rejected")
	}
}

func TestSubagentTool_Execute_CompletesOnFirstMatchingTurn(t *testing.T) {
	cfg := newTestConfig()
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true})

	result := tool.Execute(cfg, map[string]any{"turns": []any{turnWithCompleteTask("found it")}})
	if result.Error != "" {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	display, ok := result.ReturnDisplay.(map[string]any)
	if !ok || display["result"] != "found it" {
		t.Fatalf("expected completion result to surface in ReturnDisplay, got %+v", result.ReturnDisplay)
	}
}

func TestSubagentTool_Execute_RunsIntermediateToolsBeforeCompleting(t *testing.T) {
	cfg := newTestConfig()
	echoName := "echo"
	cfg.policy.AddRule(policy.Rule{ToolName: &echoName, Decision: policy.Allow, Priority: 1})
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true, ToolNames: []string{"echo"}})

	turns := []any{
		[]any{map[string]any{"name": "echo", "args": map[string]any{"text": "hi"}}},
		turnWithCompleteTask("done after echo"),
	}
	result := tool.Execute(cfg, map[string]any{"turns": turns})
	if result.Error != "" {
		t.Fatalf("unexpected error: %v", result.Error)
	}
}

func TestSubagentTool_Execute_UnauthorizedToolIsProtocolError(t *testing.T) {
	cfg := newTestConfig()
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true, ToolNames: []string{"echo"}})

	turns := []any{
		[]any{map[string]any{"name": "run_shell_command", "args": map[string]any{"command": "ls"}}},
	}
	result := tool.Execute(cfg, map[string]any{"turns": turns})
	if result.Error == "" {
		t.Fatalf("expected a protocol error for a tool outside the agent's allowed set")
	}
}

func TestSubagentTool_Execute_NoCompletionIsProtocolError(t *testing.T) {
	cfg := newTestConfig()
	echoName := "echo"
	cfg.policy.AddRule(policy.Rule{ToolName: &echoName, Decision: policy.Allow, Priority: 1})
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true, ToolNames: []string{"echo"}})

	turns := []any{
		[]any{map[string]any{"name": "echo", "args": map[string]any{"text": "hi"}}},
	}
	result := tool.Execute(cfg, map[string]any{"turns": turns})
	if result.Error == "" {
		t.Fatalf("expected an error when the subagent never calls complete_task")
	}
}

func TestSubagentTool_Execute_CompletionSchemaViolationFails(t *testing.T) {
	cfg := newTestConfig()
	tool := NewSubagentTool(Definition{
		Name: "researcher", Description: "x", Kind: Local, Enabled: true,
		CompletionSchema: map[string]any{"type": "string", "minLength": 100},
	})

	result := tool.Execute(cfg, map[string]any{"turns": []any{turnWithCompleteTask("short")}})
	if result.Error == "" {
		t.Fatalf("expected a completion schema violation to fail the call")
	}
}

func TestSubagentTool_Execute_CannotSelfInvokeThroughAllowedTools(t *testing.T) {
	cfg := newTestConfig()
	cfg.agentNames = []string{"researcher"}
	tool := NewSubagentTool(Definition{Name: "researcher", Description: "x", Kind: Local, Enabled: true})

	turns := []any{
		[]any{map[string]any{"name": "researcher", "args": map[string]any{}}},
	}
	result := tool.Execute(cfg, map[string]any{"turns": turns})
	if result.Error == "" {
		t.Fatalf("expected self-invocation through the plain tool list to be unauthorized")
	}
}
