package agents

import (
	"fmt"
	"sort"
	"strings"

	"AgentEngine/pkg/engine/completion"
	"AgentEngine/pkg/engine/executor"
	"AgentEngine/pkg/engine/scheduler"
	"AgentEngine/pkg/engine/tools"
)

// Config is the slice of runtime configuration the sub-agent tool needs
// beyond the plain tools.ExecConfig every tool gets: it must be able to spin
// up its own recursive Scheduler and see the full set of registered agent
// names so it can exclude them from its own allowed-tool computation.
type Config interface {
	scheduler.Config
	AgentNames() []string
}

// SubagentTool is a tool named after an agent definition. Calling it
// recursively re-enters the scheduler with a registry restricted to that
// agent's allowed tools, simulating the multi-turn conversation the caller
// supplies as "turns".
type SubagentTool struct {
	def Definition
}

// NewSubagentTool wraps def as a callable tool.
func NewSubagentTool(def Definition) *SubagentTool {
	return &SubagentTool{def: def}
}

func (t *SubagentTool) Name() string        { return t.def.Name }
func (t *SubagentTool) Description() string { return t.def.Description }

func (t *SubagentTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"turns": map[string]any{
				"type":        "array",
				"description": "One array of {name, args} tool calls per simulated turn.",
			},
		},
		"required": []string{"turns"},
	}
}

func (t *SubagentTool) ValidateParams(args map[string]any) string {
	turns, ok := args["turns"].([]any)
	if !ok || len(turns) == 0 {
		return "`turns` must be a non-empty array of turn tool calls."
	}
	for i, rawTurn := range turns {
		turn, ok := rawTurn.([]any)
		if !ok {
			return fmt.Sprintf("turn #%d must be an array of tool calls.", i+1)
		}
		for j, rawCall := range turn {
			call, ok := rawCall.(map[string]any)
			if !ok {
				return fmt.Sprintf("turn #%d call #%d must be an object.", i+1, j+1)
			}
			name, nameOK := call["name"].(string)
			if !nameOK || strings.TrimSpace(name) == "" {
				return fmt.Sprintf("turn #%d call #%d: `name` must be a non-empty string.", i+1, j+1)
			}
			if _, argsOK := call["args"].(map[string]any); !argsOK {
				return fmt.Sprintf("turn #%d call #%d: `args` must be an object.", i+1, j+1)
			}
		}
	}
	return ""
}

func (t *SubagentTool) Execute(config tools.ExecConfig, args map[string]any) tools.Result {
	if validationErr := t.ValidateParams(args); validationErr != "" {
		return tools.Result{LLMContent: validationErr, ReturnDisplay: "Error", Error: validationErr}
	}

	fullConfig, ok := config.(Config)
	if !ok {
		msg := fmt.Sprintf("Subagent '%s' cannot run: runtime configuration does not support recursive scheduling.", t.def.Name)
		return tools.Result{LLMContent: msg, ReturnDisplay: "Error", Error: msg}
	}

	rawTurns := args["turns"].([]any)

	allowed := t.buildAllowedToolNames(fullConfig)
	agentRegistry := t.buildAgentToolRegistry(fullConfig, allowed)
	schedulerID := "subagent:" + t.def.Name

	for turnIndex, rawTurn := range rawTurns {
		calls := toFunctionCalls(rawTurn.([]any))

		processed := executor.ProcessFunctionCalls(calls, allowed, false)
		if len(processed.Errors) > 0 {
			message := fmt.Sprintf("Subagent '%s' protocol error on turn #%d: %s", t.def.Name, turnIndex+1, strings.Join(processed.Errors, "; "))
			return tools.Result{LLMContent: message, ReturnDisplay: "Subagent protocol error", Error: message}
		}

		var requests []scheduler.RequestInfo
		for _, call := range calls {
			if call.Name == executor.CompleteTaskToolName || !allowed[call.Name] {
				continue
			}
			req := scheduler.NewRequestInfo(call.Name, call.Args)
			requests = append(requests, req)
		}

		if len(requests) > 0 {
			sched := scheduler.NewWithRegistry(fullConfig, agentRegistry)
			for i := range requests {
				requests[i].SchedulerID = schedulerID
			}
			completedCalls := sched.Schedule(requests)
			for _, cc := range completedCalls {
				if cc.Status == scheduler.StatusError || cc.Status == scheduler.StatusCancelled {
					errMsg := cc.Response.Error
					if errMsg == "" {
						errMsg = "Unknown error during subagent tool execution."
					}
					message := fmt.Sprintf("Subagent '%s' tool execution failed on turn #%d: %s: %s", t.def.Name, turnIndex+1, cc.Request.Name, errMsg)
					return tools.Result{LLMContent: message, ReturnDisplay: "Subagent execution failed", Error: message}
				}
			}
		}

		if processed.TaskCompleted {
			result := processed.SubmittedOutput
			if t.def.CompletionSchema != nil {
				if schemaErr := completion.Validate(result, t.def.CompletionSchema); schemaErr != "" {
					return tools.Result{LLMContent: schemaErr, ReturnDisplay: "Subagent completion schema violation", Error: schemaErr}
				}
			}
			return tools.Result{
				LLMContent:    fmt.Sprintf("Subagent '%s' finished successfully with result: %s", t.def.Name, result),
				ReturnDisplay: map[string]any{"agent": t.def.Name, "turn": turnIndex + 1, "result": result},
			}
		}
	}

	message := fmt.Sprintf("Subagent '%s' stopped without calling '%s'.", t.def.Name, executor.CompleteTaskToolName)
	return tools.Result{LLMContent: message, ReturnDisplay: "Subagent protocol error", Error: message}
}

func (t *SubagentTool) buildAllowedToolNames(config Config) map[string]bool {
	available := config.ToolRegistry().Names()
	agentNames := make(map[string]bool)
	for _, name := range config.AgentNames() {
		agentNames[name] = true
	}
	agentNames[t.def.Name] = true

	return executor.BuildAllowedToolNames(available, agentNames, t.def.Name, t.def.ToolNames)
}

func (t *SubagentTool) buildAgentToolRegistry(config Config, allowed map[string]bool) *tools.Registry {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := tools.NewRegistry()
	full := config.ToolRegistry()
	for _, name := range names {
		if tool, ok := full.Get(name); ok {
			registry.MustRegister(tool)
		}
	}
	return registry
}

func toFunctionCalls(rawTurn []any) []executor.FunctionCall {
	calls := make([]executor.FunctionCall, 0, len(rawTurn))
	for _, rawCall := range rawTurn {
		call, ok := rawCall.(map[string]any)
		if !ok {
			continue
		}
		name, nameOK := call["name"].(string)
		callArgs, argsOK := call["args"].(map[string]any)
		if !nameOK || !argsOK {
			continue
		}
		calls = append(calls, executor.FunctionCall{Name: name, Args: callArgs})
	}
	return calls
}
