package llmrunner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"AgentEngine/pkg/engine/agents"
	"AgentEngine/pkg/engine/completion"
	"AgentEngine/pkg/engine/executor"
	"AgentEngine/pkg/engine/scheduler"
)

// Config is everything the agent loop needs beyond a Provider: a scheduler
// it can dispatch tool calls through and the set of agent names to exclude
// from the generic tool list.
type Config = agents.Config

// Result is what Run returns once a session settles, one way or another.
type Result struct {
	Success bool
	Result  string
	Error   string
	Turns   int
}

// RunOptions parameterizes one Run call.
type RunOptions struct {
	UserPrompt       string
	SystemPrompt     string
	MaxTurns         int
	CompletionSchema map[string]any
	AllowRecovery    bool
}

const recoveryReasonProtocol = "no tool calls returned"
const recoveryReasonExecutorError = "executor reported an error"
const recoveryReasonIncompleteTurn = "no executable calls and no completion"
const recoveryReasonMaxTurns = "maximum turns exhausted"
const recoveryReasonCompletionSchema = "completion schema validation failed"

// Run drives a multi-turn conversation: it builds the allowed tool set and
// schema list, calls provider.Generate once per turn, dispatches tool calls
// through the scheduler, appends tool-role messages, and returns once
// complete_task succeeds, an unrecoverable protocol violation occurs, or
// MaxTurns is exhausted.
func Run(ctx context.Context, config Config, provider Provider, opts RunOptions) Result {
	allowed := buildAllowedToolNames(config)
	toolSchemas := buildToolSchemas(config, allowed)

	messages := []Message{}
	if opts.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: opts.UserPrompt})

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for turn := 1; turn <= maxTurns; turn++ {
		response, err := provider.Generate(ctx, GenerateRequest{Messages: messages, Tools: toolSchemas})
		if err != nil {
			return Result{Success: false, Error: fmt.Sprintf("provider error: %v", err), Turns: turn}
		}

		messages = append(messages, Message{Role: "assistant", Content: response.Content, ToolCalls: response.ToolCalls})

		if len(response.ToolCalls) == 0 {
			if result, ok := tryRecover(ctx, config, provider, messages, opts, recoveryReasonProtocol, turn); ok {
				return result
			}
			return Result{Success: false, Error: "model returned no tool calls", Turns: turn}
		}

		calls := toExecutorCalls(response.ToolCalls)
		processed := executor.ProcessFunctionCalls(calls, allowed, false)
		if len(processed.Errors) > 0 {
			reason := fmt.Sprintf("%s: %v", recoveryReasonExecutorError, processed.Errors)
			if result, ok := tryRecover(ctx, config, provider, messages, opts, reason, turn); ok {
				return result
			}
			return Result{Success: false, Error: fmt.Sprintf("executor errors: %v", processed.Errors), Turns: turn}
		}

		requests, callsByID := buildRequests(response.ToolCalls, allowed, turn)
		var completedCalls []scheduler.CompletedCall
		if len(requests) > 0 {
			completedCalls = scheduler.New(config).Schedule(requests)
		}

		failureReason := ""
		for _, cc := range completedCalls {
			messages = append(messages, toolResultMessage(cc, callsByID[cc.Request.CallID]))
			if (cc.Status == scheduler.StatusError || cc.Status == scheduler.StatusCancelled) && failureReason == "" {
				failureReason = cc.Response.Error
			}
		}

		if failureReason != "" {
			if result, ok := tryRecover(ctx, config, provider, messages, opts, failureReason, turn); ok {
				return result
			}
			return Result{Success: false, Error: failureReason, Turns: turn}
		}

		if processed.TaskCompleted {
			if opts.CompletionSchema != nil {
				if schemaErr := completion.Validate(processed.SubmittedOutput, opts.CompletionSchema); schemaErr != "" {
					if result, ok := tryRecover(ctx, config, provider, messages, opts, recoveryReasonCompletionSchema, turn); ok {
						return result
					}
					return Result{Success: false, Error: schemaErr, Turns: turn}
				}
			}
			return Result{Success: true, Result: processed.SubmittedOutput, Turns: turn}
		}

		if len(requests) == 0 {
			if result, ok := tryRecover(ctx, config, provider, messages, opts, recoveryReasonIncompleteTurn, turn); ok {
				return result
			}
			return Result{Success: false, Error: recoveryReasonIncompleteTurn, Turns: turn}
		}
	}

	if result, ok := tryRecover(ctx, config, provider, messages, opts, recoveryReasonMaxTurns, maxTurns); ok {
		return result
	}
	return Result{Success: false, Error: recoveryReasonMaxTurns, Turns: maxTurns}
}

// tryRecover sends one extra message asking the model to call complete_task
// immediately and nothing else. It only ever runs once per Run call's
// terminal failure — it never recurses into another recovery attempt.
func tryRecover(ctx context.Context, config Config, provider Provider, messages []Message, opts RunOptions, reason string, turn int) (Result, bool) {
	if !opts.AllowRecovery {
		return Result{}, false
	}

	recoveryMessages := append(append([]Message{}, messages...), Message{
		Role: "user",
		Content: fmt.Sprintf(
			"Execution limit reached (%s). Final recovery turn: call `complete_task` immediately with your best available result. Do not call any other tools.",
			reason,
		),
	})

	completeTaskSchema := []ToolSchema{completeTaskToolSchema()}
	response, err := provider.Generate(ctx, GenerateRequest{Messages: recoveryMessages, Tools: completeTaskSchema})
	if err != nil {
		return Result{}, false
	}

	if len(response.ToolCalls) != 1 || response.ToolCalls[0].Name != executor.CompleteTaskToolName {
		return Result{}, false
	}

	result, ok := response.ToolCalls[0].Args["result"]
	if !ok {
		return Result{}, false
	}
	submitted := fmt.Sprintf("%v", result)
	if s, isStr := result.(string); isStr {
		submitted = s
	}

	if opts.CompletionSchema != nil {
		if schemaErr := completion.Validate(submitted, opts.CompletionSchema); schemaErr != "" {
			return Result{}, false
		}
	}

	return Result{Success: true, Result: submitted, Turns: turn + 1}, true
}

func buildAllowedToolNames(config Config) map[string]bool {
	available := config.ToolRegistry().Names()
	agentNames := make(map[string]bool)
	for _, name := range config.AgentNames() {
		agentNames[name] = true
	}
	return executor.BuildAllowedToolNames(available, agentNames, "", nil)
}

func buildToolSchemas(config Config, allowed map[string]bool) []ToolSchema {
	schemas := make([]ToolSchema, 0, len(allowed)+1)
	for name := range allowed {
		tool, ok := config.ToolRegistry().Get(name)
		if !ok {
			continue
		}
		schemas = append(schemas, ToolSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.ParametersSchema(),
		})
	}
	schemas = append(schemas, completeTaskToolSchema())
	return schemas
}

func completeTaskToolSchema() ToolSchema {
	return ToolSchema{
		Name:        executor.CompleteTaskToolName,
		Description: "Signal that the task is finished and report the result.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"result": map[string]any{"type": "string", "description": "The final result to report."},
			},
			"required": []string{"result"},
		},
	}
}

func toExecutorCalls(calls []ToolCall) []executor.FunctionCall {
	out := make([]executor.FunctionCall, len(calls))
	for i, c := range calls {
		out[i] = executor.FunctionCall{Name: c.Name, Args: c.Args, CallID: c.CallID}
	}
	return out
}

func buildRequests(calls []ToolCall, allowed map[string]bool, turn int) ([]scheduler.RequestInfo, map[string]ToolCall) {
	var requests []scheduler.RequestInfo
	byID := make(map[string]ToolCall, len(calls))
	for _, c := range calls {
		if c.Name == executor.CompleteTaskToolName || !allowed[c.Name] {
			continue
		}
		callID := c.CallID
		if callID == "" {
			callID = uuid.NewString()
		}
		req := scheduler.RequestInfo{
			Name:        c.Name,
			Args:        c.Args,
			CallID:      callID,
			SchedulerID: "root",
			PromptID:    fmt.Sprintf("turn-%d", turn),
		}
		requests = append(requests, req)
		byID[callID] = c
	}
	return requests, byID
}

func toolResultMessage(cc scheduler.CompletedCall, call ToolCall) Message {
	payload := map[string]any{
		"status":         string(cc.Status),
		"result_display": cc.Response.ResultDisplay,
		"error":          cc.Response.Error,
		"error_type":     cc.Response.ErrorType,
	}
	body, err := json.Marshal(payload)
	content := string(body)
	if err != nil {
		content = fmt.Sprintf("%v", payload)
	}
	return Message{Role: "tool", Content: content, ToolCallID: cc.Request.CallID}
}
