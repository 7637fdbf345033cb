// Package executor implements the pure turn-analysis step that decides
// whether a batch of function calls produced by a model ends the turn: did
// the model call complete_task with a usable result, or did it misbehave.
package executor

import "fmt"

// CompleteTaskToolName is the synthetic tool name the agent loop always
// injects into a model's schema list to let it signal it is done.
const CompleteTaskToolName = "complete_task"

// TerminateReason classifies why a turn ended.
type TerminateReason string

const (
	ReasonGoal                 TerminateReason = "goal"
	ReasonError                TerminateReason = "error"
	ReasonErrorNoCompleteTask  TerminateReason = "error_no_complete_task_call"
	ReasonNone                 TerminateReason = ""
)

// FunctionCall is one call a model requested during a turn.
type FunctionCall struct {
	Name   string
	Args   map[string]any
	CallID string
}

// ProcessedTurn is the result of analyzing one turn's function calls.
type ProcessedTurn struct {
	TaskCompleted    bool
	SubmittedOutput  string
	TerminateReason  TerminateReason
	Errors           []string
}

func noCompleteTaskError() string {
	return fmt.Sprintf("Agent stopped calling tools but did not call '%s' to finalize the session.", CompleteTaskToolName)
}

// UnauthorizedToolError formats the standard error for a tool call outside
// an agent's allowed set.
func UnauthorizedToolError(name string) string {
	return fmt.Sprintf("Unauthorized tool call: '%s' is not available to this agent.", name)
}

// ProcessFunctionCalls analyzes one turn's function calls against an
// optional allow-list. allowedToolNames == nil means every non-complete_task
// call is authorized. enforceCompleteTask controls whether a turn with no
// errors and no complete_task call is reported as an error
// (error_no_complete_task_call) or as a clean "nothing happened yet" turn
// (ReasonNone) — the agent loop and sub-agent tool both pass false so a
// turn that merely ran intermediate tools doesn't look like a failure.
func ProcessFunctionCalls(calls []FunctionCall, allowedToolNames map[string]bool, enforceCompleteTask bool) ProcessedTurn {
	if len(calls) == 0 {
		return ProcessedTurn{
			TerminateReason: ReasonErrorNoCompleteTask,
			Errors:          []string{noCompleteTaskError()},
		}
	}

	var errs []string
	var submittedOutput string
	taskCompleted := false

	for _, call := range calls {
		if call.Name != CompleteTaskToolName {
			if allowedToolNames != nil && !allowedToolNames[call.Name] {
				errs = append(errs, UnauthorizedToolError(call.Name))
			}
			continue
		}

		if taskCompleted {
			errs = append(errs, "Task already marked complete in this turn. Ignoring duplicate call.")
			continue
		}

		result, ok := call.Args["result"]
		if !ok || result == nil || isBlankString(result) {
			errs = append(errs, `Missing required "result" argument. You must provide your findings when calling complete_task.`)
			continue
		}

		submittedOutput = stringifyResult(result)
		taskCompleted = true
	}

	if taskCompleted {
		return ProcessedTurn{TaskCompleted: true, SubmittedOutput: submittedOutput, TerminateReason: ReasonGoal, Errors: errs}
	}

	if len(errs) > 0 {
		return ProcessedTurn{TerminateReason: ReasonError, Errors: errs}
	}

	if enforceCompleteTask {
		return ProcessedTurn{TerminateReason: ReasonErrorNoCompleteTask, Errors: []string{noCompleteTaskError()}}
	}
	return ProcessedTurn{TerminateReason: ReasonNone}
}

func isBlankString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// BuildAllowedToolNames excludes agent names from the generic tool list (so
// an agent cannot self-invoke via the plain name list), then intersects with
// configured if it is non-nil. selfName is the invoking sub-agent's own
// name: it is kept only when configured is non-nil, so it survives the
// intersection below exactly when configured explicitly lists it. Every
// other agent name stays excluded regardless of what configured lists.
func BuildAllowedToolNames(available []string, agentNames map[string]bool, selfName string, configured []string) map[string]bool {
	allowed := make(map[string]bool, len(available))
	for _, name := range available {
		if agentNames[name] && (name != selfName || configured == nil) {
			continue
		}
		allowed[name] = true
	}

	if configured == nil {
		return allowed
	}

	intersected := make(map[string]bool, len(configured))
	for _, name := range configured {
		if allowed[name] {
			intersected[name] = true
		}
	}
	return intersected
}
