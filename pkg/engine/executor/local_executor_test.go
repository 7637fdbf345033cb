package executor

import "testing"

func TestProcessFunctionCalls_NoCallsIsError(t *testing.T) {
	turn := ProcessFunctionCalls(nil, nil, false)
	if turn.TerminateReason != ReasonErrorNoCompleteTask {
		t.Fatalf("expected ReasonErrorNoCompleteTask for an empty turn, got %v", turn.TerminateReason)
	}
}

func TestProcessFunctionCalls_CompleteTaskMarksGoal(t *testing.T) {
	calls := []FunctionCall{{Name: "read_file", Args: map[string]any{}}, {Name: CompleteTaskToolName, Args: map[string]any{"result": "done"}}}
	turn := ProcessFunctionCalls(calls, nil, true)
	if !turn.TaskCompleted || turn.TerminateReason != ReasonGoal || turn.SubmittedOutput != "done" {
		t.Fatalf("expected task completed with goal reason, got %+v", turn)
	}
}

func TestProcessFunctionCalls_MissingResultArgumentIsError(t *testing.T) {
	calls := []FunctionCall{{Name: CompleteTaskToolName, Args: map[string]any{}}}
	turn := ProcessFunctionCalls(calls, nil, true)
	if turn.TaskCompleted || turn.TerminateReason != ReasonError || len(turn.Errors) == 0 {
		t.Fatalf("expected an error for a complete_task call missing result, got %+v", turn)
	}
}

func TestProcessFunctionCalls_BlankResultIsError(t *testing.T) {
	calls := []FunctionCall{{Name: CompleteTaskToolName, Args: map[string]any{"result": "   "}}}
	turn := ProcessFunctionCalls(calls, nil, true)
	if turn.TaskCompleted {
		t.Fatalf("expected a blank result string to be rejected")
	}
}

func TestProcessFunctionCalls_DuplicateCompleteTaskIgnoredAfterFirst(t *testing.T) {
	calls := []FunctionCall{
		{Name: CompleteTaskToolName, Args: map[string]any{"result": "first"}},
		{Name: CompleteTaskToolName, Args: map[string]any{"result": "second"}},
	}
	turn := ProcessFunctionCalls(calls, nil, true)
	if turn.SubmittedOutput != "first" {
		t.Fatalf("expected the first complete_task call to win, got %q", turn.SubmittedOutput)
	}
	if len(turn.Errors) != 1 {
		t.Fatalf("expected one error noting the duplicate call, got %v", turn.Errors)
	}
}

func TestProcessFunctionCalls_UnauthorizedToolIsError(t *testing.T) {
	allowed := map[string]bool{"read_file": true}
	calls := []FunctionCall{{Name: "run_shell_command", Args: map[string]any{}}}
	turn := ProcessFunctionCalls(calls, allowed, false)
	if turn.TerminateReason != ReasonError || len(turn.Errors) != 1 {
		t.Fatalf("expected an unauthorized tool call error, got %+v", turn)
	}
}

func TestProcessFunctionCalls_NoCompleteTaskWithoutEnforcementIsClean(t *testing.T) {
	calls := []FunctionCall{{Name: "read_file", Args: map[string]any{}}}
	turn := ProcessFunctionCalls(calls, nil, false)
	if turn.TerminateReason != ReasonNone || len(turn.Errors) != 0 {
		t.Fatalf("expected a clean intermediate turn, got %+v", turn)
	}
}

func TestProcessFunctionCalls_NoCompleteTaskWithEnforcementIsError(t *testing.T) {
	calls := []FunctionCall{{Name: "read_file", Args: map[string]any{}}}
	turn := ProcessFunctionCalls(calls, nil, true)
	if turn.TerminateReason != ReasonErrorNoCompleteTask {
		t.Fatalf("expected enforced completion to error when nothing completed the task, got %+v", turn)
	}
}

func TestBuildAllowedToolNames_ExcludesAgentNamesAndIntersectsConfigured(t *testing.T) {
	available := []string{"read_file", "write_file", "researcher"}
	agentNames := map[string]bool{"researcher": true}

	allowed := BuildAllowedToolNames(available, agentNames, "", nil)
	if allowed["researcher"] {
		t.Fatalf("expected agent names to be excluded from the generic allow-list")
	}
	if !allowed["read_file"] || !allowed["write_file"] {
		t.Fatalf("expected non-agent tools to remain allowed")
	}

	configured := []string{"read_file"}
	scoped := BuildAllowedToolNames(available, agentNames, "", configured)
	if len(scoped) != 1 || !scoped["read_file"] {
		t.Fatalf("expected configured allow-list to further intersect, got %+v", scoped)
	}
}

func TestBuildAllowedToolNames_SelfNameSurvivesWhenConfiguredListsIt(t *testing.T) {
	available := []string{"read_file", "researcher", "reviewer"}
	agentNames := map[string]bool{"researcher": true, "reviewer": true}

	configured := []string{"read_file", "researcher"}
	scoped := BuildAllowedToolNames(available, agentNames, "researcher", configured)
	if !scoped["researcher"] {
		t.Fatalf("expected the sub-agent's own name to survive when configured explicitly lists it, got %+v", scoped)
	}
	if scoped["reviewer"] {
		t.Fatalf("expected a different agent's name to stay excluded even if available, got %+v", scoped)
	}
	if !scoped["read_file"] {
		t.Fatalf("expected a plain configured tool name to remain allowed, got %+v", scoped)
	}

	unconfigured := BuildAllowedToolNames(available, agentNames, "researcher", nil)
	if unconfigured["researcher"] {
		t.Fatalf("expected self-name to stay excluded with no configured restriction, got %+v", unconfigured)
	}
	if unconfigured["reviewer"] {
		t.Fatalf("expected a different agent's name to stay excluded with no configured restriction, got %+v", unconfigured)
	}
}
