package policy

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// redirectionPattern matches shell redirection operators or command
// substitution inside a run_shell_command "command" argument. It is
// coarse: it looks for >, >>, <, |, `, or $( not preceded by a backslash.
// Quoting is not tracked, so an operator inside a quoted string also
// matches.
var redirectionPattern = regexp.MustCompile("(^|[^\\\\])(>>|>|<|\\||`|\\$\\()")

const shellToolName = "run_shell_command"

// Engine evaluates tool-call requests against a prioritized rule set.
//
// All mutation methods and Check are safe for concurrent use: per spec
// §5, an embedding host may run multiple scheduler batches concurrently
// even though a single batch is always sequential.
type Engine struct {
	mu            sync.RWMutex
	rules         []Rule
	mode          ApprovalMode
	nonInteractive bool
	defaultDecision Decision
}

// NewEngine returns an Engine with no rules, default approval mode, and
// interactive confirmation enabled.
func NewEngine() *Engine {
	return &Engine{
		mode:            ModeDefault,
		defaultDecision: AskUser,
	}
}

// SetApprovalMode changes the mode used by subsequent Check calls.
func (e *Engine) SetApprovalMode(mode ApprovalMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

// ApprovalMode returns the engine's current mode.
func (e *Engine) ApprovalMode() ApprovalMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetNonInteractive toggles the ask_user -> deny collapse.
func (e *Engine) SetNonInteractive(nonInteractive bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nonInteractive = nonInteractive
}

// NonInteractive reports whether the engine is running without a human.
func (e *Engine) NonInteractive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nonInteractive
}

// AddRule inserts a rule and re-sorts the rule set descending by priority.
// Ties keep their relative insertion order (a stable sort).
func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

// RemoveRulesForTool deletes every rule whose ToolName matches name. If
// source is non-empty, only rules tagged with that source are removed.
func (e *Engine) RemoveRulesForTool(name string, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.rules[:0]
	for _, r := range e.rules {
		matchesName := r.ToolName != nil && *r.ToolName == name
		matchesSource := source == "" || r.Source == source
		if matchesName && matchesSource {
			continue
		}
		kept = append(kept, r)
	}
	e.rules = kept
}

// HasRuleForTool reports whether any rule targets name exactly. When
// ignoreDynamic is true, rules sourced from a dynamic registration
// (DynamicConfirmedSource or any source ending "(Dynamic)") are skipped,
// so callers can test for user-authored configuration specifically.
func (e *Engine) HasRuleForTool(name string, ignoreDynamic bool) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if r.ToolName == nil || *r.ToolName != name {
			continue
		}
		if ignoreDynamic && (r.Source == DynamicConfirmedSource || strings.HasSuffix(r.Source, "(Dynamic)")) {
			continue
		}
		return true
	}
	return false
}

// Check runs the matching algorithm in priority-descending order and
// applies the shell-redirection downgrade and non-interactive collapse.
func (e *Engine) Check(in CheckInput) CheckResult {
	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	mode := e.mode
	nonInteractive := e.nonInteractive
	defaultDecision := e.defaultDecision
	e.mu.RUnlock()

	result := evaluateRules(rules, mode, in)
	if result.Decision == "" {
		result = CheckResult{Decision: defaultDecision}
	}

	result = applyShellRedirection(result, mode, in)
	result = applyNonInteractiveCollapse(result, nonInteractive)
	return result
}

func evaluateRules(rules []Rule, mode ApprovalMode, in CheckInput) CheckResult {
	var argsJSON []byte
	for i := range rules {
		r := &rules[i]

		if len(r.Modes) > 0 && !containsMode(r.Modes, mode) {
			continue
		}

		if r.ToolName != nil {
			if !matchesToolName(*r.ToolName, in.Name) {
				continue
			}
		}

		if r.ArgsPattern != nil {
			if argsJSON == nil {
				argsJSON = stableJSON(in.Args)
			}
			if !r.ArgsPattern.Match(argsJSON) {
				continue
			}
		}

		return CheckResult{Decision: r.Decision, Rule: r}
	}
	return CheckResult{}
}

func containsMode(modes []ApprovalMode, mode ApprovalMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// matchesToolName implements exact match, or — for a "<mcp>__*" pattern —
// prefix match against "<mcp>__".
func matchesToolName(pattern, name string) bool {
	if strings.HasSuffix(pattern, "__*") {
		prefix := pattern[:len(pattern)-1] // "<mcp>__"
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}

// stableJSON renders args as compact JSON with sorted keys. encoding/json
// already sorts map[string]any keys, which gives us the canonical
// rendering the spec calls for without a custom serializer.
func stableJSON(args map[string]any) []byte {
	b, err := json.Marshal(args)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func applyShellRedirection(result CheckResult, mode ApprovalMode, in CheckInput) CheckResult {
	if result.Decision != Allow || in.Name != shellToolName {
		return result
	}
	command, _ := in.Args["command"].(string)
	if command == "" || !redirectionPattern.MatchString(command) {
		return result
	}
	if mode == ModeAutoEdit || mode == ModeYolo {
		return result
	}
	if result.Rule != nil && result.Rule.AllowRedirection {
		return result
	}
	return CheckResult{Decision: AskUser, Rule: result.Rule}
}

const nonInteractiveDenyMessage = "This action requires user confirmation, which is unavailable in non-interactive mode."

func applyNonInteractiveCollapse(result CheckResult, nonInteractive bool) CheckResult {
	if !nonInteractive || result.Decision != AskUser {
		return result
	}
	denied := Rule{Decision: Deny, DenyMessage: nonInteractiveDenyMessage}
	if result.Rule != nil {
		denied = *result.Rule
		denied.Decision = Deny
		if denied.DenyMessage == "" {
			denied.DenyMessage = nonInteractiveDenyMessage
		}
	}
	return CheckResult{Decision: Deny, Rule: &denied}
}
