// Package policy implements prioritized tool-call governance: a sorted rule
// set evaluated under an approval mode, with shell-specific redirection
// handling and non-interactive collapse.
package policy

import "regexp"

// ApprovalMode gates which mode-scoped rules apply and how shell
// redirection is treated.
type ApprovalMode string

const (
	ModeDefault  ApprovalMode = "default"
	ModeAutoEdit ApprovalMode = "autoEdit"
	ModeYolo     ApprovalMode = "yolo"
	ModePlan     ApprovalMode = "plan"
)

// Decision is the outcome of a policy check.
type Decision string

const (
	Allow    Decision = "allow"
	Deny     Decision = "deny"
	AskUser  Decision = "ask_user"
)

// Rule is one entry in the prioritized rule set. Rules are sorted
// descending by Priority and evaluated in that order; the first match wins.
//
// Priorities use a tier+sub-priority encoding: effective = tier +
// raw_priority/1000, raw_priority in [0,999]. Built-in default tier is 1,
// agent-registry dynamic tier is ~1.0x (see agents.PrioritySubagentTool),
// confirmation-granted rules sit at a fixed 2.95.
type Rule struct {
	ToolName        *string // nil = catch-all; suffix "__*" = wildcard prefix match
	Decision        Decision
	Priority        float64
	Modes           []ApprovalMode // empty/nil => applies in all modes
	ArgsPattern     *regexp.Regexp
	AllowRedirection bool
	DenyMessage     string
	Source          string
}

const (
	// DynamicConfirmedSource tags a rule added after a user answered
	// "always" to a confirmation prompt.
	DynamicConfirmedSource = "Dynamic (Confirmed)"
	// PriorityConfirmed is the effective priority given to rules added via
	// DynamicConfirmedSource.
	PriorityConfirmed = 2.95
)

// CheckInput is what the engine needs to reach a decision.
type CheckInput struct {
	Name       string
	Args       map[string]any
	ServerName string
}

// CheckResult carries the decision plus, when one matched, the rule
// responsible for it (nil means the engine default applied).
type CheckResult struct {
	Decision Decision
	Rule     *Rule
}
