// Package runtime wires together the policy engine, tool registry, message
// bus, and agent registry into the single configuration object the
// scheduler, sub-agent tool, and agent loop all depend on.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"AgentEngine/pkg/engine/agents"
	"AgentEngine/pkg/engine/bus"
	"AgentEngine/pkg/engine/metrics"
	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

// Options configures a new Config. Loaded from YAML at startup (see
// options.go) or constructed directly by tests.
type Options struct {
	TargetDir           string
	Interactive         bool
	PlanEnabled         bool
	ApprovalMode        policy.ApprovalMode
	LoadDefaultPolicies bool
	PolicyPaths         []string

	// MetricsRegistry, if set, turns on Prometheus instrumentation
	// registered against that registry. Left nil, Config.Metrics() returns
	// nil and the scheduler's metrics hooks are no-ops.
	MetricsRegistry *prometheus.Registry
}

// Config is the concrete runtime configuration: it owns the policy engine,
// the tool registry, the message bus, and the agent registry, and satisfies
// every narrow interface those collaborators depend on (tools.ExecConfig,
// scheduler.Config, agents.Config).
type Config struct {
	targetDir         string
	interactive       bool
	planEnabled       bool
	approvalMode      policy.ApprovalMode
	approvedPlanPath  string
	plansDir          string

	policyEngine  *policy.Engine
	toolRegistry  *tools.Registry
	messageBus    *bus.Bus
	agentRegistry *agents.Registry
	metrics       *metrics.Collectors
}

// New builds a Config from opts: resolves target_dir, creates the plans
// directory when plan mode is enabled, loads bundled default policies plus
// any TOML policy files configured, and wires the policy engine into a fresh
// message bus and agent registry.
func New(opts Options) (*Config, error) {
	absTarget, err := filepath.Abs(opts.TargetDir)
	if err != nil {
		return nil, fmt.Errorf("resolve target dir: %w", err)
	}

	c := &Config{
		targetDir:    absTarget,
		interactive:  opts.Interactive,
		planEnabled:  opts.PlanEnabled,
		approvalMode: opts.ApprovalMode,
		plansDir:     filepath.Join(absTarget, ".gemini", "tmp", "plans"),
		policyEngine: policy.NewEngine(),
		toolRegistry: tools.DefaultRegistry(absTarget),
	}
	if c.approvalMode == "" {
		c.approvalMode = policy.ModeDefault
	}

	if c.planEnabled {
		if err := os.MkdirAll(c.plansDir, 0755); err != nil {
			return nil, fmt.Errorf("create plans dir: %w", err)
		}
	}

	if opts.LoadDefaultPolicies {
		result := policy.LoadDefaultPolicies()
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("failed to load default policy files:\n%s", strings.Join(result.Errors, "\n"))
		}
		for _, rule := range result.Rules {
			c.policyEngine.AddRule(rule)
		}
	}

	if len(opts.PolicyPaths) > 0 {
		result := policy.LoadFromTOML(opts.PolicyPaths, func(string) int { return 10 })
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("failed to load policy files:\n%s", strings.Join(result.Errors, "\n"))
		}
		for _, rule := range result.Rules {
			c.policyEngine.AddRule(rule)
		}
	}

	c.policyEngine.SetApprovalMode(c.approvalMode)
	c.policyEngine.SetNonInteractive(!c.interactive)

	c.messageBus = bus.New(c.policyEngine)
	c.agentRegistry = agents.New(c.policyEngine)
	if opts.MetricsRegistry != nil {
		c.metrics = metrics.New(opts.MetricsRegistry)
	}

	return c, nil
}

// Metrics satisfies scheduler.MetricsSource. Returns nil when no
// MetricsRegistry was supplied at construction, in which case the
// scheduler's instrumentation hooks are no-ops.
func (c *Config) Metrics() *metrics.Collectors { return c.metrics }

// WorkspaceRoot satisfies tools.ExecConfig.
func (c *Config) WorkspaceRoot() string { return c.targetDir }

// PolicyEngine satisfies scheduler.Config.
func (c *Config) PolicyEngine() *policy.Engine { return c.policyEngine }

// ToolRegistry satisfies scheduler.Config.
func (c *Config) ToolRegistry() *tools.Registry { return c.toolRegistry }

// MessageBus satisfies scheduler.Config.
func (c *Config) MessageBus() *bus.Bus { return c.messageBus }

// Interactive satisfies scheduler.Config.
func (c *Config) Interactive() bool { return c.interactive }

// SetInteractive flips interactivity and keeps the policy engine's
// non-interactive collapse in sync.
func (c *Config) SetInteractive(interactive bool) {
	c.interactive = interactive
	c.policyEngine.SetNonInteractive(!interactive)
}

// AgentRegistry returns the config's agent registry.
func (c *Config) AgentRegistry() *agents.Registry { return c.agentRegistry }

// AgentNames satisfies agents.Config.
func (c *Config) AgentNames() []string { return c.agentRegistry.Names() }

// RegisterAgent registers def with the agent registry and, if enabled,
// exposes it as a callable tool on the tool registry.
func (c *Config) RegisterAgent(def agents.Definition) bool {
	if !c.agentRegistry.Register(def) {
		return false
	}
	return c.toolRegistry.Register(agents.NewSubagentTool(def)) == nil
}

// SetApprovalMode updates the active approval mode on both the config and
// the underlying policy engine.
func (c *Config) SetApprovalMode(mode policy.ApprovalMode) {
	c.approvalMode = mode
	c.policyEngine.SetApprovalMode(mode)
}

// ApprovalMode returns the active approval mode.
func (c *Config) ApprovalMode() policy.ApprovalMode { return c.approvalMode }

// PlansDir returns the directory approved plans must live under.
func (c *Config) PlansDir() string { return c.plansDir }

// ApprovedPlanPath returns the path of the most recently approved plan, if
// any.
func (c *Config) ApprovedPlanPath() string { return c.approvedPlanPath }

// EnterPlanMode switches the approval mode to plan. It changes only the
// mode: rules scoped to other modes stop applying, and tool calls still go
// through the normal policy check.
func (c *Config) EnterPlanMode() {
	c.SetApprovalMode(policy.ModePlan)
}

// ExitPlanMode validates planPath lies inside PlansDir, exists, and is
// non-empty, then transitions to target (default or autoEdit only) and
// records the approved plan path.
func (c *Config) ExitPlanMode(planPath string, target policy.ApprovalMode) error {
	if target == policy.ModePlan || target == policy.ModeYolo {
		return fmt.Errorf("exit_plan_mode target must be default or autoEdit, got %q", target)
	}

	absPlan, err := filepath.Abs(planPath)
	if err != nil {
		return fmt.Errorf("invalid plan path: %w", err)
	}
	absPlansDir, err := filepath.Abs(c.plansDir)
	if err != nil {
		return fmt.Errorf("invalid plans dir: %w", err)
	}
	if !strings.HasPrefix(absPlan, absPlansDir+string(filepath.Separator)) && absPlan != absPlansDir {
		return fmt.Errorf("plan path %q is outside %q", planPath, c.plansDir)
	}

	info, err := os.Stat(absPlan)
	if err != nil {
		return fmt.Errorf("plan file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("plan path %q is a directory", planPath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("plan file %q is empty", planPath)
	}

	c.approvedPlanPath = absPlan
	c.SetApprovalMode(target)
	return nil
}
