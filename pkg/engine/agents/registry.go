package agents

import (
	"sort"
	"strings"
	"sync"

	"AgentEngine/pkg/engine/policy"
)

// DynamicPolicySource tags the per-agent rules the registry installs so they
// can be told apart from user-authored TOML rules and from confirmation-time
// "proceed always" rules.
const DynamicPolicySource = "AgentRegistry (Dynamic)"

// PrioritySubagentTool is the effective_priority given to a registry-installed
// agent rule: high enough to win over the bundled default policies but low
// enough that a user-authored rule for the same tool name always wins.
const PrioritySubagentTool = 1.05

// Registry tracks agent definitions and keeps the policy engine in sync: each
// enabled, locally-registered agent becomes an allow-by-default (or
// ask-by-default, for remote agents) tool the scheduler can dispatch.
type Registry struct {
	mu              sync.RWMutex
	policyEngine    *policy.Engine
	agents          map[string]Definition
	allDefinitions  map[string]Definition
}

// New creates an agent registry bound to policyEngine.
func New(policyEngine *policy.Engine) *Registry {
	return &Registry{
		policyEngine:   policyEngine,
		agents:         make(map[string]Definition),
		allDefinitions: make(map[string]Definition),
	}
}

// Register records definition. Returns false (and does not install a policy
// rule) if the definition is malformed or disabled.
func (r *Registry) Register(def Definition) bool {
	if strings.TrimSpace(def.Name) == "" || strings.TrimSpace(def.Description) == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.allDefinitions[def.Name] = def
	if !def.Enabled {
		return false
	}
	r.agents[def.Name] = def
	r.addAgentPolicy(def)
	return true
}

// addAgentPolicy installs a dynamic rule for the agent's name, unless a
// user-authored (non-dynamic) rule already targets it.
func (r *Registry) addAgentPolicy(def Definition) {
	if r.policyEngine.HasRuleForTool(def.Name, true) {
		return
	}
	r.policyEngine.RemoveRulesForTool(def.Name, DynamicPolicySource)

	decision := policy.AskUser
	if def.Kind == Local {
		decision = policy.Allow
	}
	name := def.Name
	r.policyEngine.AddRule(policy.Rule{
		ToolName: &name,
		Decision: decision,
		Priority: PrioritySubagentTool,
		Source:   DynamicPolicySource,
	})
}

// Get returns an enabled agent definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.agents[name]
	return def, ok
}

// GetDiscovered returns a definition by name whether or not it is enabled.
func (r *Registry) GetDiscovered(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.allDefinitions[name]
	return def, ok
}

// All returns every enabled agent definition.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.agents))
	for _, def := range r.agents {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted names of every enabled agent.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every registered agent definition. Policy rules already
// installed for those agents stay in the policy engine.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]Definition)
	r.allDefinitions = make(map[string]Definition)
}
