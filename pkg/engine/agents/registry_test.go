package agents

import (
	"testing"

	"AgentEngine/pkg/engine/policy"
)

func TestRegister_RejectsMalformedDefinitions(t *testing.T) {
	r := New(policy.NewEngine())

	if r.Register(Definition{Name: "", Description: "x", Enabled: true}) {
		t.Fatalf("expected an empty name to be rejected")
	}
	if r.Register(Definition{Name: "x", Description: "", Enabled: true}) {
		t.Fatalf("expected an empty description to be rejected")
	}
}

func TestRegister_DisabledDefinitionIsRecordedButNotEnabled(t *testing.T) {
	r := New(policy.NewEngine())
	ok := r.Register(Definition{Name: "researcher", Description: "does research", Enabled: false})
	if ok {
		t.Fatalf("expected Register to return false for a disabled definition")
	}
	if _, found := r.Get("researcher"); found {
		t.Fatalf("expected disabled agent to be absent from Get")
	}
	if _, found := r.GetDiscovered("researcher"); !found {
		t.Fatalf("expected disabled agent to still be discoverable")
	}
}

func TestRegister_LocalAgentGetsAllowRule(t *testing.T) {
	p := policy.NewEngine()
	r := New(p)
	r.Register(Definition{Name: "researcher", Description: "does research", Kind: Local, Enabled: true})

	result := p.Check(policy.CheckInput{Name: "researcher"})
	if result.Decision != policy.Allow {
		t.Fatalf("expected a local agent to default to Allow, got %v", result.Decision)
	}
}

func TestRegister_RemoteAgentGetsAskUserRule(t *testing.T) {
	p := policy.NewEngine()
	r := New(p)
	r.Register(Definition{Name: "remote-helper", Description: "delegates out of process", Kind: Remote, Enabled: true})

	result := p.Check(policy.CheckInput{Name: "remote-helper"})
	if result.Decision != policy.AskUser {
		t.Fatalf("expected a remote agent to default to AskUser, got %v", result.Decision)
	}
}

func TestRegister_DoesNotOverrideUserAuthoredRule(t *testing.T) {
	p := policy.NewEngine()
	name := "researcher"
	p.AddRule(policy.Rule{ToolName: &name, Decision: policy.Deny, Priority: 1, Source: "manual"})

	r := New(p)
	r.Register(Definition{Name: "researcher", Description: "does research", Kind: Local, Enabled: true})

	result := p.Check(policy.CheckInput{Name: "researcher"})
	if result.Decision != policy.Deny {
		t.Fatalf("expected the user-authored Deny rule to take precedence, got %v", result.Decision)
	}
}

func TestNames_ReturnsOnlyEnabledAgentsSortedByName(t *testing.T) {
	r := New(policy.NewEngine())
	r.Register(Definition{Name: "b-agent", Description: "x", Enabled: true})
	r.Register(Definition{Name: "a-agent", Description: "x", Enabled: true})
	r.Register(Definition{Name: "c-agent", Description: "x", Enabled: false})

	names := r.Names()
	if len(names) != 2 || names[0] != "a-agent" || names[1] != "b-agent" {
		t.Fatalf("expected sorted enabled agent names, got %v", names)
	}
}
