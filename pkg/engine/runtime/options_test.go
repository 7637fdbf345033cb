package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"AgentEngine/pkg/engine/policy"
)

func writeOptionsFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write options file: %v", err)
	}
	return path
}

func TestLoadOptions_ParsesFields(t *testing.T) {
	path := writeOptionsFile(t, `
target_dir: /workspace
interactive: true
plan_enabled: false
approval_mode: autoEdit
load_default_policies: true
policy_paths:
  - policy/extra.toml
max_turns: 7
`)

	loaded, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.TargetDir != "/workspace" || !loaded.Interactive || loaded.PlanEnabled {
		t.Fatalf("unexpected options: %+v", loaded.Options)
	}
	if loaded.ApprovalMode != policy.ModeAutoEdit {
		t.Fatalf("expected approval_mode autoEdit, got %v", loaded.ApprovalMode)
	}
	if !loaded.LoadDefaultPolicies || len(loaded.PolicyPaths) != 1 {
		t.Fatalf("unexpected policy loading fields: %+v", loaded.Options)
	}
	if loaded.MaxTurns != 7 {
		t.Fatalf("expected max_turns 7, got %d", loaded.MaxTurns)
	}
}

func TestLoadOptions_DefaultsApprovalModeWhenBlank(t *testing.T) {
	path := writeOptionsFile(t, `target_dir: .`)

	loaded, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.ApprovalMode != policy.ModeDefault {
		t.Fatalf("expected a blank approval_mode to default, got %v", loaded.ApprovalMode)
	}
}

func TestLoadOptions_RejectsUnknownApprovalMode(t *testing.T) {
	path := writeOptionsFile(t, `approval_mode: nonsense`)

	if _, err := LoadOptions(path); err == nil {
		t.Fatalf("expected an unknown approval_mode to error")
	}
}

func TestLoadOptions_ErrorsOnMissingFile(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing options file")
	}
}
