package runtime

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"AgentEngine/pkg/engine/policy"
)

// fileOptions mirrors Options' on-disk shape for LoadOptions. Kept distinct
// from Options so the YAML tags don't leak onto the struct callers build
// programmatically.
type fileOptions struct {
	TargetDir           string   `yaml:"target_dir"`
	Interactive         bool     `yaml:"interactive"`
	PlanEnabled         bool     `yaml:"plan_enabled"`
	ApprovalMode        string   `yaml:"approval_mode"`
	LoadDefaultPolicies bool     `yaml:"load_default_policies"`
	PolicyPaths         []string `yaml:"policy_paths"`
	MaxTurns            int      `yaml:"max_turns"`
}

// LoadedOptions is Options plus the fields New doesn't take directly but a
// driver needs to start a session (max_turns belongs to llmrunner.RunOptions,
// not runtime.Options).
type LoadedOptions struct {
	Options
	MaxTurns int
}

// LoadOptions reads a YAML file at path into Options, so a `cmd/` driver can
// start a session from a config file instead of assembling flags by hand.
func LoadOptions(path string) (LoadedOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedOptions{}, fmt.Errorf("read options file: %w", err)
	}

	var fo fileOptions
	if err := yaml.Unmarshal(data, &fo); err != nil {
		return LoadedOptions{}, fmt.Errorf("parse options file: %w", err)
	}

	mode := policy.ApprovalMode(fo.ApprovalMode)
	switch mode {
	case policy.ModeDefault, policy.ModeAutoEdit, policy.ModeYolo, policy.ModePlan:
	case "":
		mode = policy.ModeDefault
	default:
		return LoadedOptions{}, fmt.Errorf("unknown approval_mode %q", fo.ApprovalMode)
	}

	return LoadedOptions{
		Options: Options{
			TargetDir:           fo.TargetDir,
			Interactive:         fo.Interactive,
			PlanEnabled:         fo.PlanEnabled,
			ApprovalMode:        mode,
			LoadDefaultPolicies: fo.LoadDefaultPolicies,
			PolicyPaths:         fo.PolicyPaths,
		},
		MaxTurns: fo.MaxTurns,
	}, nil
}
