package policy

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed defaults/*.toml
var defaultPolicyFS embed.FS

// DefaultPolicyTier is the tier assigned to every bundled default rule.
const DefaultPolicyTier = 1

// LoadDefaultPolicies parses the bundled default policy TOML files, the
// way policy/defaults_loader.py walks a directory of .toml files at
// package-relative path, except here the files are compiled into the
// binary via go:embed so a RuntimeConfig needs no filesystem access to
// start with a sane baseline.
func LoadDefaultPolicies() LoadResult {
	var result LoadResult

	entries, err := fs.ReadDir(defaultPolicyFS, "defaults")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("defaults: %v", err))
		return result
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := defaultPolicyFS.ReadFile("defaults/" + name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("defaults/%s: %v", name, err))
			continue
		}
		var doc struct {
			Rule []map[string]any `toml:"rule"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("defaults/%s: failed to parse TOML: %v", name, err))
			continue
		}
		for index, raw := range doc.Rule {
			rules, err := buildRulesFromTable(raw, DefaultPolicyTier, name)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("defaults/%s: rule #%d: %v", name, index+1, err))
				continue
			}
			result.Rules = append(result.Rules, rules...)
		}
	}
	return result
}
