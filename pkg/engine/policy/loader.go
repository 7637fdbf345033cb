package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadResult is the outcome of parsing a set of policy TOML files: the
// rules successfully built, and one diagnostic string per rule (or file)
// that failed to parse.
type LoadResult struct {
	Rules  []Rule
	Errors []string
}

// PolicyTierFunc returns the tier a given policy file contributes to its
// rules' effective priority (effective = tier + raw_priority/1000).
type PolicyTierFunc func(path string) int

// LoadFromTOML parses every *.toml file reachable from policyPaths (a file
// is used directly; a directory is walked non-recursively, sorted by name)
// into Rules, per the external-interface contract in spec.md §6.
func LoadFromTOML(policyPaths []string, tier PolicyTierFunc) LoadResult {
	var result LoadResult

	for _, raw := range policyPaths {
		for _, filePath := range iterPolicyFiles(raw) {
			var doc struct {
				Rule []map[string]any `toml:"rule"`
			}
			data, err := os.ReadFile(filePath)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to read: %v", filePath, err))
				continue
			}
			if _, err := toml.Decode(string(data), &doc); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to parse TOML: %v", filePath, err))
				continue
			}

			fileTier := tier(filePath)
			source := filepath.Base(filePath)
			for index, raw := range doc.Rule {
				rules, err := buildRulesFromTable(raw, fileTier, source)
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: rule #%d: %v", filePath, index+1, err))
					continue
				}
				result.Rules = append(result.Rules, rules...)
			}
		}
	}
	return result
}

func iterPolicyFiles(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		if strings.HasSuffix(path, ".toml") {
			return []string{path}
		}
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files
}

// transformPriority maps a raw [0,999] priority plus a tier into the
// engine's effective tier+sub-priority encoding.
func transformPriority(raw int, tier int) float64 {
	return float64(tier) + float64(raw)/1000.0
}

func buildRulesFromTable(raw map[string]any, tier int, source string) ([]Rule, error) {
	decisionStr, _ := raw["decision"].(string)
	decision := Decision(decisionStr)
	if decision != Allow && decision != Deny && decision != AskUser {
		return nil, fmt.Errorf("decision must be one of allow/deny/ask_user, got %q", decisionStr)
	}

	rawPriority, ok := raw["priority"]
	if !ok {
		return nil, fmt.Errorf("priority is required")
	}
	priority, err := toInt(rawPriority)
	if err != nil {
		return nil, fmt.Errorf("priority: %w", err)
	}
	if priority < 0 || priority > 999 {
		return nil, fmt.Errorf("priority must be in range [0, 999]")
	}

	var modes []ApprovalMode
	if rawModes, ok := raw["modes"]; ok {
		list, ok := rawModes.([]any)
		if !ok {
			return nil, fmt.Errorf("modes must be an array")
		}
		for _, m := range list {
			s, ok := m.(string)
			if !ok {
				return nil, fmt.Errorf("modes entries must be strings")
			}
			modes = append(modes, ApprovalMode(s))
		}
	}

	var argsPattern *regexp.Regexp
	if rawPattern, ok := raw["argsPattern"].(string); ok {
		compiled, err := regexp.Compile(rawPattern)
		if err != nil {
			return nil, fmt.Errorf("argsPattern: %w", err)
		}
		argsPattern = compiled
	}

	toolNames, err := asToolNames(raw["toolName"])
	if err != nil {
		return nil, err
	}

	mcpName, _ := raw["mcpName"].(string)
	allowRedirection, _ := raw["allow_redirection"].(bool)
	denyMessage, _ := raw["deny_message"].(string)

	commandPrefixes, hasPrefix, err := asStringList(raw["commandPrefix"])
	if err != nil {
		return nil, fmt.Errorf("commandPrefix: %w", err)
	}
	commandRegexes, hasRegex, err := asStringList(raw["commandRegex"])
	if err != nil {
		return nil, fmt.Errorf("commandRegex: %w", err)
	}

	if hasPrefix || hasRegex {
		for _, name := range toolNames {
			if name == nil || *name != shellToolName {
				return nil, fmt.Errorf("commandPrefix/commandRegex can only be used with toolName=%q", shellToolName)
			}
		}
		if argsPattern != nil {
			return nil, fmt.Errorf("argsPattern cannot be combined with commandPrefix/commandRegex")
		}
	}

	var rules []Rule
	for _, toolName := range toolNames {
		effectiveName := toolName
		if mcpName != "" {
			var combined string
			if toolName != nil {
				combined = mcpName + "__" + *toolName
			} else {
				combined = mcpName + "__*"
			}
			effectiveName = &combined
		}

		base := Rule{
			ToolName:         effectiveName,
			Decision:         decision,
			Priority:         transformPriority(priority, tier),
			Modes:            modes,
			AllowRedirection: allowRedirection,
			DenyMessage:      denyMessage,
			Source:           source,
		}

		switch {
		case hasPrefix:
			for _, prefix := range commandPrefixes {
				r := base
				r.ArgsPattern = commandArgsPattern(shellCommandKeyPattern(prefix))
				rules = append(rules, r)
			}
		case hasRegex:
			for _, pattern := range commandRegexes {
				r := base
				r.ArgsPattern = commandArgsPattern("(?:" + pattern + ")")
				rules = append(rules, r)
			}
		default:
			r := base
			r.ArgsPattern = argsPattern
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// shellCommandKeyPattern renders a literal command prefix into a
// regex-escaped string, escaping every rune other than ASCII letters,
// digits and underscore (spaces included), since the
// "command":"<prefix>" pattern must match the prefix verbatim inside the
// canonical args JSON.
func shellCommandKeyPattern(literal string) string {
	var b strings.Builder
	for _, r := range literal {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func commandArgsPattern(inner string) *regexp.Regexp {
	return regexp.MustCompile(`"command":"\s*` + inner + `[^"]*`)
}

func asToolNames(raw any) ([]*string, error) {
	if raw == nil {
		return []*string{nil}, nil
	}
	if s, ok := raw.(string); ok {
		return []*string{&s}, nil
	}
	if list, ok := raw.([]any); ok {
		names := make([]*string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("toolName must be a string or a list of strings")
			}
			s := s
			names = append(names, &s)
		}
		return names, nil
	}
	return nil, fmt.Errorf("toolName must be a string or a list of strings")
}

// asStringList normalizes a TOML value that may be absent, a single
// string, or an array of strings. The second return value reports whether
// the key was present at all.
func asStringList(raw any) ([]string, bool, error) {
	if raw == nil {
		return nil, false, nil
	}
	if s, ok := raw.(string); ok {
		return []string{s}, true, nil
	}
	if list, ok := raw.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("must be a string or a list of strings")
			}
			out = append(out, s)
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("must be a string or a list of strings")
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("expected an integer")
	}
}
