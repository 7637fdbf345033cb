package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// GlobTool finds files matching a pattern.
type GlobTool struct {
	Base
	workspaceRoot string
	maxResults    int
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(workspaceRoot string) *GlobTool {
	return &GlobTool{
		Base: NewBase(
			"glob",
			"Find files matching a glob pattern (e.g., '**/*.go', 'src/*.js'). Returns matching file paths.",
			[]ParameterDef{
				{Name: "pattern", Type: "string", Description: "Glob pattern to match (e.g., **/*.go, src/**/*.ts)", Required: true},
				{Name: "path", Type: "string", Description: "Base directory to search from (default: workspace root)", Required: false},
			},
		),
		workspaceRoot: workspaceRoot,
		maxResults:    100,
	}
}

func (t *GlobTool) Execute(config ExecConfig, args map[string]any) Result {
	pattern := StringArg(args, "pattern", "")
	if pattern == "" {
		return errorResultf("pattern is required")
	}

	basePath := StringArg(args, "path", ".")

	absBase, err := resolvePathInWorkspace(t.workspaceRoot, basePath)
	if err != nil {
		return errorResult(err)
	}
	rootAbs, _ := filepath.Abs(t.workspaceRoot)

	var matches []string
	if strings.Contains(pattern, "**") {
		matches, err = t.recursiveGlob(absBase, pattern)
	} else {
		fullPattern := filepath.Join(absBase, pattern)
		matches, err = filepath.Glob(fullPattern)
	}
	if err != nil {
		return errorResult(err)
	}

	var relativePaths []string
	for _, match := range matches {
		rel, err := filepath.Rel(rootAbs, match)
		if err != nil {
			rel = match
		}
		relativePaths = append(relativePaths, rel)
	}
	sort.Strings(relativePaths)

	if len(relativePaths) > t.maxResults {
		truncated := relativePaths[:t.maxResults]
		return successText(strings.Join(truncated, "\n") +
			"\n\n... (truncated, showing first " + strconv.Itoa(t.maxResults) + " results)")
	}

	if len(relativePaths) == 0 {
		return successText("No files found matching pattern: " + pattern)
	}

	return successText(strings.Join(relativePaths, "\n"))
}

func (t *GlobTool) recursiveGlob(basePath, pattern string) ([]string, error) {
	var matches []string

	parts := strings.SplitN(pattern, "**", 2)
	prefix := parts[0]
	suffix := ""
	if len(parts) > 1 {
		suffix = strings.TrimPrefix(parts[1], "/")
		suffix = strings.TrimPrefix(suffix, string(filepath.Separator))
	}

	err := filepath.Walk(basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && strings.HasPrefix(info.Name(), ".") && info.Name() != "." {
			return filepath.SkipDir
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(basePath, path)
		if err != nil {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(relPath, strings.TrimSuffix(prefix, "/")) {
			return nil
		}
		if suffix != "" {
			matched, _ := filepath.Match(suffix, filepath.Base(path))
			if !matched {
				return nil
			}
		}

		matches = append(matches, path)
		if len(matches) > t.maxResults*2 {
			return filepath.SkipAll
		}
		return nil
	})

	return matches, err
}
