package tools

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// LsTool lists directory contents.
type LsTool struct {
	Base
	workspaceRoot string
}

// NewLsTool creates a new ls tool.
func NewLsTool(workspaceRoot string) *LsTool {
	return &LsTool{
		Base: NewBase(
			"ls",
			"List files and directories in a given path. Returns file names, types, and sizes.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Directory path to list (relative to workspace)", Required: true},
				{Name: "all", Type: "boolean", Description: "Include hidden files (starting with .)", Required: false},
			},
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *LsTool) Execute(config ExecConfig, args map[string]any) Result {
	path := StringArg(args, "path", ".")
	showAll := BoolArg(args, "all", false)

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResultf("path does not exist: %s", path)
		}
		return errorResult(err)
	}

	if !info.IsDir() {
		return successText(formatFileInfo(path, info))
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return errorResult(err)
	}

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if !showAll && strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s (error: %v)", name, err))
			continue
		}
		lines = append(lines, formatFileInfo(name, info))
	}
	sort.Strings(lines)

	if len(lines) == 0 {
		return successText("(empty directory)")
	}
	return successText(strings.Join(lines, "\n"))
}

func formatFileInfo(name string, info os.FileInfo) string {
	if info.IsDir() {
		return fmt.Sprintf("%s/", name)
	}
	return fmt.Sprintf("%s (%s)", name, formatSize(info.Size()))
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
