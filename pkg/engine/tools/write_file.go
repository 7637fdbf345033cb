package tools

import (
	"os"
	"path/filepath"
)

// WriteFileTool creates or overwrites files.
type WriteFileTool struct {
	Base
	workspaceRoot string
}

// NewWriteFileTool creates a new write_file tool.
func NewWriteFileTool(workspaceRoot string) *WriteFileTool {
	return &WriteFileTool{
		Base: NewBase(
			"write_file",
			"Create a new file or overwrite an existing file with the specified content. Creates parent directories if needed.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to create/overwrite (relative to workspace)", Required: true},
				{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
			},
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *WriteFileTool) Execute(config ExecConfig, args map[string]any) Result {
	path := StringArg(args, "path", "")
	if path == "" {
		return errorResultf("path is required")
	}
	content := StringArg(args, "content", "")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(err)
	}

	_, statErr := os.Stat(absPath)
	fileExists := statErr == nil

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errorResultf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return errorResult(err)
	}

	if fileExists {
		return successText("File overwritten: " + path)
	}
	return successText("File created: " + path)
}

func (t *WriteFileTool) Preview(args map[string]any) string {
	path := StringArg(args, "path", "")
	content := StringArg(args, "content", "")
	preview := content
	if len(preview) > 1000 {
		preview = preview[:1000] + "\n... (truncated)"
	}
	return "Write file: " + path + "\n" + preview
}
