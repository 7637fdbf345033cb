package tools

import (
	"fmt"
	"os"
	"strings"
)

// ReadFileTool reads file contents.
type ReadFileTool struct {
	Base
	workspaceRoot string
	maxBytes      int64
}

// NewReadFileTool creates a new read_file tool.
func NewReadFileTool(workspaceRoot string) *ReadFileTool {
	return &ReadFileTool{
		Base: NewBase(
			"read_file",
			"Read the contents of a file. Returns the file content as text. Files over 500 KB must be read in portions with start_line and end_line.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to read (relative to workspace)", Required: true},
				{Name: "start_line", Type: "integer", Description: "Start line number (1-indexed, optional)", Required: false},
				{Name: "end_line", Type: "integer", Description: "End line number (1-indexed, inclusive, optional)", Required: false},
			},
		),
		workspaceRoot: workspaceRoot,
		maxBytes:      500 * 1024,
	}
}

func (t *ReadFileTool) Execute(config ExecConfig, args map[string]any) Result {
	path := StringArg(args, "path", "")
	if path == "" {
		return errorResultf("path is required")
	}

	startLine := IntArg(args, "start_line", 0)
	endLine := IntArg(args, "end_line", 0)

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResultf("file does not exist: %s", path)
		}
		return errorResult(err)
	}

	if info.IsDir() {
		return errorResultf("path is a directory, not a file: %s", path)
	}

	if info.Size() > t.maxBytes && startLine == 0 && endLine == 0 {
		return errorResultf("file is too large (%s). Use start_line and end_line to read specific portions.",
			formatSize(info.Size()))
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return errorResult(err)
	}

	if startLine > 0 || endLine > 0 {
		lines := strings.Split(string(content), "\n")

		if startLine < 1 {
			startLine = 1
		}
		if endLine < startLine {
			endLine = len(lines)
		}
		if startLine > len(lines) {
			return errorResultf("start_line (%d) exceeds file length (%d lines)", startLine, len(lines))
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}

		selectedLines := lines[startLine-1 : endLine]

		var result strings.Builder
		for i, line := range selectedLines {
			lineNum := startLine + i
			result.WriteString(fmt.Sprintf("%4d: %s\n", lineNum, line))
		}

		return successText(result.String())
	}

	contentStr := string(content)
	if int64(len(content)) > t.maxBytes {
		contentStr = contentStr[:t.maxBytes] + "\n\n... (content truncated)"
	}

	return successText(contentStr)
}
