package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellTool executes shell commands. Its name matches the literal
// "run_shell_command" the policy engine's shell-redirection rule and the
// TOML commandPrefix/commandRegex loader hooks look for.
type ShellTool struct {
	Base
	workspaceRoot  string
	timeout        time.Duration
	maxOutputBytes int
}

// NewShellTool creates a new run_shell_command tool.
func NewShellTool(workspaceRoot string) *ShellTool {
	return &ShellTool{
		Base: NewBase(
			"run_shell_command",
			"Execute a shell command in the workspace. Use for running build commands, tests, git operations, or any CLI tools.",
			[]ParameterDef{
				{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
				{Name: "timeout", Type: "integer", Description: "Timeout in seconds (default: 120)", Required: false},
			},
		),
		workspaceRoot:  workspaceRoot,
		timeout:        120 * time.Second,
		maxOutputBytes: 100 * 1024,
	}
}

func (t *ShellTool) Execute(config ExecConfig, args map[string]any) Result {
	command := StringArg(args, "command", "")
	if command == "" {
		return errorResultf("command is required")
	}

	timeoutSecs := IntArg(args, "timeout", 120)
	timeout := time.Duration(timeoutSecs) * time.Second
	if timeout > 300*time.Second {
		timeout = 300 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workspaceRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var output strings.Builder
	if stdout.Len() > 0 {
		stdoutStr := stdout.String()
		if len(stdoutStr) > t.maxOutputBytes {
			stdoutStr = stdoutStr[:t.maxOutputBytes] + "\n\n... (stdout truncated)"
		}
		output.WriteString(stdoutStr)
	}
	if stderr.Len() > 0 {
		stderrStr := stderr.String()
		if len(stderrStr) > t.maxOutputBytes/2 {
			stderrStr = stderrStr[:t.maxOutputBytes/2] + "\n\n... (stderr truncated)"
		}
		lines := strings.Split(strings.TrimSpace(stderrStr), "\n")
		for _, line := range lines {
			output.WriteString("[stderr] " + line + "\n")
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Result{
			LLMContent:    output.String() + fmt.Sprintf("\n\nError: Command timed out after %d seconds", timeoutSecs),
			ReturnDisplay: "Error",
			Error:         "timeout",
		}
	}

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{
			LLMContent:    output.String() + fmt.Sprintf("\n\nExit code: %d", exitCode),
			ReturnDisplay: "Error",
			Error:         fmt.Sprintf("exit code %d", exitCode),
		}
	}

	if output.Len() == 0 {
		return successText("<command completed with no output>")
	}
	return successText(output.String())
}

func (t *ShellTool) Preview(args map[string]any) string {
	command := StringArg(args, "command", "")
	timeoutSecs := IntArg(args, "timeout", 120)
	return fmt.Sprintf("Execute shell command (timeout %ds): %s", timeoutSecs, command)
}
