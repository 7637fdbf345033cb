package cmd

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"AgentEngine/pkg/logger"

	"github.com/spf13/cobra"
)

// Global flags
var (
	targetDirFlag       string
	approvalModeFlag    string
	modelFlag           string
	openaiBaseURLFlag   string
	maxTurnsFlag        int
	optionsFileFlag     string
	mockProviderFlag    bool
	nonInteractiveFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent Engine - an embeddable agent dispatch core",
	Long: `Agent Engine drives a policy-gated, tool-calling agent loop: a
scheduler dispatches model-requested tool calls through a layered policy
engine and a message-bus confirmation protocol, with optional recursive
sub-agent tools.

Global Flags:
  --target-dir      workspace root tools operate against (default: ".")
  --approval-mode   default | autoEdit | yolo | plan
  --model           model name passed to the configured provider
  --max-turns       maximum agent loop turns before a recovery attempt`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&targetDirFlag, "target-dir", ".", "Workspace root tools operate against")
	rootCmd.PersistentFlags().StringVar(&approvalModeFlag, "approval-mode", "default", "Approval mode: default, autoEdit, yolo, plan")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "gpt-4o", "Model name passed to the configured provider")
	rootCmd.PersistentFlags().StringVar(&openaiBaseURLFlag, "openai-base-url", "", "Override the OpenAI-compatible API base URL")
	rootCmd.PersistentFlags().IntVar(&maxTurnsFlag, "max-turns", 10, "Maximum agent loop turns before a recovery attempt")
	rootCmd.PersistentFlags().StringVar(&optionsFileFlag, "options", "", "Path to a YAML runtime options file (overrides the flags above)")
	rootCmd.PersistentFlags().BoolVar(&mockProviderFlag, "mock", false, "Use the deterministic mock provider instead of OpenAI")
	rootCmd.PersistentFlags().BoolVar(&nonInteractiveFlag, "non-interactive", false, "Collapse ask_user decisions to deny instead of prompting the terminal")
}

// Execute runs the root command.
func Execute() {
	loadDotEnv()

	logPath := fmt.Sprintf("workspace/logs/%s.log", time.Now().Format("20060102"))
	logLevelStr := os.Getenv("LOG_LEVEL")
	level := logger.INFO
	switch strings.ToUpper(logLevelStr) {
	case "DEBUG":
		level = logger.DEBUG
	case "WARN":
		level = logger.WARN
	case "ERROR":
		level = logger.ERROR
	}
	if err := logger.Init(logPath, level, "agent-engine"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logger: %v\n", err)
	}

	logger.Info("System", "Agent Engine Starting", map[string]interface{}{
		"version": "1.0.0",
		"os":      runtime.GOOS,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDotEnv reads .env file and sets environment variables.
func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		if (strings.HasPrefix(val, "\"") && strings.HasSuffix(val, "\"")) ||
			(strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'")) {
			val = val[1 : len(val)-1]
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}
