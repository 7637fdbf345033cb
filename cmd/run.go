package cmd

import (
	"context"
	"fmt"
	"os"

	"AgentEngine/cmd/ui"
	"AgentEngine/pkg/engine/llmrunner"
	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/runtime"
	"AgentEngine/pkg/logger"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run one agent session against the given prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := args[0]

	opts := runtime.Options{
		TargetDir:           targetDirFlag,
		Interactive:         !nonInteractiveFlag,
		LoadDefaultPolicies: true,
		ApprovalMode:        policy.ApprovalMode(approvalModeFlag),
	}
	maxTurns := maxTurnsFlag

	if optionsFileFlag != "" {
		loaded, err := runtime.LoadOptions(optionsFileFlag)
		if err != nil {
			return fmt.Errorf("load options: %w", err)
		}
		opts = loaded.Options
		if loaded.MaxTurns > 0 {
			maxTurns = loaded.MaxTurns
		}
	}

	config, err := runtime.New(opts)
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}

	if opts.Interactive {
		ui.NewCLIApprover().Attach(config.MessageBus())
	}

	provider, err := buildProvider()
	if err != nil {
		return err
	}

	result := llmrunner.Run(context.Background(), config, provider, llmrunner.RunOptions{
		UserPrompt:    prompt,
		SystemPrompt:  "You are an autonomous coding agent. Use the available tools to accomplish the user's request, then call complete_task with your final result.",
		MaxTurns:      maxTurns,
		AllowRecovery: true,
	})

	logger.Info("Run", "Session finished", map[string]interface{}{
		"success": result.Success,
		"turns":   result.Turns,
	})

	if !result.Success {
		return fmt.Errorf("session did not complete: %s (after %d turns)", result.Error, result.Turns)
	}

	fmt.Println(result.Result)
	return nil
}

func buildProvider() (llmrunner.Provider, error) {
	if mockProviderFlag {
		return &llmrunner.MockProvider{}, nil
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set (pass --mock to run without a real provider)")
	}
	return llmrunner.NewOpenAIProvider(apiKey, openaiBaseURLFlag, modelFlag), nil
}
