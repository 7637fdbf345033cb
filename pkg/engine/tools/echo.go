package tools

// EchoTool returns its text argument unchanged. Used mainly as a cheap,
// side-effect-free tool for exercising the scheduler and policy pipeline
// without touching the filesystem or a shell.
type EchoTool struct {
	Base
}

// NewEchoTool creates a new echo tool.
func NewEchoTool() *EchoTool {
	return &EchoTool{
		Base: NewBase(
			"echo",
			"Echo back the given text. Useful for testing tool dispatch without side effects.",
			[]ParameterDef{
				{Name: "text", Type: "string", Description: "Text to echo back", Required: true},
			},
		),
	}
}

func (t *EchoTool) Execute(config ExecConfig, args map[string]any) Result {
	text := StringArg(args, "text", "")
	return successText(text)
}
