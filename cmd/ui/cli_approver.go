package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"AgentEngine/pkg/engine/bus"
	"AgentEngine/pkg/engine/tools"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	approvalBorderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("3")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("3")).
		Padding(0, 1)
	approvalTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	approvalLabelStyle   = lipgloss.NewStyle().Bold(true)
	approvalCursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	approvalProceedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	approvalCancelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// CLIApprover subscribes to the message bus's tool-confirmation-request
// topic and prompts the terminal user for a decision, publishing the
// response back onto the bus. The policy engine already filters out ALLOW
// and DENY decisions before a request reaches here, so every prompt shown
// to the user represents a genuine ask_user case.
type CLIApprover struct {
	Reader *bufio.Reader
}

// NewCLIApprover creates a new CLI approver.
func NewCLIApprover() *CLIApprover {
	return &CLIApprover{Reader: bufio.NewReader(os.Stdin)}
}

// Attach subscribes the approver to b's confirmation-request topic.
func (c *CLIApprover) Attach(b *bus.Bus) {
	b.Subscribe(bus.ToolConfirmationRequest, func(msg bus.Message) {
		c.handle(b, msg)
	})
}

func (c *CLIApprover) handle(b *bus.Bus, msg bus.Message) {
	correlationID, _ := msg.Payload["correlation_id"].(string)
	toolCall, _ := msg.Payload["tool_call"].(map[string]any)
	name, _ := toolCall["name"].(string)
	args, _ := toolCall["args"].(map[string]any)

	var body strings.Builder
	body.WriteString(approvalTitleStyle.Render("Tool Action Requires Approval"))
	body.WriteString("\n\n")
	body.WriteString(fmt.Sprintf("%s %s\n", approvalLabelStyle.Render("Tool:"), name))
	if len(args) > 0 {
		body.WriteString(approvalLabelStyle.Render("Arguments:"))
		body.WriteString("\n")
		for k, v := range args {
			vStr := fmt.Sprintf("%v", v)
			if len(vStr) > 100 {
				vStr = vStr[:100] + "..."
			}
			body.WriteString(fmt.Sprintf("  %s: %s\n", k, vStr))
		}
	}
	fmt.Println()
	fmt.Println(approvalBorderStyle.Render(strings.TrimRight(body.String(), "\n")))
	fmt.Println()

	var outcome tools.ConfirmationOutcome
	if term.IsTerminal(int(os.Stdin.Fd())) {
		outcome = c.interactiveApproval()
	} else {
		outcome = c.simpleApproval()
	}

	b.Publish(bus.ToolConfirmationResponse, map[string]any{
		"correlation_id": correlationID,
		"confirmed":      outcome != tools.Cancel,
		"outcome":        string(outcome),
	})
}

func (c *CLIApprover) interactiveApproval() tools.ConfirmationOutcome {
	model := initialApprovalModel()
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return c.simpleApproval()
	}

	m, ok := finalModel.(approvalModel)
	if !ok || m.cancelled {
		return tools.Cancel
	}
	return c.outcomeFor(m.selected)
}

type approvalModel struct {
	options   []string
	selected  int
	cancelled bool
}

func initialApprovalModel() approvalModel {
	return approvalModel{options: []string{"Proceed once", "Proceed always", "Cancel"}}
}

func (m approvalModel) Init() tea.Cmd { return nil }

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		m.selected = (m.selected - 1 + len(m.options)) % len(m.options)
	case "down", "j":
		m.selected = (m.selected + 1) % len(m.options)
	case "enter":
		return m, tea.Quit
	case "y":
		m.selected = 0
		return m, tea.Quit
	case "a":
		m.selected = 1
		return m, tea.Quit
	case "n":
		m.selected = 2
		return m, tea.Quit
	}
	return m, nil
}

func (m approvalModel) View() string {
	var b strings.Builder
	for i, opt := range m.options {
		if m.selected == i {
			b.WriteString(approvalCursorStyle.Render("❯ " + opt))
		} else {
			b.WriteString("  " + opt)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (c *CLIApprover) outcomeFor(selected int) tools.ConfirmationOutcome {
	switch selected {
	case 0:
		fmt.Println(approvalProceedStyle.Render("Proceeding once"))
		return tools.ProceedOnce
	case 1:
		fmt.Println(approvalProceedStyle.Render("Proceeding always"))
		return tools.ProceedAlways
	default:
		fmt.Println(approvalCancelStyle.Render("Cancelled"))
		return tools.Cancel
	}
}

func (c *CLIApprover) simpleApproval() tools.ConfirmationOutcome {
	fmt.Println("  (y)es once  |  (a)lways  |  (n)o")
	fmt.Print("\nChoice [y/a/n]: ")

	input, err := c.Reader.ReadString('\n')
	if err != nil {
		return tools.Cancel
	}
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "", "y", "yes":
		return c.outcomeFor(0)
	case "a", "always":
		return c.outcomeFor(1)
	default:
		return c.outcomeFor(2)
	}
}
