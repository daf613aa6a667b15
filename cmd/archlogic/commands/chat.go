// ABOUTME: Interactive terminal chat with the grounded assistant
// ABOUTME: Lipgloss-styled loop; bye, exit, quit or EOF ends the session
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/agent"
	"github.com/danruili/archlogic/internal/models"
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

// exitWords end the session without entering the turn state machine
var exitWords = map[string]bool{"bye": true, "exit": true, "quit": true}

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Start an interactive session with the grounded assistant. Answers
cite the cases they draw on with [R<case>A<asset>] reference ids.

Type "bye", "exit" or "quit" (or press Ctrl-D) to leave.`,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bot, err := newChatbot(cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("ArchLogic"))
	fmt.Fprintln(out, progressStyle.Render("Ask about architectural design. Type \"bye\" to leave."))
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, assistantStyle.Render("Goodbye! Have a great day!"))
			break
		}

		progress := &agent.Progress{}
		result := bot.Cycle(cmd.Context(), line, progress)

		switch result.Status {
		case models.TurnAborted:
			return errors.New("session aborted")
		case models.TurnFailed:
			fmt.Fprintln(out, errorStyle.Render(result.Content))
		default:
			fmt.Fprintln(out, assistantStyle.Render(result.Content))
			if !quiet {
				fmt.Fprintln(out, progressStyle.Render(fmt.Sprintf("(%.1fs)", result.Elapsed.Seconds())))
			}
		}
		fmt.Fprintln(out)
	}
	return scanner.Err()
}
