package tui

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the model settings screen
func Run(reg Registry, pinger Pinger) error {
	if !isTerminal() {
		return errors.New("the TUI requires a terminal; use the models subcommands instead")
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if os.Getenv("TERM") != "" {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	_, err := tea.NewProgram(NewModel(reg, pinger), opts...).Run()
	return err
}

// isTerminal checks if stdin is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
