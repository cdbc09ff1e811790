package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"maestro/config"
	"maestro/config/models"
	"maestro/internal/llm"
	"maestro/internal/providers"
	"maestro/internal/utils"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Width(12)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	detailSectionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Background(lipgloss.Color("22")).
			Bold(true).
			Padding(0, 1)
)

// Markers shown in the list.
const (
	activeMarker   = "●"
	inactiveMarker = "○"
	lastMarker     = "◀ last"
)

// RenderMainView renders the main list view
func (m Model) RenderMainView() string {
	var b strings.Builder
	width := m.getEffectiveWidth(40)

	b.WriteString(titleStyle.Render("Model settings"))
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n\n")

	if len(m.configs) == 0 {
		b.WriteString(dimStyle.Render("No models configured, press 'a' to add one"))
		b.WriteString("\n")
	} else {
		visibleHeight := m.getVisibleListHeight()
		startIdx := m.scrollOffset
		endIdx := startIdx + visibleHeight
		if endIdx > len(m.configs) {
			endIdx = len(m.configs)
		}

		if startIdx > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more...", startIdx)))
			b.WriteString("\n")
		}
		for i := startIdx; i < endIdx; i++ {
			b.WriteString(m.renderConfigLine(i, m.configs[i]))
			b.WriteString("\n")
		}
		if endIdx < len(m.configs) {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ↓ %d more...", len(m.configs)-endIdx)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(m.RenderStatusBar())

	return b.String()
}

// getEffectiveWidth returns the window width capped for readability
func (m Model) getEffectiveWidth(defaultWidth int) int {
	if m.width <= 0 {
		return defaultWidth
	}
	if m.width < 80 {
		return m.width - 2
	}
	return 80
}

// renderConfigLine renders a single config line in the list
func (m Model) renderConfigLine(index int, cfg models.ModelConfig) string {
	cursor := "  "
	if index == m.cursor {
		cursor = "> "
	}
	marker := inactiveMarker
	if cfg.IsActive() {
		marker = activeMarker
	}

	content := fmt.Sprintf("%s%s %s [%s/%s]", cursor, marker, cfg.Label, cfg.Provider, cfg.ModelID)
	if cfg.ID == m.lastID {
		content += " " + lastMarker
	}

	switch {
	case index == m.cursor:
		return selectedStyle.Render(content)
	case cfg.IsActive():
		return activeStyle.Render(content)
	default:
		return dimStyle.Render(content)
	}
}

// RenderDetailView renders the detail view
func (m Model) RenderDetailView() string {
	var b strings.Builder

	if m.selected < 0 || m.selected >= len(m.configs) {
		return dimStyle.Render("No model selected")
	}
	cfg := m.configs[m.selected]
	width := m.getEffectiveWidth(40)

	b.WriteString(titleStyle.Render(cfg.Label))
	if cfg.IsActive() {
		b.WriteString("  ")
		b.WriteString(tagStyle.Render(activeMarker + " active"))
	}
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n\n")

	b.WriteString(detailSectionStyle.Render("Connection"))
	b.WriteString("\n")
	rows := [][2]string{
		{"ID:", cfg.ID},
		{"Provider:", providerDisplay(cfg.Provider)},
		{"Model:", cfg.ModelID},
		{"API Key:", orDash(utils.MaskAPIKey(cfg.APIKey))},
		{"Base URL:", orDash(cfg.BaseURL)},
	}
	for _, r := range rows {
		b.WriteString(detailLabelStyle.Render(r[0]))
		b.WriteString(detailValueStyle.Render(m.truncateText(r[1], width-14)))
		b.WriteString("\n")
	}

	if missing, err := providers.Missing(cfg.Provider, cfg.ModelID, cfg.APIKey, cfg.BaseURL); err == nil && len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Inactive, missing: " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("e: edit │ d: delete │ p: ping │ Esc: back"))
	return b.String()
}

func providerDisplay(name providers.Name) string {
	if p, err := providers.Get(name); err == nil {
		return p.DisplayName()
	}
	return string(name)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateText shortens text to maxWidth runes
func (m Model) truncateText(text string, maxWidth int) string {
	r := []rune(text)
	if maxWidth <= 3 || len(r) <= maxWidth {
		return text
	}
	return string(r[:maxWidth-3]) + "..."
}

// RenderDeleteConfirm renders the delete confirmation dialog
func (m Model) RenderDeleteConfirm() string {
	var b strings.Builder
	width := m.getEffectiveWidth(40)

	b.WriteString(titleStyle.Render("Confirm delete"))
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n\n")

	if m.hasCursor() {
		cfg := m.configs[m.cursor]
		b.WriteString(normalStyle.Render("Delete model: "))
		b.WriteString(selectedStyle.Render(cfg.Label))
		b.WriteString("\n\n")
		if cfg.IsActive() && len(config.ActiveConfigs(m.configs)) == 1 {
			b.WriteString(errorStyle.Render("⚠ This is the only active model; flows will fail until another is configured."))
			b.WriteString("\n\n")
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s / %s", cfg.Provider, cfg.ModelID)))
		b.WriteString("\n")
	} else {
		b.WriteString(errorStyle.Render("No model selected"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("y: delete │ n/Esc: cancel"))
	return b.String()
}

// RenderHelpView renders the help panel with scrolling support
func (m Model) RenderHelpView() string {
	var b strings.Builder
	width := m.getEffectiveWidth(50)

	b.WriteString(titleStyle.Render("Keyboard shortcuts"))
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")

	lines := m.buildHelpLines()
	start := m.helpScrollOffset
	end := start + m.getVisibleHelpHeight()
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}
	for _, l := range lines[start:end] {
		b.WriteString(l)
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k: scroll │ q/Esc: back"))
	return b.String()
}

// buildHelpLines builds all help content lines for scrolling
func (m Model) buildHelpLines() []string {
	keys := DefaultKeyMap()
	sections := []struct {
		title string
		keys  []string
		descs []string
	}{
		{"Navigation", []string{"j / ↓", "k / ↑", "g", "G", "Enter"}, []string{"move down", "move up", "jump to top", "jump to bottom", "show details"}},
		{"Models", []string{keys.Add.Help().Key, keys.Edit.Help().Key, keys.Delete.Help().Key}, []string{"add a model", "edit the model under the cursor", "delete the model under the cursor"}},
		{"Rotation", []string{keys.Next.Help().Key, keys.Ping.Help().Key}, []string{"advance the rotation and show the chosen model", "send a tiny prompt to the model"}},
		{"General", []string{"?", "Esc", "q"}, []string{"show this help", "back / cancel", "quit"}},
	}

	var lines []string
	for _, s := range sections {
		lines = append(lines, detailSectionStyle.Render(s.title)+"\n")
		for i := range s.keys {
			lines = append(lines, renderHelpLine(s.keys[i], s.descs[i]))
		}
		lines = append(lines, "\n")
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("  %s active   %s inactive (missing required fields)", activeMarker, inactiveMarker))+"\n")
	return lines
}

// renderHelpLine renders a single help line with key and description
func renderHelpLine(key, desc string) string {
	return fmt.Sprintf("%s %s\n", helpKeyStyle.Render(fmt.Sprintf("  %-10s", key)), normalStyle.Render(desc))
}

// RenderStatusBar renders the bottom status bar
func (m Model) RenderStatusBar() string {
	var b strings.Builder

	if m.errorMsg != "" {
		b.WriteString(errorStyle.Render("✗ " + m.errorMsg))
		b.WriteString("\n")
	}
	if m.message != "" {
		b.WriteString(messageStyle.Render("✓ " + m.message))
		b.WriteString("\n")
	}
	if m.errorMsg != "" || m.message != "" {
		b.WriteString("\n")
	}

	shortHelp := DefaultKeyMap().ShortHelp()
	hints := make([]string, 0, len(shortHelp))
	for _, k := range shortHelp {
		hints = append(hints, fmt.Sprintf("%s %s", helpKeyStyle.Render(k.Help().Key), helpStyle.Render(k.Help().Desc)))
	}
	b.WriteString(strings.Join(hints, helpStyle.Render(" │ ")))
	return b.String()
}

// RenderPingTestingView renders the in-progress ping
func (m Model) RenderPingTestingView() string {
	return titleStyle.Render("Ping") + "\n\n" + dimStyle.Render("Waiting for the model to answer...") + "\n"
}

// RenderPingResultView renders the ping outcome
func (m Model) RenderPingResultView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Ping"))
	b.WriteString("\n\n")

	r := m.pingResult
	switch {
	case r == nil:
		b.WriteString(dimStyle.Render("No result"))
	case r.Err != nil:
		b.WriteString(errorStyle.Render("✗ " + r.Label + ": " + pingErrorText(r.Err)))
	default:
		b.WriteString(messageStyle.Render(fmt.Sprintf("✓ %s answered in %s", r.Label, r.Duration.Round(time.Millisecond))))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("Enter/Esc: back"))
	return b.String()
}

func pingErrorText(err error) string {
	var ierr *llm.InvocationError
	if errors.As(err, &ierr) {
		return fmt.Sprintf("%s (%s)", ierr.UserMessage(), ierr.Category)
	}
	return err.Error()
}
