// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PayPanel shows the amount the user gives.
type PayPanel struct {
	Label   string
	Symbol  string
	Balance string
	// Input is the rendered amount field.
	Input string
}

// View renders the pay panel.
func (p PayPanel) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	symbolStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(strings.ToUpper(p.Label)))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %s  %s\n", p.Input, symbolStyle.Render(p.Symbol)))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Balance: %s %s", p.Balance, p.Symbol)))
	return sb.String()
}

// ReceivePanel shows the quoted output.
type ReceivePanel struct {
	Symbol  string
	Balance string
	Output  string
	Fee     string
	FeeUnit string
}

// View renders the receive panel. An empty output renders as a placeholder.
func (r ReceivePanel) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))

	output := r.Output
	if output == "" {
		output = "-"
		valueStyle = mutedStyle
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("YOU RECEIVE"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %s  %s\n", valueStyle.Render(output), r.Symbol))
	if r.Fee != "" {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Fee (1%%): %s %s", r.Fee, r.FeeUnit)))
		sb.WriteString("\n")
	} else {
		sb.WriteString("\n")
	}
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Balance: %s %s", r.Balance, r.Symbol)))
	return sb.String()
}

// Tabs renders the Buy/Sell switch with the active one highlighted.
func Tabs(active string, labels ...string) string {
	activeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C3AED")).
		Padding(0, 2)
	inactiveStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Padding(0, 2)

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if strings.EqualFold(l, active) {
			parts = append(parts, activeStyle.Render(l))
		} else {
			parts = append(parts, inactiveStyle.Render(l))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
