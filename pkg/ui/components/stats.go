// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session counters for display.
type Stats struct {
	Approvals int64
	Exchanges int64
	Confirmed int64
	Failed    int64
	Errors    int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current counters.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	failedDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	if s.stats.Failed > 0 {
		failedDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	}
	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("SESSION") + "\n" +
		fmt.Sprintf("Approvals: %s  │  Exchanges: %s  │  Confirmed: %s  │  Failed: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Approvals)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Exchanges)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Confirmed)),
			failedDisplay,
			errorsDisplay,
		)
}
