// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ActivityRow is one operation transition.
type ActivityRow struct {
	Time   string
	Kind   string
	Status string
	Amount string
	TxHash string
	Failed bool
}

// ActivityComponent renders the most recent operation transitions, newest first.
type ActivityComponent struct {
	rows    []ActivityRow
	maxRows int
}

// NewActivityComponent creates an activity list holding at most maxRows.
func NewActivityComponent(maxRows int) *ActivityComponent {
	return &ActivityComponent{
		rows:    make([]ActivityRow, 0),
		maxRows: maxRows,
	}
}

// Add prepends row.
func (a *ActivityComponent) Add(row ActivityRow) {
	a.rows = append([]ActivityRow{row}, a.rows...)
	if len(a.rows) > a.maxRows {
		a.rows = a.rows[:a.maxRows]
	}
}

// Clear drops all rows.
func (a *ActivityComponent) Clear() {
	a.rows = make([]ActivityRow, 0)
}

// Len returns the number of rows.
func (a *ActivityComponent) Len() int {
	return len(a.rows)
}

// View renders the activity component.
func (a *ActivityComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	result := headerStyle.Render("ACTIVITY") + "\n\n"
	if len(a.rows) == 0 {
		return result + mutedStyle.Render("  No transactions yet...")
	}

	for _, row := range a.rows {
		style := okStyle
		if row.Failed {
			style = failStyle
		}
		line := fmt.Sprintf("  [%s] %-9s %-22s %s", row.Time, row.Kind, row.Status, row.Amount)
		result += style.Render(line)
		if row.TxHash != "" {
			result += mutedStyle.Render("  " + shortHash(row.TxHash))
		}
		result += "\n"
	}
	return result
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
