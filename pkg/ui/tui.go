// Package ui provides the Bubble Tea TUI for the swap kiosk.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main kiosk screen
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// chainName labels the chain connection in the status panel.
const chainName = "Celo"

var stepOrder = []string{"config", "chain", "feed"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	controls app.Controls
	ctx      context.Context

	keys  KeyMap
	help  help.Model
	input textinput.Model

	// Components
	activity *components.ActivityComponent
	status   *components.StatusComponent
	stats    *components.StatsComponent

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready        bool
	quitting     bool
	width        int
	height       int
	view         app.View
	currentBlock uint64
	lastUpdate   time.Time
	errors       []ErrorEntry // Persistent error panel (last 3)

	// Startup state
	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model driving controls. Calls into controls use ctx.
func New(ctx context.Context, controls app.Controls) Model {
	now := time.Now()

	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 32
	ti.Width = 24
	ti.Focus()

	m := Model{
		controls:     controls,
		ctx:          ctx,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		input:        ti,
		activity:     components.NewActivityComponent(8),
		status:       components.NewStatusComponent(),
		stats:        components.NewStatsComponent(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: map[string]*StartupStep{
			"config": {Name: "Loading configuration", Status: "pending"},
			"chain":  {Name: "Connecting to Celo", Status: "pending"},
			"feed":   {Name: "Reading exchange rates", Status: "pending"},
		},
		startupTime: now,
	}
	m.status.Update(components.ConnectionStatus{Name: chainName})
	m.refresh()
	return m
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), textinput.Blink)
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Always allow quit
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.startModules()
			return m, tickCmd()
		}
		if m.phase != PhaseDashboard {
			return m, nil
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.startModules()
		}
		if m.phase == PhaseDashboard {
			m.refresh()
		}
		return m, tickCmd()

	case triggerDoneMsg:
		// Failures reach the errors panel through the reporter.
		m.refresh()

	case ViewMsg:
		m.view = msg.View
		m.syncInput()

	case OperationMsg:
		m.recordOperation(msg.Event)
		m.refresh()

	case SnapshotMsg:
		m.lastUpdate = msg.UpdatedAt
		if msg.Block > m.currentBlock {
			m.currentBlock = msg.Block
		}
		m.setStep("feed", "done")
		m.refresh()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		if msg.Name == chainName {
			if msg.Connected {
				m.setStep("chain", "connected")
			} else {
				m.setStep("chain", "connecting")
			}
		}

	case BlockMsg:
		m.currentBlock = msg.Number
		m.status.Update(components.ConnectionStatus{
			Name:       chainName,
			Connected:  true,
			LastBlock:  msg.Number,
			LastUpdate: msg.Timestamp,
		})
		m.setStep("chain", "connected")

	case ErrorMsg:
		m.pushError(msg.Error)

	case StartupMsg:
		if msg.Status == "failed" && msg.Message != "" {
			m.pushError(fmt.Errorf("%s: %s", msg.Step, msg.Message))
		}
		m.setStep(msg.Step, msg.Status)
	}

	m.advance()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Switch):
		m.setDirection(m.view.Direction.Opposite())
		return m, nil
	case key.Matches(msg, m.keys.Buy):
		m.setDirection(domain.DirectionBuy)
		return m, nil
	case key.Matches(msg, m.keys.Sell):
		m.setDirection(domain.DirectionSell)
		return m, nil
	case key.Matches(msg, m.keys.Trigger):
		return m, m.triggerCmd()
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = make([]ErrorEntry, 0, 3)
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if !amountKey(msg) {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.controls != nil {
		m.controls.SetInput(m.ctx, m.input.Value())
	}
	m.refresh()
	return m, cmd
}

// amountKey reports whether msg edits the amount field. Letters are
// reserved for commands.
func amountKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete, tea.KeyLeft, tea.KeyRight, tea.KeyHome, tea.KeyEnd:
		return true
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if (r < '0' || r > '9') && r != '.' {
				return false
			}
		}
		return len(msg.Runes) > 0
	}
	return false
}

func (m *Model) setDirection(d domain.Direction) {
	if m.controls == nil {
		return
	}
	if err := m.controls.SetDirection(m.ctx, d); err != nil {
		m.pushError(err)
		return
	}
	m.refresh()
}

func (m Model) triggerCmd() tea.Cmd {
	if m.controls == nil {
		return nil
	}
	controls, ctx := m.controls, m.ctx
	return func() tea.Msg {
		return triggerDoneMsg{err: controls.Trigger(ctx)}
	}
}

// refresh pulls the current view and mirrors the session amount into the
// input field so that clears done by the orchestrator show up.
func (m *Model) refresh() {
	if m.controls == nil {
		return
	}
	m.view = m.controls.View()
	m.syncInput()
}

func (m *Model) syncInput() {
	if m.input.Value() != m.view.Input {
		m.input.SetValue(m.view.Input)
	}
}

func (m *Model) startModules() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	m.setStep("config", "done")
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) setStep(name, status string) {
	step, ok := m.startupSteps[name]
	if !ok {
		return
	}
	step.Status = status

	for _, s := range m.startupSteps {
		if s.Status != "connected" && s.Status != "done" {
			return
		}
	}
	m.startupComplete = true
}

// advance moves from startup to the dashboard once the kiosk has data.
func (m *Model) advance() {
	if m.phase == PhaseStartup && (m.startupComplete || !m.lastUpdate.IsZero()) {
		m.phase = PhaseDashboard
		m.refresh()
	}
}

func (m *Model) pushError(err error) {
	if err == nil {
		return
	}
	m.errors = append(m.errors, ErrorEntry{
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
	if len(m.errors) > 3 {
		m.errors = m.errors[len(m.errors)-3:]
	}

	s := m.stats.Stats()
	s.Errors++
	m.stats.Update(s)
}

func (m *Model) recordOperation(ev app.OperationEvent) {
	amount := ""
	if ev.Asset != nil && ev.Amount != nil {
		amount = ev.Asset.Format(ev.Amount) + " " + ev.Asset.Symbol()
	}
	txHash := ""
	if ev.TxHash != (common.Hash{}) {
		txHash = ev.TxHash.Hex()
	}

	m.activity.Add(components.ActivityRow{
		Time:   ev.At.Format("15:04:05"),
		Kind:   ev.Kind.String(),
		Status: ev.Status.String(),
		Amount: amount,
		TxHash: txHash,
		Failed: ev.Err != nil || ev.Status == domain.StatusFailed,
	})

	s := m.stats.Stats()
	switch ev.Status {
	case domain.StatusSubmitting:
		if ev.Kind == domain.KindAuthorize {
			s.Approvals++
		} else {
			s.Exchanges++
		}
	case domain.StatusConfirmed:
		s.Confirmed++
	case domain.StatusFailed:
		s.Failed++
	}
	m.stats.Update(s)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" CHSwap Kiosk "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	b.WriteString(components.Tabs(m.view.Direction.String(), "Buy", "Sell"))
	b.WriteString("\n\n")

	pay := components.PayPanel{
		Label:   m.view.InputLabel,
		Symbol:  m.view.InputSymbol,
		Balance: m.view.InputBalance,
		Input:   m.input.View(),
	}.View()

	feeUnit := m.view.OutputSymbol
	if m.view.Direction == domain.DirectionSell {
		feeUnit = m.view.InputSymbol
	}
	receive := components.ReceivePanel{
		Symbol:  m.view.OutputSymbol,
		Balance: m.view.OutputBalance,
		Output:  m.view.Output,
		Fee:     m.view.Fee,
		FeeUnit: feeUnit,
	}.View()

	if m.width > 90 {
		left := BoxStyle.Width(m.width/2 - 2).Render(pay)
		right := BoxStyle.Width(m.width/2 - 2).Render(receive)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := m.width - 4
		if width < 40 {
			width = 40
		}
		b.WriteString(BoxStyle.Width(width).Render(pay))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(receive))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderAction())
	b.WriteString("\n\n")

	b.WriteString(BoxStyle.Render(m.renderStatusPanel()))
	b.WriteString("\n\n")

	b.WriteString(m.activity.View())
	b.WriteString("\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	// Persistent error panel (show last 3 errors)
	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (ctrl+e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderAction renders the action button.
func (m Model) renderAction() string {
	style := ButtonStyle
	switch {
	case m.view.Loading:
		style = ButtonBusyStyle
	case !m.view.CanTrigger:
		style = ButtonDisabledStyle
	}
	return style.Render(m.view.ActionLabel)
}

// renderStatusPanel renders the pending operation, last transaction and
// connection state.
func (m Model) renderStatusPanel() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	linkStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Underline(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("STATUS"))
	sb.WriteString("\n")

	status := string(m.view.PendingStatus)
	if m.view.PendingKind != "" {
		status = fmt.Sprintf("%s (%s)", status, m.view.PendingKind)
	}
	sb.WriteString(fmt.Sprintf("Operation: %s\n", status))

	if m.view.NeedsAuthorization {
		sb.WriteString(NegativeValue.Render(fmt.Sprintf("Approval required for %s", m.view.InputSymbol)))
		sb.WriteString("\n")
	}

	if m.view.ExplorerURL != "" {
		sb.WriteString("Last tx: ")
		sb.WriteString(linkStyle.Render(m.view.ExplorerURL))
		sb.WriteString("\n")
	}

	if m.view.Error != nil {
		sb.WriteString(NegativeValue.Render(fmt.Sprintf("%s: %s", m.view.Error.Code, m.view.Error.Message)))
		if m.view.Error.Context != "" {
			sb.WriteString(MutedValue.Render(" (" + m.view.Error.Context + ")"))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.status.View())
	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	goldStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	greenStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	// Animated dots based on time
	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗██╗  ██╗███████╗██╗    ██╗ █████╗ ██████╗
   ██╔════╝██║  ██║██╔════╝██║    ██║██╔══██╗██╔══██╗
   ██║     ███████║███████╗██║ █╗ ██║███████║██████╔╝
   ██║     ██╔══██║╚════██║██║███╗██║██╔══██║██╔═══╝
   ╚██████╗██║  ██║███████║╚███╔███╔╝██║  ██║██║
    ╚═════╝╚═╝  ╚═╝╚══════╝ ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")

	sb.WriteString(mutedStyle.Render("                    S W A P   K I O S K"))
	sb.WriteString("\n\n\n")

	sb.WriteString(goldStyle.Render("               CHP  ⇄  USDC  on Celo"))
	sb.WriteString("\n\n\n")

	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")

	sb.WriteString(mutedStyle.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF"))

	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	connectingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  CHSwap Kiosk"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range stepOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon = "✓"
			statusText = "Ready"
			style = successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon = spinners[idx]
			statusText = "Connecting..."
			style = connectingStyle
		case "failed":
			icon = "✗"
			statusText = "Failed"
			style = failedStyle
		default:
			icon = "○"
			statusText = "Pending"
			style = mutedStyle
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			mutedStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("  Waiting for the first exchange rate read..."))
	sb.WriteString("\n")

	if len(m.errors) > 0 {
		sb.WriteString("\n")
		sb.WriteString(failedStyle.Render("  " + m.errors[len(m.errors)-1].Message))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Block: #%d", m.currentBlock))

	if m.view.WalletConnected {
		parts = append(parts, StatusConnected.Render("● Wallet"))
	} else {
		parts = append(parts, StatusDisconnected.Render("○ No wallet"))
	}

	if m.view.Loading {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, StatusReconnecting.Render(spinners[idx]+" "+m.view.ActionLabel))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// The run command sets it to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run(ctx context.Context, controls app.Controls) error {
	Program = tea.NewProgram(New(ctx, controls), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	// Call OnStartModules callback when StartModulesMsg is sent
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
