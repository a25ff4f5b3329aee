package reporter

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/pkg/ui"
)

// TUIReporter implements app.Reporter by forwarding to the Bubble Tea program.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter. A nil send uses ui.Send.
func NewTUIReporter(send func(tea.Msg)) *TUIReporter {
	if send == nil {
		send = ui.Send
	}
	return &TUIReporter{send: send}
}

// Start marks the feed step as loading.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "feed", Status: "connecting", Message: "Reading rates and balances..."})
	return nil
}

// ReportOperation sends the transition to the activity panel.
func (r *TUIReporter) ReportOperation(ev app.OperationEvent) {
	r.send(ui.OperationMsg{Event: ev})
}

// ReportSnapshot tells the model a new snapshot is readable.
func (r *TUIReporter) ReportSnapshot(s *domain.Snapshot) {
	r.send(ui.SnapshotMsg{Block: s.Block(), UpdatedAt: s.UpdatedAt()})
}

// ReportError sends err to the errors panel.
func (r *TUIReporter) ReportError(err error) {
	if err == nil {
		return
	}
	r.send(ui.ErrorMsg{Error: err})
}

// ReportHead forwards a new chain head.
func (r *TUIReporter) ReportHead(h *chaindomain.Head) {
	r.send(ui.BlockMsg{Number: h.Number, Timestamp: h.Timestamp})
}

// ReportConnection updates the connections panel.
func (r *TUIReporter) ReportConnection(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// Stop is a no-op; the program owns its own shutdown.
func (r *TUIReporter) Stop() error {
	return nil
}

var (
	_ app.Reporter  = (*TUIReporter)(nil)
	_ ChainObserver = (*TUIReporter)(nil)
)
