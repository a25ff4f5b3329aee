// Package ui provides the Bubble Tea TUI for the swap kiosk.
package ui

import (
	"time"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
)

// Message types for TUI updates

// ViewMsg carries a freshly derived presentation model.
type ViewMsg struct {
	View app.View
}

// OperationMsg is sent on every transition of the pending operation.
type OperationMsg struct {
	Event app.OperationEvent
}

// SnapshotMsg is sent when the feed publishes a new snapshot.
type SnapshotMsg struct {
	Block     uint64
	UpdatedAt time.Time
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BlockMsg is sent when a new head is received.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "chain", "feed"
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}

// triggerDoneMsg reports the end of a Trigger call.
type triggerDoneMsg struct {
	err error
}
