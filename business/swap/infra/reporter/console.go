// Package reporter contains presentation adapters for orchestrator and feed
// activity.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
)

const rule = "================================================================================"

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
	dimColor  = color.New(color.Faint)
)

// ChainObserver receives chain events that the swap ports do not carry.
type ChainObserver interface {
	ReportHead(h *chaindomain.Head)
	ReportConnection(name string, connected bool, latency time.Duration)
}

// ConsoleReporter implements app.Reporter for line-oriented CLI output.
type ConsoleReporter struct {
	out      io.Writer
	pair     domain.Pair
	explorer string

	mu        sync.Mutex
	spin      *spinner.Spinner
	lastBlock uint64
	lastRates domain.Rates
}

// NewConsoleReporter creates a ConsoleReporter writing to out. Transaction
// hashes are appended to explorerTxURL when it is set.
func NewConsoleReporter(out io.Writer, pair domain.Pair, explorerTxURL string) *ConsoleReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " awaiting confirmation"

	return &ConsoleReporter{
		out:      out,
		pair:     pair,
		explorer: explorerTxURL,
		spin:     s,
	}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "CHSwap Kiosk  %s\n", infoColor.Sprint(r.pair.String()))
	fmt.Fprintln(r.out, rule)
	return nil
}

// ReportOperation prints one line per transition of the pending operation.
func (r *ConsoleReporter) ReportOperation(ev app.OperationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spin.Stop()

	amount := ""
	if ev.Asset != nil && ev.Amount != nil {
		amount = ev.Asset.Format(ev.Amount) + " " + ev.Asset.Symbol()
	}
	prefix := fmt.Sprintf("[%s] %-9s %s", ev.At.Format("15:04:05"), ev.Kind, amount)

	switch ev.Status {
	case domain.StatusSubmitting:
		fmt.Fprintf(r.out, "%s  %s\n", prefix, infoColor.Sprint("submitting"))
	case domain.StatusAwaitingConfirmation:
		fmt.Fprintf(r.out, "%s  sent %s\n", prefix, ev.TxHash.Hex())
		if r.explorer != "" {
			fmt.Fprintf(r.out, "  %s\n", dimColor.Sprint(r.explorer+ev.TxHash.Hex()))
		}
		r.spin.Start()
	case domain.StatusConfirmed:
		fmt.Fprintf(r.out, "%s  %s\n", prefix, okColor.Sprint("confirmed"))
	case domain.StatusFailed:
		fmt.Fprintf(r.out, "%s  %s\n", prefix, failColor.Sprint("failed"))
	case domain.StatusIdle:
		if ev.Err != nil {
			fmt.Fprintf(r.out, "%s  %s\n", prefix, dimColor.Sprint("back to idle"))
		}
	}
}

// ReportSnapshot prints the published rates whenever they or the block change.
func (r *ConsoleReporter) ReportSnapshot(s *domain.Snapshot) {
	rates := s.Rates()
	if !rates.Loaded() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Block() <= r.lastBlock && sameRate(rates.Buy, r.lastRates.Buy) && sameRate(rates.Sell, r.lastRates.Sell) {
		return
	}
	r.lastBlock = s.Block()
	r.lastRates = rates

	if r.spin.Active() {
		return
	}

	quote := r.pair.Quote
	fmt.Fprintf(r.out, "[%s] block #%d  buy %s %s  sell %s %s  (per 1000 %s)\n",
		s.UpdatedAt().Format("15:04:05"),
		s.Block(),
		quote.Format(rates.Buy), quote.Symbol(),
		quote.Format(rates.Sell), quote.Symbol(),
		r.pair.Base.Symbol(),
	)
}

// ReportError prints err in red.
func (r *ConsoleReporter) ReportError(err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.spin.Stop()

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		fmt.Fprintf(r.out, "%s %s\n", failColor.Sprintf("error [%s]", appErr.Code), appErr.Message)
		if appErr.Context != "" {
			fmt.Fprintf(r.out, "  %s\n", dimColor.Sprint(appErr.Context))
		}
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", failColor.Sprint("error"), err)
}

// Stop halts the spinner and prints the closing line.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spin.Stop()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "CHSwap Kiosk Stopped")
	return nil
}

// ReportHead is a no-op; snapshots already carry the block.
func (r *ConsoleReporter) ReportHead(*chaindomain.Head) {}

// ReportConnection prints connection changes.
func (r *ConsoleReporter) ReportConnection(name string, connected bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := failColor.Sprint("disconnected")
	if connected {
		status = okColor.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

func sameRate(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

var (
	_ app.Reporter  = (*ConsoleReporter)(nil)
	_ ChainObserver = (*ConsoleReporter)(nil)
)
