package reporter

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/pkg/ui"
)

func testPair() domain.Pair {
	chp := asset.NewToken(asset.ChainIDCelo, common.HexToAddress("0x01"), "CHP", "CHP Token", 18)
	usdc := asset.NewToken(asset.ChainIDCelo, asset.AddrUSDCCelo, "USDC", "USD Coin", asset.DecimalsUSDC)
	return domain.NewPair(chp, usdc)
}

func TestConsoleReporter_Operation(t *testing.T) {
	pair := testPair()
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	hash := common.HexToHash("0xbeef")

	tests := []struct {
		name   string
		status domain.Status
		err    error
		want   []string
	}{
		{"submitting", domain.StatusSubmitting, nil, []string{"15:04:05", "authorize", "2.5 USDC", "submitting"}},
		{"awaiting", domain.StatusAwaitingConfirmation, nil, []string{"sent " + hash.Hex(), "https://celoscan.io/tx/" + hash.Hex()}},
		{"confirmed", domain.StatusConfirmed, nil, []string{"confirmed"}},
		{"failed", domain.StatusFailed, nil, []string{"failed"}},
		{"idle after failure", domain.StatusIdle, errors.New("reverted"), []string{"back to idle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewConsoleReporter(&buf, pair, "https://celoscan.io/tx/")
			r.ReportOperation(app.OperationEvent{
				Kind:   domain.KindAuthorize,
				Status: tt.status,
				Amount: big.NewInt(2_500_000),
				Asset:  pair.Quote,
				TxHash: hash,
				Err:    tt.err,
				At:     at,
			})
			_ = r.Stop()

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output:\n%s", w, out)
				}
			}
		})
	}
}

func TestConsoleReporter_IdleWithoutErrorIsSilent(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, testPair(), "")
	r.ReportOperation(app.OperationEvent{Kind: domain.KindExchange, Status: domain.StatusIdle, At: time.Now()})

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestConsoleReporter_Snapshot(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, testPair(), "")

	empty := domain.EmptySnapshot()
	r.ReportSnapshot(empty)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing before rates load, got %q", buf.String())
	}

	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	s := empty.Builder().
		Rate(domain.DirectionBuy, big.NewInt(1_500_000)).
		Rate(domain.DirectionSell, big.NewInt(1_200_000)).
		Block(10).
		Build(at)

	r.ReportSnapshot(s)
	out := buf.String()
	for _, w := range []string{"block #10", "buy 1.5 USDC", "sell 1.2 USDC", "per 1000 CHP"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output:\n%s", w, out)
		}
	}

	// Same block and rates print nothing new.
	before := buf.Len()
	r.ReportSnapshot(s.Builder().Build(at))
	if buf.Len() != before {
		t.Error("expected an unchanged snapshot to be skipped")
	}

	r.ReportSnapshot(s.Builder().Block(11).Build(at))
	if !strings.Contains(buf.String(), "block #11") {
		t.Error("expected a new block to print")
	}
}

func TestConsoleReporter_Error(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, testPair(), "")

	r.ReportError(apperror.New(apperror.CodeTransactionReverted, apperror.WithContext("0xabc")))
	r.ReportError(errors.New("plain failure"))
	r.ReportError(nil)

	out := buf.String()
	for _, w := range []string{string(apperror.CodeTransactionReverted), "0xabc", "plain failure"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output:\n%s", w, out)
		}
	}
}

func TestConsoleReporter_Banners(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, testPair(), "")

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.ReportConnection("celo", true, 40*time.Millisecond)
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, w := range []string{"CHSwap Kiosk", "CHP/USDC", "celo", "connected (40ms)", "Stopped"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output:\n%s", w, out)
		}
	}
}

func TestTUIReporter_Messages(t *testing.T) {
	var sent []tea.Msg
	r := NewTUIReporter(func(m tea.Msg) { sent = append(sent, m) })

	at := time.Now()
	snap := domain.EmptySnapshot().Builder().Block(5).Build(at)

	_ = r.Start(context.Background())
	r.ReportOperation(app.OperationEvent{Kind: domain.KindExchange, Status: domain.StatusSubmitting})
	r.ReportSnapshot(snap)
	r.ReportError(errors.New("boom"))
	r.ReportError(nil)
	r.ReportHead(&chaindomain.Head{Number: 6, Timestamp: at})
	r.ReportConnection("celo", false, 0)

	if len(sent) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(sent))
	}
	if m, ok := sent[0].(ui.StartupMsg); !ok || m.Step != "feed" {
		t.Errorf("unexpected start message %#v", sent[0])
	}
	if m, ok := sent[1].(ui.OperationMsg); !ok || m.Event.Kind != domain.KindExchange {
		t.Errorf("unexpected operation message %#v", sent[1])
	}
	if m, ok := sent[2].(ui.SnapshotMsg); !ok || m.Block != 5 || !m.UpdatedAt.Equal(at) {
		t.Errorf("unexpected snapshot message %#v", sent[2])
	}
	if m, ok := sent[3].(ui.ErrorMsg); !ok || m.Error.Error() != "boom" {
		t.Errorf("unexpected error message %#v", sent[3])
	}
	if m, ok := sent[4].(ui.BlockMsg); !ok || m.Number != 6 {
		t.Errorf("unexpected block message %#v", sent[4])
	}
	if m, ok := sent[5].(ui.ConnectionStatusMsg); !ok || m.Connected {
		t.Errorf("unexpected connection message %#v", sent[5])
	}
}
