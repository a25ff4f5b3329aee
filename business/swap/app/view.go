package app

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
)

// balanceWidth is how many characters of a formatted balance are shown.
const balanceWidth = 8

const unknownBalance = "0.0"

// View is the presentation model of the kiosk.
type View struct {
	Direction domain.Direction `json:"direction"`
	Input     string           `json:"input"`
	// Output is empty when no quote is available.
	Output string `json:"output"`
	Fee    string `json:"fee,omitempty"`

	Loading              bool `json:"loading"`
	AwaitingConfirmation bool `json:"awaiting_confirmation"`
	NeedsAuthorization   bool `json:"needs_authorization"`

	LastTx      string `json:"last_tx,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`

	InputLabel    string `json:"input_label"`
	InputSymbol   string `json:"input_symbol"`
	OutputSymbol  string `json:"output_symbol"`
	InputBalance  string `json:"input_balance"`
	OutputBalance string `json:"output_balance"`

	WalletConnected bool   `json:"wallet_connected"`
	CanTrigger      bool   `json:"can_trigger"`
	ActionLabel     string `json:"action_label"`

	PendingKind   domain.Kind   `json:"pending_kind,omitempty"`
	PendingStatus domain.Status `json:"pending_status"`

	Block uint64 `json:"block"`

	Error *apperror.ResponseError `json:"error,omitempty"`
}

// View derives the presentation model from the session, the pending
// operation and one snapshot load.
func (o *Orchestrator) View() View {
	snap := o.feed.Snapshot()
	_, connected := o.wallet.Address()

	o.mu.Lock()
	session := o.session
	op := o.op
	lastTx := o.lastTx
	lastErr := o.lastErr
	o.mu.Unlock()

	return buildView(o.cfg, session, op, lastTx, lastErr, snap, connected)
}

func buildView(
	cfg OrchestratorConfig,
	session Session,
	op domain.PendingOperation,
	lastTx common.Hash,
	lastErr error,
	snap *domain.Snapshot,
	connected bool,
) View {
	d := session.Direction
	in := cfg.Pair.InputAsset(d)
	out := cfg.Pair.OutputAsset(d)
	units := asset.ToUnits(session.Input, in.Decimals())

	v := View{
		Direction:            d,
		Input:                session.Input,
		Loading:              op.Busy(),
		AwaitingConfirmation: op.Status == domain.StatusAwaitingConfirmation,
		InputLabel:           inputLabel(d),
		InputSymbol:          in.Symbol(),
		OutputSymbol:         out.Symbol(),
		InputBalance:         formatBalance(snap.Balance(in.ID()), in.Decimals()),
		OutputBalance:        formatBalance(snap.Balance(out.ID()), out.Decimals()),
		WalletConnected:      connected,
		PendingStatus:        op.Status,
		Block:                snap.Block(),
	}
	if v.PendingStatus == "" {
		v.PendingStatus = domain.StatusIdle
	}
	if !op.IsIdle() {
		v.PendingKind = op.Kind
	}

	if q, ok := domain.NewQuote(d, units, snap.Rates()); ok {
		v.Output = out.Format(q.Output)
		if d == domain.DirectionSell {
			v.Fee = in.Format(q.Fee)
		} else {
			v.Fee = out.Format(q.Fee)
		}
	}

	if units.Sign() > 0 {
		state := domain.NewAllowanceState(d, units, snap.Allowance(in.ID()))
		v.NeedsAuthorization = state.NeedsAuthorization()
	}

	if lastTx != (common.Hash{}) {
		v.LastTx = lastTx.Hex()
		v.ExplorerURL = cfg.ExplorerTxURL + v.LastTx
	}

	if lastErr != nil {
		resp := apperror.As(lastErr).ToResponse()
		v.Error = &resp.Error
	}

	v.CanTrigger = connected && !op.Busy() && units.Sign() > 0
	v.ActionLabel = actionLabel(cfg.Pair, d, connected, op, units, v.NeedsAuthorization, in)
	return v
}

func actionLabel(
	pair domain.Pair,
	d domain.Direction,
	connected bool,
	op domain.PendingOperation,
	units *big.Int,
	needsAuth bool,
	in *asset.Asset,
) string {
	switch {
	case !connected:
		return "Connect Wallet"
	case op.Status == domain.StatusAwaitingConfirmation,
		op.Status == domain.StatusConfirmed,
		op.Status == domain.StatusFailed:
		return "Confirming..."
	case op.Status == domain.StatusSubmitting && op.Kind == domain.KindAuthorize:
		return "Approving..."
	case op.Status == domain.StatusSubmitting:
		return "Submitting..."
	case units.Sign() == 0:
		return "Enter Amount"
	case needsAuth:
		return "Approve " + in.Symbol()
	case d == domain.DirectionBuy:
		return "Buy " + pair.Base.Symbol()
	default:
		return "Sell " + pair.Base.Symbol()
	}
}

func inputLabel(d domain.Direction) string {
	if d == domain.DirectionBuy {
		return "You Pay"
	}
	return "You Sell"
}

// formatBalance renders units truncated for display, or "0.0" when unknown.
func formatBalance(units *big.Int, decimals uint8) string {
	if units == nil {
		return unknownBalance
	}
	return asset.Truncate(asset.FromUnits(units, decimals), balanceWidth)
}
