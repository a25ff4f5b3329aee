// Package app contains application services and port definitions for the swap context.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/asset"
)

// RateSource reads the published exchange rate for a direction.
type RateSource interface {
	ReadRate(ctx context.Context, d domain.Direction) (*big.Int, error)
}

// BalanceSource reads token balances.
type BalanceSource interface {
	ReadBalance(ctx context.Context, a *asset.Asset, owner common.Address) (*big.Int, error)
}

// AllowanceSource reads granted allowances.
type AllowanceSource interface {
	ReadAllowance(ctx context.Context, a *asset.Asset, owner, spender common.Address) (*big.Int, error)
}

// Submitter broadcasts transactions. Both methods return once the
// transaction is accepted by the node or rejected before broadcast.
type Submitter interface {
	SubmitAuthorize(ctx context.Context, a *asset.Asset, spender common.Address, amount *big.Int) (common.Hash, error)
	SubmitExchange(ctx context.Context, d domain.Direction, amount *big.Int) (common.Hash, error)
}

// ConfirmationWatcher waits until a transaction settles. It imposes no
// timeout of its own.
type ConfirmationWatcher interface {
	AwaitConfirmation(ctx context.Context, hash common.Hash) (domain.Outcome, error)
}

// Wallet exposes the identity of the connected wallet, if any.
type Wallet interface {
	Address() (common.Address, bool)
}

// Controls are the callbacks offered to presentation layers.
type Controls interface {
	SetDirection(ctx context.Context, d domain.Direction) error
	SetInput(ctx context.Context, s string)
	Trigger(ctx context.Context) error
	View() View
}

// OperationEvent describes one transition of the pending operation.
type OperationEvent struct {
	Kind      domain.Kind
	Direction domain.Direction
	Status    domain.Status
	Amount    *big.Int
	Asset     *asset.Asset
	TxHash    common.Hash
	Err       error
	At        time.Time
}

// Reporter receives orchestrator and feed activity for display.
type Reporter interface {
	Start(ctx context.Context) error

	ReportOperation(ev OperationEvent)

	ReportSnapshot(s *domain.Snapshot)

	ReportError(err error)

	Stop() error
}
