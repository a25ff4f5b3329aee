// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/chswap-kiosk/business/chain/domain"
)

// HeadSubscriber streams new chain heads.
type HeadSubscriber interface {
	// Subscribe starts listening and returns a channel closed on shutdown.
	Subscribe(ctx context.Context) (<-chan *domain.Head, error)

	LatestHead(ctx context.Context) (*domain.Head, error)

	State() domain.ConnectionState

	Status() domain.ConnectionStatus
}

// GasOracle provides fee data for new transactions.
type GasOracle interface {
	GasPrice(ctx context.Context) (*domain.GasPrice, error)

	FeeCaps(ctx context.Context) (*domain.FeeCaps, error)

	// EstimateGas returns a gas limit with safety margin.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}
