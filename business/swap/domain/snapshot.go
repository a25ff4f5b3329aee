package domain

import (
	"math/big"
	"time"

	"github.com/fd1az/chswap-kiosk/internal/asset"
)

// Snapshot is an immutable view of the chain reads at one point in time.
// Accessors return copies.
type Snapshot struct {
	rates      Rates
	balances   map[asset.AssetID]*big.Int
	allowances map[asset.AssetID]*big.Int
	block      uint64
	updatedAt  time.Time
}

// EmptySnapshot has nothing loaded.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		balances:   map[asset.AssetID]*big.Int{},
		allowances: map[asset.AssetID]*big.Int{},
	}
}

// SnapshotBuilder derives a new snapshot from a previous one.
type SnapshotBuilder struct {
	s *Snapshot
}

// Builder starts a new snapshot carrying over every value of s.
func (s *Snapshot) Builder() *SnapshotBuilder {
	next := EmptySnapshot()
	if s != nil {
		next.rates = s.rates.clone()
		for k, v := range s.balances {
			next.balances[k] = cloneInt(v)
		}
		for k, v := range s.allowances {
			next.allowances[k] = cloneInt(v)
		}
		next.block = s.block
		next.updatedAt = s.updatedAt
	}
	return &SnapshotBuilder{s: next}
}

func (b *SnapshotBuilder) Rate(d Direction, rate *big.Int) *SnapshotBuilder {
	if d == DirectionBuy {
		b.s.rates.Buy = cloneInt(rate)
	} else {
		b.s.rates.Sell = cloneInt(rate)
	}
	return b
}

func (b *SnapshotBuilder) Balance(id asset.AssetID, units *big.Int) *SnapshotBuilder {
	b.s.balances[id] = cloneInt(units)
	return b
}

func (b *SnapshotBuilder) Allowance(id asset.AssetID, units *big.Int) *SnapshotBuilder {
	b.s.allowances[id] = cloneInt(units)
	return b
}

func (b *SnapshotBuilder) Block(n uint64) *SnapshotBuilder {
	if n > b.s.block {
		b.s.block = n
	}
	return b
}

// Build stamps the snapshot with at and returns it. The builder must not be reused.
func (b *SnapshotBuilder) Build(at time.Time) *Snapshot {
	b.s.updatedAt = at
	s := b.s
	b.s = nil
	return s
}

func (s *Snapshot) Rates() Rates {
	return s.rates.clone()
}

// Balance returns the balance of id, or nil if it was never read.
func (s *Snapshot) Balance(id asset.AssetID) *big.Int {
	return cloneInt(s.balances[id])
}

// Allowance returns the granted allowance of id, or nil if it was never read.
func (s *Snapshot) Allowance(id asset.AssetID) *big.Int {
	return cloneInt(s.allowances[id])
}

// Block is the highest head the snapshot was refreshed on.
func (s *Snapshot) Block() uint64 {
	return s.block
}

func (s *Snapshot) UpdatedAt() time.Time {
	return s.updatedAt
}
