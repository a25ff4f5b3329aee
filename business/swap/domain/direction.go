// Package domain contains the swap rules: directions, quotes, the
// authorization gate and the pending operation state machine.
package domain

import (
	"strings"

	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
)

// Direction selects which asset is spent.
type Direction string

const (
	// DirectionBuy spends the quote asset to receive the base asset.
	DirectionBuy Direction = "buy"
	// DirectionSell spends the base asset to receive the quote asset.
	DirectionSell Direction = "sell"
)

// ParseDirection accepts "buy" or "sell" in any case.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", apperror.New(apperror.CodeInvalidDirection,
			apperror.WithContext(s))
	}
	return d, nil
}

func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

func (d Direction) String() string {
	return string(d)
}

// Pair is the fixed base/quote pair traded by the kiosk.
type Pair struct {
	Base  *asset.Asset
	Quote *asset.Asset
}

// NewPair creates a pair.
func NewPair(base, quote *asset.Asset) Pair {
	return Pair{Base: base, Quote: quote}
}

// InputAsset returns the asset spent in direction d.
func (p Pair) InputAsset(d Direction) *asset.Asset {
	if d == DirectionBuy {
		return p.Quote
	}
	return p.Base
}

// OutputAsset returns the asset received in direction d.
func (p Pair) OutputAsset(d Direction) *asset.Asset {
	if d == DirectionBuy {
		return p.Base
	}
	return p.Quote
}

func (p Pair) String() string {
	return p.Base.Symbol() + "/" + p.Quote.Symbol()
}
