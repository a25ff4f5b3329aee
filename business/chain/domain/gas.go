package domain

import (
	"math/big"
	"time"
)

var weiPerGwei = big.NewFloat(1e9)

// GasPrice is a legacy gas price quote.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Timestamp: time.Now(),
	}
}

// Gwei returns the price in gwei for display.
func (g *GasPrice) Gwei() float64 {
	return ToGwei(g.Wei)
}

// FeeCaps are the EIP-1559 fee parameters for a new transaction.
type FeeCaps struct {
	TipCap    *big.Int
	FeeCap    *big.Int
	BaseFee   *big.Int
	Timestamp time.Time
}

// NewFeeCaps derives the fee cap as tip + 2*baseFee, clamped to maxFee
// when maxFee is set. The tip never exceeds the fee cap.
func NewFeeCaps(tip, baseFee, maxFee *big.Int) *FeeCaps {
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	if maxFee != nil && maxFee.Sign() > 0 && feeCap.Cmp(maxFee) > 0 {
		feeCap = new(big.Int).Set(maxFee)
	}

	tipCap := new(big.Int).Set(tip)
	if tipCap.Cmp(feeCap) > 0 {
		tipCap.Set(feeCap)
	}

	return &FeeCaps{
		TipCap:    tipCap,
		FeeCap:    feeCap,
		BaseFee:   new(big.Int).Set(baseFee),
		Timestamp: time.Now(),
	}
}

// ToGwei converts wei to gwei for display.
func ToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerGwei).Float64()
	return f
}

// GweiToWei converts whole gwei to wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1e9))
}
