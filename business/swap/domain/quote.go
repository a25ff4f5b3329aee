package domain

import "math/big"

var (
	// ratePerBase is the number of whole base units a published rate is quoted for.
	ratePerBase = big.NewInt(1000)
	// feeDivisor takes 1%.
	feeDivisor = big.NewInt(100)
)

// Rates are the two published prices, in quote units per 1000 whole base
// units. A nil rate has not been loaded yet.
type Rates struct {
	Buy  *big.Int
	Sell *big.Int
}

// For returns the rate used by direction d.
func (r Rates) For(d Direction) *big.Int {
	if d == DirectionBuy {
		return r.Buy
	}
	return r.Sell
}

// Loaded reports whether both rates are present.
func (r Rates) Loaded() bool {
	return r.Buy != nil && r.Sell != nil
}

func (r Rates) clone() Rates {
	return Rates{Buy: cloneInt(r.Buy), Sell: cloneInt(r.Sell)}
}

// Quote is the counter-amount for an input. Input and Output are in the
// units of the direction's input and output assets. For a buy, Fee is in
// output units and already deducted from Output. For a sell, Fee is a
// surcharge in input units on top of Input.
type Quote struct {
	Direction Direction
	Input     *big.Int
	Output    *big.Int
	Fee       *big.Int
}

// NewQuote prices input in direction d. It returns false when the input is
// zero or the rate is missing or zero.
func NewQuote(d Direction, input *big.Int, rates Rates) (Quote, bool) {
	rate := rates.For(d)
	if input == nil || input.Sign() <= 0 || rate == nil || rate.Sign() <= 0 {
		return Quote{}, false
	}

	q := Quote{Direction: d, Input: new(big.Int).Set(input)}

	switch d {
	case DirectionBuy:
		raw := new(big.Int).Mul(input, ratePerBase)
		raw.Quo(raw, rate)
		q.Fee = new(big.Int).Quo(raw, feeDivisor)
		q.Output = raw.Sub(raw, q.Fee)
	case DirectionSell:
		out := new(big.Int).Mul(input, rate)
		q.Output = out.Quo(out, ratePerBase)
		q.Fee = InputFee(d, input)
	default:
		return Quote{}, false
	}

	return q, true
}

// RequiredAllowance is the authorization the quote needs.
func (q Quote) RequiredAllowance() *big.Int {
	return RequiredAllowance(q.Direction, q.Input, InputFee(q.Direction, q.Input))
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
