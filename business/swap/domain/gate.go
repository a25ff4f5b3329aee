package domain

import "math/big"

// InputFee is the surcharge charged on the input asset. Only sells carry it,
// and it does not depend on the rates.
func InputFee(d Direction, input *big.Int) *big.Int {
	if d != DirectionSell || input == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(input, feeDivisor)
}

// RequiredAllowance is the amount of the input asset the exchange must be
// allowed to pull: the input for a buy, input plus fee for a sell.
func RequiredAllowance(d Direction, input, fee *big.Int) *big.Int {
	required := new(big.Int)
	if input != nil {
		required.Set(input)
	}
	if d == DirectionSell && fee != nil {
		required.Add(required, fee)
	}
	return required
}

// NeedsAuthorization reports granted < required. A nil grant counts as zero.
func NeedsAuthorization(granted, required *big.Int) bool {
	if required == nil {
		return false
	}
	if granted == nil {
		granted = new(big.Int)
	}
	return granted.Cmp(required) < 0
}

// AllowanceState pairs the granted allowance with what the input requires.
type AllowanceState struct {
	Granted  *big.Int
	Required *big.Int
}

// NewAllowanceState evaluates the gate for input in direction d.
func NewAllowanceState(d Direction, input, granted *big.Int) AllowanceState {
	return AllowanceState{
		Granted:  cloneInt(granted),
		Required: RequiredAllowance(d, input, InputFee(d, input)),
	}
}

// NeedsAuthorization reports whether the granted allowance is short.
func (s AllowanceState) NeedsAuthorization() bool {
	return NeedsAuthorization(s.Granted, s.Required)
}

// Action is the on-chain step a trigger performs.
type Action struct {
	Kind   Kind
	Amount *big.Int
}

// PlanAction decides between authorizing exactly the required allowance and
// exchanging the input.
func PlanAction(d Direction, input, granted *big.Int) Action {
	state := NewAllowanceState(d, input, granted)
	if state.NeedsAuthorization() {
		return Action{Kind: KindAuthorize, Amount: state.Required}
	}
	return Action{Kind: KindExchange, Amount: cloneInt(input)}
}
