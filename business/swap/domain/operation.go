package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chswap-kiosk/internal/apperror"
)

// Kind is the type of on-chain step.
type Kind string

const (
	KindAuthorize Kind = "authorize"
	KindExchange  Kind = "exchange"
)

func (k Kind) String() string {
	return string(k)
}

// Status is the lifecycle stage of the pending operation.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusSubmitting           Status = "submitting"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusFailed               Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// transitions lists the legal moves of the state machine.
var transitions = map[Status][]Status{
	StatusIdle:                 {StatusSubmitting},
	StatusSubmitting:           {StatusAwaitingConfirmation, StatusIdle},
	StatusAwaitingConfirmation: {StatusConfirmed, StatusFailed},
	StatusConfirmed:            {StatusIdle},
	StatusFailed:               {StatusIdle},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition matches any rejected transition with errors.Is.
var ErrIllegalTransition = apperror.New(apperror.CodeIllegalTransition)

// Outcome is the settled result of a submitted transaction.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
)

// PendingOperation is the single operation a session may have in flight.
// The zero value is idle. Transitions return a new value and never mutate
// the receiver.
type PendingOperation struct {
	Kind      Kind
	Direction Direction
	Amount    *big.Int
	TxHash    common.Hash
	Status    Status
	UpdatedAt time.Time
}

// Idle returns the empty operation.
func Idle() PendingOperation {
	return PendingOperation{Status: StatusIdle}
}

func (p PendingOperation) status() Status {
	if p.Status == "" {
		return StatusIdle
	}
	return p.Status
}

// InFlight reports whether an operation is submitting or awaiting confirmation.
func (p PendingOperation) InFlight() bool {
	s := p.status()
	return s == StatusSubmitting || s == StatusAwaitingConfirmation
}

// Busy reports whether any operation has not returned to idle, including
// one that has settled but is still refreshing state.
func (p PendingOperation) Busy() bool {
	return !p.IsIdle()
}

// IsIdle reports whether no operation is pending.
func (p PendingOperation) IsIdle() bool {
	return p.status() == StatusIdle
}

// HasTx reports whether a transaction hash was recorded.
func (p PendingOperation) HasTx() bool {
	return p.TxHash != (common.Hash{})
}

func illegal(from, to Status) error {
	return apperror.New(apperror.CodeIllegalTransition,
		apperror.WithContext(fmt.Sprintf("%s -> %s", from, to)))
}

func (p PendingOperation) to(next Status) (PendingOperation, error) {
	from := p.status()
	if !CanTransition(from, next) {
		return p, illegal(from, next)
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	return p, nil
}

// Begin starts submitting an action in direction d.
func (p PendingOperation) Begin(d Direction, action Action) (PendingOperation, error) {
	next, err := p.to(StatusSubmitting)
	if err != nil {
		return p, err
	}
	next.Kind = action.Kind
	next.Direction = d
	next.Amount = cloneInt(action.Amount)
	next.TxHash = common.Hash{}
	return next, nil
}

// Submitted records the broadcast hash.
func (p PendingOperation) Submitted(hash common.Hash) (PendingOperation, error) {
	next, err := p.to(StatusAwaitingConfirmation)
	if err != nil {
		return p, err
	}
	next.TxHash = hash
	return next, nil
}

// Reject returns a submission that never reached the chain to idle.
func (p PendingOperation) Reject() (PendingOperation, error) {
	if p.status() != StatusSubmitting {
		return p, illegal(p.status(), StatusIdle)
	}
	return Idle(), nil
}

// Settle records the outcome of an awaited transaction.
func (p PendingOperation) Settle(outcome Outcome) (PendingOperation, error) {
	if outcome == OutcomeConfirmed {
		return p.to(StatusConfirmed)
	}
	return p.to(StatusFailed)
}

// Reset returns a settled operation to idle.
func (p PendingOperation) Reset() (PendingOperation, error) {
	switch p.status() {
	case StatusConfirmed, StatusFailed:
		return Idle(), nil
	default:
		return p, illegal(p.status(), StatusIdle)
	}
}
