// Package payment is the bridge to the card processor: it records payment
// intents, moves them through their status lifecycle and applies processor
// webhooks idempotently.
package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
	Refunded  Status = "refunded"
)

var ErrIllegalTransition = errors.New("illegal payment status transition")

var transitions = map[Status][]Status{
	Pending:   {Completed, Failed},
	Completed: {Refunded},
}

func (s Status) Valid() bool {
	switch s {
	case Pending, Completed, Failed, Refunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition checks a move from one status to another. Moving to the
// current status is allowed and reports changed=false, so replayed events
// apply at most once.
func Transition(from, to Status) (changed bool, err error) {
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, from, to)
	}
	if from == to {
		return false, nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// Reachable reports whether a payment in status from can still end up in
// status to through legal transitions.
func Reachable(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to || Reachable(next, to) {
			return true
		}
	}
	return false
}

// Payment is one ledger entry. TransactionID is ours and unique;
// ProcessorRef is the processor's id for the same intent.
type Payment struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transactionId"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	ProcessorRef  string          `json:"paymentIntentId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MinorUnits converts an amount to the processor's integer representation
// (cents for two-decimal currencies).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
