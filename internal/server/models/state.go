package models

import (
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
)

// PaymentState is the release state of a ContentRecord.
type PaymentState string

const (
	StateUnpaid  PaymentState = "unpaid"
	StatePending PaymentState = "pending"
	StatePaid    PaymentState = "paid"
	StateFailed  PaymentState = "failed"
)

// transitions lists every legal move. Paid is terminal.
var transitions = map[PaymentState][]PaymentState{
	StateUnpaid:  {StatePending},
	StatePending: {StatePaid, StateFailed},
	StateFailed:  {StatePending},
}

// ParsePaymentState validates a stored state value.
func ParsePaymentState(s string) (PaymentState, error) {
	switch st := PaymentState(s); st {
	case StateUnpaid, StatePending, StatePaid, StateFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment state %q", s)
}

// CanTransition reports whether s may move to next.
func (s PaymentState) CanTransition(next PaymentState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next if the move is legal and
// common.ErrorIllegalTransition otherwise.
func (s PaymentState) Transition(next PaymentState) (PaymentState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", common.ErrorIllegalTransition, s, next)
	}
	return next, nil
}
