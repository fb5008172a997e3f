package payment

import (
	"github.com/xenking/beautivra/internal/domain/failure"
)

// SessionStatus is the provider-side lifecycle of a payment session.
type SessionStatus string

const (
	// SessionInitiated is the local state before the provider reported anything.
	SessionInitiated SessionStatus = "initiated"
	SessionOpen      SessionStatus = "open"
	SessionComplete  SessionStatus = "complete"
	SessionExpired   SessionStatus = "expired"
)

// IsTerminal reports whether no further provider status can follow.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionComplete || s == SessionExpired
}

func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus converts a provider session status into a SessionStatus.
func ParseSessionStatus(v string) (SessionStatus, error) {
	switch s := SessionStatus(v); s {
	case SessionInitiated, SessionOpen, SessionComplete, SessionExpired:
		return s, nil
	default:
		return "", failure.Invalid("status", "unexpected provider session status "+v)
	}
}

// PaymentStatus is whether money has been collected.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus converts a provider payment status into a PaymentStatus.
// The provider's "unpaid" is folded into pending.
func ParsePaymentStatus(v string) (PaymentStatus, error) {
	switch v {
	case "paid":
		return PaymentPaid, nil
	case "pending", "unpaid":
		return PaymentPending, nil
	default:
		return "", failure.Invalid("payment_status", "unexpected provider payment status "+v)
	}
}

// State is the reconcilable pair of statuses.
type State struct {
	Status        SessionStatus
	PaymentStatus PaymentStatus
}

// ParseState parses both provider statuses.
func ParseState(status, paymentStatus string) (State, error) {
	s, err := ParseSessionStatus(status)
	if err != nil {
		return State{}, err
	}
	ps, err := ParsePaymentStatus(paymentStatus)
	if err != nil {
		return State{}, err
	}
	return State{Status: s, PaymentStatus: ps}, nil
}

// rank orders session statuses for merging. Complete outranks expired so a
// session that collected money never ends up reported as expired.
func (s SessionStatus) rank() int {
	switch s {
	case SessionOpen:
		return 1
	case SessionExpired:
		return 2
	case SessionComplete:
		return 3
	default:
		return 0
	}
}

// Advance merges a provider report into the current state. Paid never
// reverts to pending, a terminal session status only yields to complete, and
// nothing moves back to initiated. Advance is idempotent and applying the
// same set of reports in any order ends in the same state.
func (s State) Advance(report State) State {
	next := s
	if report.Status.rank() > s.Status.rank() {
		next.Status = report.Status
	}
	if report.PaymentStatus == PaymentPaid {
		next.PaymentStatus = PaymentPaid
	}
	return next
}
