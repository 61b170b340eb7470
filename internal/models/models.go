package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Privilege is the explicit capability level of an actor. Owner-only data
// (the hidden duration surcharge, real outcomes) must never reach Operator
// or None level callers.
type Privilege int

const (
	PrivilegeNone Privilege = iota
	PrivilegeOperator
	PrivilegeOwner
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeOperator:
		return "operator"
	case PrivilegeOwner:
		return "owner"
	default:
		return "none"
	}
}

// NumberStatus is the lifecycle state of a submitted number.
type NumberStatus string

const (
	StatusQueued  NumberStatus = "queued"
	StatusInWork  NumberStatus = "in_work"
	StatusHeld    NumberStatus = "held"    // finished, submitter-visible success
	StatusDropped NumberStatus = "dropped" // finished, submitter-visible failure
	StatusRemoved NumberStatus = "removed" // voided by an operator, no financial effects
)

// transitions is the closed set of allowed status moves. Terminal states
// have no outgoing edges.
var transitions = map[NumberStatus][]NumberStatus{
	StatusQueued: {StatusInWork, StatusRemoved},
	StatusInWork: {StatusHeld, StatusDropped, StatusRemoved},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to NumberStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s NumberStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Outcome is a completion result. The visible outcome is computed against the
// tariff's nominal duration; the real outcome against nominal plus the hidden
// extra minutes. The real outcome drives every downstream side effect.
type Outcome string

const (
	OutcomeHeld    Outcome = "held"
	OutcomeDropped Outcome = "dropped"
)

func (o Outcome) Status() NumberStatus {
	if o == OutcomeHeld {
		return StatusHeld
	}
	return StatusDropped
}

type User struct {
	ID                    int64
	Username              string
	Balance               decimal.Decimal
	Role                  Privilege
	TotalNumbers          int
	IsBanned              bool
	ReferrerID            *int64
	ReferralBonusReceived bool
	ReferralEarned        decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Tariff struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	DurationMin int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Number struct {
	ID          int64
	UserID      int64
	Phone       string
	TariffID    int64
	Status      NumberStatus
	RealOutcome Outcome // empty until resolved; owner-only visibility
	IsPriority  bool
	CreatedAt   time.Time
	TakenAt     *time.Time
	FinishedAt  *time.Time
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID             int64
	UserID         int64
	Username       string
	Amount         decimal.Decimal
	Status         WithdrawalStatus
	PaymentMethod  string
	PaymentDetails string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
	ProcessedBy    *int64
	Comment        string
}

// Referral links a referrer to a referred user. Created at most once per
// pair; the bonus is paid at most once, on the referred user's first real
// success.
type Referral struct {
	ID             int64
	ReferrerID     int64
	ReferredID     int64
	FirstCompleted bool
	BonusPaid      bool
	CreatedAt      time.Time
}

// ReferralAward is returned when a referral bonus fires so the caller can
// notify the referrer.
type ReferralAward struct {
	ReferrerID int64
	ReferredID int64
	Bonus      decimal.Decimal
}
