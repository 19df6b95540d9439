package models

// ContributionStatus tracks a member contribution through its lifecycle.
type ContributionStatus string

const (
	StatusNotPaid          ContributionStatus = "NOT_PAID"
	StatusPending          ContributionStatus = "PENDING"
	StatusAwaitingApproval ContributionStatus = "AWAITING_APPROVAL"
	StatusPartiallyPaid    ContributionStatus = "PARTIALLY_PAID"
	StatusPaid             ContributionStatus = "PAID"
	StatusCancelled        ContributionStatus = "CANCELLED"
)

// Payable reports whether a contribution in this status may still accept a
// new payment record.
func (s ContributionStatus) Payable() bool {
	switch s {
	case StatusNotPaid, StatusPending, StatusAwaitingApproval:
		return true
	default:
		return false
	}
}

// ApprovalStatus is the verification state of a payment record.
type ApprovalStatus string

const (
	ApprovalNotPaid  ApprovalStatus = "NOT_PAID"
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Active reports whether this payment record still counts as the live
// attempt against its contribution. Only one active record is allowed per
// contribution at a time.
func (a ApprovalStatus) Active() bool {
	return a == ApprovalPending || a == ApprovalNotPaid
}

// PaymentMethod is the channel a payment was made through.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodMobile PaymentMethod = "mobile"
	MethodOther  PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodMobile, MethodOther:
		return true
	}
	return false
}

// Recurrence describes how often a contribution type repeats.
type Recurrence string

const (
	RecurrenceOnceOff Recurrence = "once_off"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceAnnual  Recurrence = "annual"
)

// Scope selects which members a contribution type fans out to.
type Scope string

const (
	ScopeClan          Scope = "clan"
	ScopeFamily        Scope = "family"
	ScopeFamilyLeaders Scope = "family_leaders"
	ScopeExecutives    Scope = "executives"
)

// SettlementStatus computes the contribution status that results from an
// approved payment: full settlement yields PAID, a short settlement yields
// PARTIALLY_PAID and a zero settlement leaves the contribution unpaid.
func SettlementStatus(settledCents, dueCents int64) ContributionStatus {
	switch {
	case settledCents >= dueCents && dueCents > 0:
		return StatusPaid
	case settledCents > 0:
		return StatusPartiallyPaid
	default:
		return StatusNotPaid
	}
}
