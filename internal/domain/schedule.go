package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPartial InstallmentStatus = "PARTIAL"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
	InstallmentStatusInGrace InstallmentStatus = "IN_GRACE"
)

// ScheduleEntry is one installment of a loan's repayment plan. Paid amounts
// are tracked per component so the allocation order can be enforced and a
// reversal can subtract exactly what a payment contributed.
type ScheduleEntry struct {
	ID            string
	LoanID        string
	Number        int
	DueDate       time.Time
	GraceExpiry   time.Time
	PrincipalDue  decimal.Decimal
	InterestDue   decimal.Decimal
	FeeDue        decimal.Decimal
	PenaltyDue    decimal.Decimal
	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	FeePaid       decimal.Decimal
	PenaltyPaid   decimal.Decimal
	PaidAmount    decimal.Decimal
	Outstanding   decimal.Decimal
	Status        InstallmentStatus
	IsLate        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TotalDue is the full amount owed on this installment, penalties included.
func (e *ScheduleEntry) TotalDue() decimal.Decimal {
	return e.PrincipalDue.Add(e.InterestDue).Add(e.FeeDue).Add(e.PenaltyDue)
}

// Refresh recomputes PaidAmount, Outstanding and Status from the component
// amounts and the given date. Status is fully derived, so recomputing is
// always safe (the sweeper relies on this).
func (e *ScheduleEntry) Refresh(today time.Time) {
	e.PaidAmount = e.PenaltyPaid.Add(e.FeePaid).Add(e.InterestPaid).Add(e.PrincipalPaid)
	out := e.TotalDue().Sub(e.PaidAmount)
	if out.IsNegative() {
		out = decimal.Zero
	}
	e.Outstanding = out
	e.Status = e.statusFor(today)
}

func (e *ScheduleEntry) statusFor(today time.Time) InstallmentStatus {
	if e.Outstanding.IsZero() && e.PaidAmount.GreaterThanOrEqual(e.TotalDue()) {
		return InstallmentStatusPaid
	}
	due := dateOnly(e.DueDate)
	grace := dateOnly(e.GraceExpiry)
	day := dateOnly(today)
	switch {
	case due.Before(day) && grace.Before(day):
		return InstallmentStatusOverdue
	case due.Before(day):
		return InstallmentStatusInGrace
	case e.PaidAmount.IsPositive():
		return InstallmentStatusPartial
	default:
		return InstallmentStatusPending
	}
}

// OutstandingPenalty returns the unpaid part of the penalty component.
func (e *ScheduleEntry) OutstandingPenalty() decimal.Decimal {
	return positivePart(e.PenaltyDue.Sub(e.PenaltyPaid))
}

func (e *ScheduleEntry) OutstandingFees() decimal.Decimal {
	return positivePart(e.FeeDue.Sub(e.FeePaid))
}

func (e *ScheduleEntry) OutstandingInterest() decimal.Decimal {
	return positivePart(e.InterestDue.Sub(e.InterestPaid))
}

func (e *ScheduleEntry) OutstandingPrincipal() decimal.Decimal {
	return positivePart(e.PrincipalDue.Sub(e.PrincipalPaid))
}

func positivePart(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from a to b, negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}
