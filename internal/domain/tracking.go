package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentPattern string

const (
	PatternConsistent    PaymentPattern = "CONSISTENT"
	PatternIrregular     PaymentPattern = "IRREGULAR"
	PatternDeteriorating PaymentPattern = "DETERIORATING"
)

// LoanTracking is the derived per-loan summary. It is a cache over the
// payment history: every field must be reproducible by replaying all
// non-reversed payments against a fresh schedule.
type LoanTracking struct {
	LoanID                string
	CumulativePaid        decimal.Decimal
	CumulativePrincipal   decimal.Decimal
	CumulativeInterest    decimal.Decimal
	CumulativeFees        decimal.Decimal
	CumulativePenalty     decimal.Decimal
	OutstandingBalance    decimal.Decimal
	OutstandingPrincipal  decimal.Decimal
	OutstandingInterest   decimal.Decimal
	InstallmentsPaid      int
	InstallmentsRemaining int
	NextPaymentDue        *time.Time
	NextPaymentAmount     decimal.Decimal
	DaysLate              int
	IsLate                bool
	IsDefaulted           bool
	IsCurrent             bool
	HasPartialPayments    bool
	HasOverpayments       bool
	CompletionPercentage  decimal.Decimal
	PaymentBehaviorScore  decimal.Decimal
	DefaultRiskScore      decimal.Decimal
	PaymentPattern        PaymentPattern
	LastPaymentDate       *time.Time
	UpdatedAt             time.Time
}

// Equal compares the replay-relevant fields of two tracking rows. Timestamps
// are ignored: drift detection cares about the money, not when it was written.
func (t *LoanTracking) Equal(o *LoanTracking) bool {
	if t == nil || o == nil {
		return t == o
	}
	sameTime := func(a, b *time.Time) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return a.Equal(*b)
	}
	return t.LoanID == o.LoanID &&
		t.CumulativePaid.Equal(o.CumulativePaid) &&
		t.CumulativePrincipal.Equal(o.CumulativePrincipal) &&
		t.CumulativeInterest.Equal(o.CumulativeInterest) &&
		t.CumulativeFees.Equal(o.CumulativeFees) &&
		t.CumulativePenalty.Equal(o.CumulativePenalty) &&
		t.OutstandingBalance.Equal(o.OutstandingBalance) &&
		t.OutstandingPrincipal.Equal(o.OutstandingPrincipal) &&
		t.OutstandingInterest.Equal(o.OutstandingInterest) &&
		t.InstallmentsPaid == o.InstallmentsPaid &&
		t.InstallmentsRemaining == o.InstallmentsRemaining &&
		sameTime(t.NextPaymentDue, o.NextPaymentDue) &&
		t.NextPaymentAmount.Equal(o.NextPaymentAmount) &&
		t.DaysLate == o.DaysLate &&
		t.IsLate == o.IsLate &&
		t.IsDefaulted == o.IsDefaulted &&
		t.IsCurrent == o.IsCurrent &&
		t.HasPartialPayments == o.HasPartialPayments &&
		t.HasOverpayments == o.HasOverpayments &&
		t.CompletionPercentage.Equal(o.CompletionPercentage) &&
		t.PaymentBehaviorScore.Equal(o.PaymentBehaviorScore) &&
		t.DefaultRiskScore.Equal(o.DefaultRiskScore) &&
		t.PaymentPattern == o.PaymentPattern &&
		sameTime(t.LastPaymentDate, o.LastPaymentDate)
}
