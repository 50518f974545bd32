package service

import (
	"time"

	"loantrack/internal/domain"

	"github.com/shopspring/decimal"
)

// deriveTracking rebuilds the whole tracking row from the schedule and the
// payment history. Every update path (apply, reverse, recalculation) goes
// through here, which is what makes the tracking row a pure cache: the same
// inputs always produce the same row.
func deriveTracking(terms *domain.LoanTerms, entries []domain.ScheduleEntry, payments []domain.Payment, today time.Time) *domain.LoanTracking {
	t := &domain.LoanTracking{
		LoanID:               terms.ID,
		CumulativePaid:       decimal.Zero,
		CumulativePrincipal:  decimal.Zero,
		CumulativeInterest:   decimal.Zero,
		CumulativeFees:       decimal.Zero,
		CumulativePenalty:    decimal.Zero,
		OutstandingBalance:   decimal.Zero,
		OutstandingPrincipal: decimal.Zero,
		OutstandingInterest:  decimal.Zero,
		NextPaymentAmount:    decimal.Zero,
	}

	allocated := decimal.Zero
	var lateFlags []bool
	onTime, late := 0, 0
	for i := range payments {
		p := &payments[i]
		if p.Status != domain.PaymentStatusRecorded {
			continue
		}
		t.CumulativePaid = t.CumulativePaid.Add(p.Amount)
		t.CumulativePrincipal = t.CumulativePrincipal.Add(p.PrincipalPaid)
		t.CumulativeInterest = t.CumulativeInterest.Add(p.InterestPaid)
		t.CumulativeFees = t.CumulativeFees.Add(p.FeesPaid)
		t.CumulativePenalty = t.CumulativePenalty.Add(p.PenaltyPaid)
		allocated = allocated.Add(p.PrincipalPaid).Add(p.InterestPaid).Add(p.FeesPaid).Add(p.PenaltyPaid)

		lateFlags = append(lateFlags, p.IsLate)
		if p.IsLate {
			late++
		} else {
			onTime++
		}
		d := p.PaymentDate
		if t.LastPaymentDate == nil || d.After(*t.LastPaymentDate) {
			t.LastPaymentDate = &d
		}
	}
	t.HasOverpayments = t.CumulativePaid.GreaterThan(allocated)

	for i := range entries {
		e := &entries[i]
		t.OutstandingBalance = t.OutstandingBalance.Add(e.Outstanding)
		t.OutstandingPrincipal = t.OutstandingPrincipal.Add(e.OutstandingPrincipal())
		t.OutstandingInterest = t.OutstandingInterest.Add(e.OutstandingInterest())

		settled := !e.TotalDue().Sub(e.PaidAmount).IsPositive()
		if settled {
			t.InstallmentsPaid++
			continue
		}
		if e.PaidAmount.IsPositive() {
			t.HasPartialPayments = true
		}
		if t.NextPaymentDue == nil {
			due := e.DueDate
			t.NextPaymentDue = &due
			t.NextPaymentAmount = e.Outstanding
			if dateAfter(today, e.GraceExpiry) {
				t.DaysLate = domain.DaysBetween(e.DueDate, today)
			}
		}
	}
	t.InstallmentsRemaining = len(entries) - t.InstallmentsPaid
	t.IsLate = t.DaysLate > 0

	if terms.TotalPayable.IsPositive() {
		t.CompletionPercentage = decimal.Min(
			t.CumulativePaid.Div(terms.TotalPayable).Mul(hundred).Round(2),
			hundred)
	}

	state := ClassifyLifecycle(terms, t.CumulativePaid, today)
	t.IsDefaulted = state == domain.StateDefaulted
	t.IsCurrent = !t.IsLate && !t.IsDefaulted

	t.PaymentBehaviorScore = BehaviorScore(onTime, late, t.CompletionPercentage)
	t.DefaultRiskScore = RiskScore(onTime, late, t.DaysLate, t.CompletionPercentage)
	t.PaymentPattern = ClassifyPattern(lateFlags)

	return t
}
