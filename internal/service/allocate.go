package service

import (
	"time"

	"loantrack/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// allocatePayment applies a payment amount across the schedule. The target
// is the earliest installment with an outstanding balance; within an
// installment the order is fixed: penalty, then fees, then interest, then
// principal. Anything left after the target cascades to the following
// installments in due-date order. Entries are mutated in place and the
// payment's component breakdown and lateness are filled in.
//
// Returns the allocation lines, the index of the target installment (-1 when
// the whole schedule was already settled) and the unallocatable remainder.
func allocatePayment(entries []domain.ScheduleEntry, p *domain.Payment, today time.Time) ([]domain.AllocationLine, int, decimal.Decimal) {
	remaining := p.Amount
	targetIdx := -1
	var lines []domain.AllocationLine

	for i := range entries {
		if !remaining.IsPositive() {
			break
		}
		e := &entries[i]
		if !e.TotalDue().Sub(e.PaidAmount).IsPositive() {
			continue
		}
		if targetIdx < 0 {
			targetIdx = i
		}

		line := domain.AllocationLine{
			ID:                uuid.NewString(),
			PaymentID:         p.ID,
			LoanID:            p.LoanID,
			InstallmentNumber: e.Number,
		}
		line.Penalty, remaining = take(e.OutstandingPenalty(), remaining)
		line.Fees, remaining = take(e.OutstandingFees(), remaining)
		line.Interest, remaining = take(e.OutstandingInterest(), remaining)
		line.Principal, remaining = take(e.OutstandingPrincipal(), remaining)

		if !line.Total().IsPositive() {
			continue
		}

		e.PenaltyPaid = e.PenaltyPaid.Add(line.Penalty)
		e.FeePaid = e.FeePaid.Add(line.Fees)
		e.InterestPaid = e.InterestPaid.Add(line.Interest)
		e.PrincipalPaid = e.PrincipalPaid.Add(line.Principal)
		if dateAfter(p.PaymentDate, e.GraceExpiry) {
			e.IsLate = true
		}
		e.Refresh(today)

		lines = append(lines, line)
	}

	p.PenaltyPaid = sumLines(lines, func(l domain.AllocationLine) decimal.Decimal { return l.Penalty })
	p.FeesPaid = sumLines(lines, func(l domain.AllocationLine) decimal.Decimal { return l.Fees })
	p.InterestPaid = sumLines(lines, func(l domain.AllocationLine) decimal.Decimal { return l.Interest })
	p.PrincipalPaid = sumLines(lines, func(l domain.AllocationLine) decimal.Decimal { return l.Principal })

	if targetIdx >= 0 {
		target := &entries[targetIdx]
		if dateAfter(p.PaymentDate, target.GraceExpiry) {
			p.IsLate = true
			p.DaysLate = domain.DaysBetween(target.DueDate, p.PaymentDate)
		}
	}

	return lines, targetIdx, remaining
}

// reverseAllocation subtracts a payment's allocation lines from the schedule,
// the exact inverse of allocatePayment for those lines.
func reverseAllocation(entries []domain.ScheduleEntry, lines []domain.AllocationLine, today time.Time) {
	byNumber := make(map[int]*domain.ScheduleEntry, len(entries))
	for i := range entries {
		byNumber[entries[i].Number] = &entries[i]
	}
	for _, l := range lines {
		e, ok := byNumber[l.InstallmentNumber]
		if !ok {
			continue
		}
		e.PenaltyPaid = e.PenaltyPaid.Sub(l.Penalty)
		e.FeePaid = e.FeePaid.Sub(l.Fees)
		e.InterestPaid = e.InterestPaid.Sub(l.Interest)
		e.PrincipalPaid = e.PrincipalPaid.Sub(l.Principal)
		e.Refresh(today)
	}
}

func take(outstanding, remaining decimal.Decimal) (taken, left decimal.Decimal) {
	if !outstanding.IsPositive() || !remaining.IsPositive() {
		return decimal.Zero, remaining
	}
	taken = decimal.Min(outstanding, remaining)
	return taken, remaining.Sub(taken)
}

func sumLines(lines []domain.AllocationLine, pick func(domain.AllocationLine) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(pick(l))
	}
	return total
}

func dateAfter(a, b time.Time) bool {
	trunc := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return trunc(a).After(trunc(b))
}
