package service

import (
	"context"
	"time"

	"loantrack/internal/domain"
	"loantrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGetter is the extra lookup Reverse needs before it can take the
// per-loan lock (the loan ID lives on the payment row).
type PaymentGetter interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// BalanceCache is an optional read-through cache for loan balances.
type BalanceCache interface {
	GetBalance(ctx context.Context, loanID string) (*domain.LoanBalance, bool)
	SetBalance(ctx context.Context, loanID string, b *domain.LoanBalance)
	InvalidateBalance(ctx context.Context, loanID string)
}

// PaymentInput is a payment submission from the surrounding service.
type PaymentInput struct {
	LoanID      string
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      string
	Reference   string
	Notes       string
}

// PaymentService allocates incoming payments across the schedule and keeps
// the tracking summary in step.
type PaymentService struct {
	store    Store
	payments PaymentGetter
	cache    BalanceCache
	notifier Notifier
	now      func() time.Time
}

func NewPaymentService(store Store, payments PaymentGetter, cache BalanceCache, notifier Notifier) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentService{store: store, payments: payments, cache: cache, notifier: notifier, now: time.Now}
}

// Apply validates and allocates a payment inside a single per-loan
// transaction. Any failure rolls the whole allocation back; the tracking row
// is never touched without the matching payment row committing with it.
func (s *PaymentService) Apply(ctx context.Context, in PaymentInput) (*domain.AllocationResult, error) {
	if in.LoanID == "" {
		return nil, &domain.ValidationError{Field: "loan_id", Message: "required"}
	}
	if !in.Amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if in.PaymentDate.IsZero() {
		return nil, &domain.ValidationError{Field: "payment_date", Message: "required"}
	}

	now := s.now()
	payment := &domain.Payment{
		ID:          uuid.NewString(),
		LoanID:      in.LoanID,
		Amount:      in.Amount,
		PaymentDate: in.PaymentDate,
		Method:      in.Method,
		Reference:   in.Reference,
		Notes:       in.Notes,
		Status:      domain.PaymentStatusRecorded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var result *domain.AllocationResult
	err := s.store.WithLoanTx(ctx, in.LoanID, func(tx repository.LoanTx) error {
		terms, err := tx.GetLoanTerms(ctx, in.LoanID)
		if err != nil {
			return err
		}
		entries, err := tx.ListSchedule(ctx, in.LoanID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return domain.ErrNotFound
		}

		lines, targetIdx, leftover := allocatePayment(entries, payment, now)

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.InsertAllocations(ctx, lines); err != nil {
			return err
		}
		touched := map[int]bool{}
		for _, l := range lines {
			touched[l.InstallmentNumber] = true
		}
		for i := range entries {
			if touched[entries[i].Number] {
				if err := tx.UpdateScheduleEntry(ctx, &entries[i]); err != nil {
					return err
				}
			}
		}

		payments, err := tx.ListPayments(ctx, in.LoanID)
		if err != nil {
			return err
		}
		if err := tx.SaveTracking(ctx, deriveTracking(terms, entries, payments, now)); err != nil {
			return err
		}

		result = &domain.AllocationResult{
			Payment:     payment,
			IsLate:      payment.IsLate,
			Overpayment: leftover,
		}
		if targetIdx >= 0 {
			target := entries[targetIdx]
			result.Installment = &target
			result.InstallmentNumber = target.Number
			result.FullyPaid = !target.TotalDue().Sub(target.PaidAmount).IsPositive()
			result.IsPartial = !result.FullyPaid && target.PaidAmount.IsPositive()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateBalance(ctx, in.LoanID)
	}
	s.notifier.Notify(ctx, domain.InstallmentPaid{
		LoanID:            in.LoanID,
		InstallmentNumber: result.InstallmentNumber,
		AmountPaid:        payment.Amount,
		FullyPaid:         result.FullyPaid,
		IsPartial:         result.IsPartial,
		IsLate:            result.IsLate,
	})
	return result, nil
}

// Reverse undoes a recorded payment: its allocation lines are subtracted
// from the schedule, the tracking row is re-derived and the payment is
// marked REVERSED with the given reason.
func (s *PaymentService) Reverse(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "required"}
	}
	ref, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var reversed *domain.Payment
	err = s.store.WithLoanTx(ctx, ref.LoanID, func(tx repository.LoanTx) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusRecorded {
			return &domain.StateConflictError{
				Entity:  "payment",
				Current: string(payment.Status),
				Message: "only RECORDED payments can be reversed",
			}
		}

		terms, err := tx.GetLoanTerms(ctx, payment.LoanID)
		if err != nil {
			return err
		}
		entries, err := tx.ListSchedule(ctx, payment.LoanID)
		if err != nil {
			return err
		}
		lines, err := tx.ListAllocationsByPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		now := s.now()
		reverseAllocation(entries, lines, now)

		payment.Status = domain.PaymentStatusReversed
		payment.ReversalReason = reason
		payment.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.DeleteAllocationsByPayment(ctx, paymentID); err != nil {
			return err
		}

		payments, err := tx.ListPayments(ctx, payment.LoanID)
		if err != nil {
			return err
		}

		if err := s.refreshLateFlags(ctx, tx, entries, lines, payments); err != nil {
			return err
		}
		touched := map[int]bool{}
		for _, l := range lines {
			touched[l.InstallmentNumber] = true
		}
		for i := range entries {
			if touched[entries[i].Number] {
				if err := tx.UpdateScheduleEntry(ctx, &entries[i]); err != nil {
					return err
				}
			}
		}

		if err := tx.SaveTracking(ctx, deriveTracking(terms, entries, payments, now)); err != nil {
			return err
		}
		reversed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateBalance(ctx, reversed.LoanID)
	}
	s.notifier.Notify(ctx, domain.PaymentReversed{
		LoanID:    reversed.LoanID,
		PaymentID: reversed.ID,
		Reason:    reason,
	})
	return reversed, nil
}

// refreshLateFlags recomputes the late flag of the installments a reversal
// touched from the payments that still hold allocations on them.
func (s *PaymentService) refreshLateFlags(ctx context.Context, tx repository.LoanTx, entries []domain.ScheduleEntry, reversedLines []domain.AllocationLine, payments []domain.Payment) error {
	affected := map[int]*domain.ScheduleEntry{}
	for _, l := range reversedLines {
		for i := range entries {
			if entries[i].Number == l.InstallmentNumber {
				entries[i].IsLate = false
				affected[l.InstallmentNumber] = &entries[i]
			}
		}
	}
	if len(affected) == 0 {
		return nil
	}
	for i := range payments {
		p := &payments[i]
		if p.Status != domain.PaymentStatusRecorded {
			continue
		}
		lines, err := tx.ListAllocationsByPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			e, ok := affected[l.InstallmentNumber]
			if ok && l.Total().IsPositive() && dateAfter(p.PaymentDate, e.GraceExpiry) {
				e.IsLate = true
			}
		}
	}
	return nil
}

// GetBalance returns the outstanding component totals for a loan, served
// from the cache when warm.
func (s *PaymentService) GetBalance(ctx context.Context, loanID string) (*domain.LoanBalance, error) {
	if s.cache != nil {
		if b, ok := s.cache.GetBalance(ctx, loanID); ok {
			return b, nil
		}
	}
	entries, err := s.store.ListSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	b := &domain.LoanBalance{
		LoanID:               loanID,
		OutstandingPrincipal: decimal.Zero,
		OutstandingInterest:  decimal.Zero,
		OutstandingFees:      decimal.Zero,
		OutstandingPenalty:   decimal.Zero,
		OutstandingTotal:     decimal.Zero,
	}
	for i := range entries {
		e := &entries[i]
		b.OutstandingPrincipal = b.OutstandingPrincipal.Add(e.OutstandingPrincipal())
		b.OutstandingInterest = b.OutstandingInterest.Add(e.OutstandingInterest())
		b.OutstandingFees = b.OutstandingFees.Add(e.OutstandingFees())
		b.OutstandingPenalty = b.OutstandingPenalty.Add(e.OutstandingPenalty())
		b.OutstandingTotal = b.OutstandingTotal.Add(e.Outstanding)
	}
	if s.cache != nil {
		s.cache.SetBalance(ctx, loanID, b)
	}
	return b, nil
}
