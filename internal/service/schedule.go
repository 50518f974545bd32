package service

import (
	"context"
	"fmt"
	"time"

	"loantrack/internal/domain"
	"loantrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var daysInYear = decimal.NewFromInt(365)

// ScheduleService builds and owns amortization schedules.
type ScheduleService struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewScheduleService(store Store, notifier Notifier) *ScheduleService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ScheduleService{store: store, notifier: notifier, now: time.Now}
}

// Generate creates the installment schedule for a disbursed loan. Fails with
// a state conflict when entries already exist; regeneration is an explicit
// admin operation (Regenerate).
func (s *ScheduleService) Generate(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	var out []domain.ScheduleEntry
	err := s.store.WithLoanTx(ctx, loanID, func(tx repository.LoanTx) error {
		terms, err := tx.GetLoanTerms(ctx, loanID)
		if err != nil {
			return err
		}
		existing, err := tx.ListSchedule(ctx, loanID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &domain.StateConflictError{
				Entity:  "schedule",
				Current: fmt.Sprintf("%d installments", len(existing)),
				Message: domain.ErrAlreadyScheduled.Error(),
			}
		}

		out, err = buildSchedule(terms, s.now())
		if err != nil {
			return err
		}
		if err := tx.InsertScheduleEntries(ctx, out); err != nil {
			return err
		}
		tracking := deriveTracking(terms, out, nil, s.now())
		return tx.SaveTracking(ctx, tracking)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, domain.ScheduleGenerated{LoanID: loanID, InstallmentCount: len(out)})
	return out, nil
}

// Regenerate deletes and rebuilds the schedule. Guarded: refused once any
// recorded payment exists, since allocations would dangle.
func (s *ScheduleService) Regenerate(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	var out []domain.ScheduleEntry
	err := s.store.WithLoanTx(ctx, loanID, func(tx repository.LoanTx) error {
		terms, err := tx.GetLoanTerms(ctx, loanID)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, loanID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Status == domain.PaymentStatusRecorded {
				return &domain.StateConflictError{
					Entity:  "schedule",
					Current: "has recorded payments",
					Message: "cannot regenerate schedule with recorded payments",
				}
			}
		}
		if err := tx.DeleteSchedule(ctx, loanID); err != nil {
			return err
		}
		out, err = buildSchedule(terms, s.now())
		if err != nil {
			return err
		}
		if err := tx.InsertScheduleEntries(ctx, out); err != nil {
			return err
		}
		tracking := deriveTracking(terms, out, nil, s.now())
		return tx.SaveTracking(ctx, tracking)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, domain.ScheduleGenerated{LoanID: loanID, InstallmentCount: len(out)})
	return out, nil
}

// Get returns the stored schedule in due-date order.
func (s *ScheduleService) Get(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	entries, err := s.store.ListSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

// buildSchedule computes the installment plan from the loan terms.
// Principal across entries sums exactly to the loan principal, and
// principal+interest+fee across entries sums exactly to the total payable;
// rounding remainders land on the final installment.
func buildSchedule(terms *domain.LoanTerms, now time.Time) ([]domain.ScheduleEntry, error) {
	n := terms.Installments
	if n <= 0 {
		return nil, &domain.ValidationError{Field: "installments", Message: "must be positive"}
	}
	if !terms.Principal.IsPositive() {
		return nil, &domain.ValidationError{Field: "principal", Message: "must be positive"}
	}
	if terms.FirstRepaymentDue.IsZero() {
		return nil, &domain.ValidationError{Field: "first_repayment_due", Message: "required"}
	}

	principals := splitEven(terms.Principal, n)
	interests := interestPortions(terms, n)

	totalInterest := decimal.Zero
	for _, v := range interests {
		totalInterest = totalInterest.Add(v)
	}

	totalPayable := terms.TotalPayable
	if !totalPayable.IsPositive() {
		totalPayable = terms.Principal.Add(totalInterest)
	}
	feeTotal := totalPayable.Sub(terms.Principal).Sub(totalInterest)
	if feeTotal.IsNegative() {
		// Total payable below principal+interest: squeeze interest so the
		// completeness invariant still holds.
		interests = splitEven(positiveOrZero(totalPayable.Sub(terms.Principal)), n)
		feeTotal = decimal.Zero
	}
	fees := splitEven(feeTotal, n)

	entries := make([]domain.ScheduleEntry, 0, n)
	due := terms.FirstRepaymentDue
	for i := 0; i < n; i++ {
		e := domain.ScheduleEntry{
			ID:           uuid.NewString(),
			LoanID:       terms.ID,
			Number:       i + 1,
			DueDate:      due,
			GraceExpiry:  due.AddDate(0, 0, terms.GracePeriodDays),
			PrincipalDue: principals[i],
			InterestDue:  interests[i],
			FeeDue:       fees[i],
			PenaltyDue:   decimal.Zero,
			Status:       domain.InstallmentStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		e.PaidAmount = decimal.Zero
		e.Outstanding = e.TotalDue()
		entries = append(entries, e)

		switch terms.Frequency {
		case domain.FrequencyDaily:
			due = due.AddDate(0, 0, 1)
		case domain.FrequencyWeekly:
			due = due.AddDate(0, 0, 7)
		default:
			due = due.AddDate(0, 1, 0)
		}
	}
	return entries, nil
}

// splitEven divides total into n two-decimal portions, putting the rounding
// remainder on the last portion.
func splitEven(total decimal.Decimal, n int) []decimal.Decimal {
	per := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	out := make([]decimal.Decimal, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		out[i] = per
		running = running.Add(per)
	}
	out[n-1] = total.Sub(running)
	return out
}

// interestPortions computes the per-installment interest for the loan's
// method. FLAT spreads principal × rate% × (duration/365) evenly;
// REDUCING_BALANCE charges rate%/periods-per-year on the declining principal.
func interestPortions(terms *domain.LoanTerms, n int) []decimal.Decimal {
	ratePct := terms.InterestRate.Div(hundred)

	if terms.InterestMethod == domain.InterestReducingBalance {
		periodRate := ratePct.Div(decimal.NewFromInt(terms.PeriodsPerYear()))
		principals := splitEven(terms.Principal, n)
		out := make([]decimal.Decimal, n)
		remaining := terms.Principal
		for i := 0; i < n; i++ {
			out[i] = remaining.Mul(periodRate).Round(2)
			remaining = remaining.Sub(principals[i])
		}
		return out
	}

	years := decimal.NewFromInt(int64(terms.DurationDays())).Div(daysInYear)
	total := terms.Principal.Mul(ratePct).Mul(years).Round(2)
	return splitEven(total, n)
}

func positiveOrZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
