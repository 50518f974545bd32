package service

import (
	"context"
	"log"
	"time"

	"loantrack/internal/domain"
	"loantrack/internal/repository"

	"github.com/shopspring/decimal"
)

// TrackingService owns the derived summary and its self-healing
// recalculation: a full chronological replay of the payment history against
// a reset schedule, using the same allocation engine as live payments.
type TrackingService struct {
	store    Store
	cache    BalanceCache
	notifier Notifier
	now      func() time.Time
}

func NewTrackingService(store Store, cache BalanceCache, notifier Notifier) *TrackingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TrackingService{store: store, cache: cache, notifier: notifier, now: time.Now}
}

// Get returns the stored tracking row.
func (s *TrackingService) Get(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	return s.store.GetTracking(ctx, loanID)
}

// Recalculate rebuilds the tracking row for one loan from scratch. When the
// replay disagrees with the stored row the drift is logged and the replayed
// value wins; the caller never sees an error for drift.
func (s *TrackingService) Recalculate(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	var result *domain.LoanTracking
	err := s.store.WithLoanTx(ctx, loanID, func(tx repository.LoanTx) error {
		replayed, err := s.replay(ctx, tx, loanID, true)
		if err != nil {
			return err
		}
		stored, err := tx.GetTracking(ctx, loanID)
		if err != nil && err != domain.ErrNotFound {
			return err
		}
		if stored != nil && !stored.Equal(replayed) {
			log.Printf("[tracking] consistency drift on loan %s, overwriting with replayed values", loanID)
		}
		if err := tx.SaveTracking(ctx, replayed); err != nil {
			return err
		}
		result = replayed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateBalance(ctx, loanID)
	}
	s.notifier.Notify(ctx, domain.TrackingRecalculated{LoanID: loanID})
	return result, nil
}

// RecalculateAll replays every tracked loan. Each loan commits in its own
// transaction, so cancelling between loans leaves no partial state behind.
func (s *TrackingService) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListTrackedLoanIDs(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.Recalculate(ctx, id); err != nil {
			log.Printf("[tracking] recalculate loan %s: %v", id, err)
			continue
		}
		done++
	}
	return done, nil
}

// RecalculateInconsistent repairs only the loans whose stored tracking
// disagrees with a replay of their payment history.
func (s *TrackingService) RecalculateInconsistent(ctx context.Context) (int, error) {
	ids, err := s.store.ListTrackedLoanIDs(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		drifted, err := s.isDrifted(ctx, id)
		if err != nil {
			log.Printf("[tracking] drift check loan %s: %v", id, err)
			continue
		}
		if !drifted {
			continue
		}
		if _, err := s.Recalculate(ctx, id); err != nil {
			log.Printf("[tracking] repair loan %s: %v", id, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (s *TrackingService) isDrifted(ctx context.Context, loanID string) (bool, error) {
	terms, err := s.store.GetLoanTerms(ctx, loanID)
	if err != nil {
		return false, err
	}
	entries, err := s.store.ListSchedule(ctx, loanID)
	if err != nil {
		return false, err
	}
	payments, err := s.store.ListPayments(ctx, loanID)
	if err != nil {
		return false, err
	}
	stored, err := s.store.GetTracking(ctx, loanID)
	if err == domain.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	replayed := replayInMemory(terms, entries, payments, s.now())
	return !stored.Equal(replayed), nil
}

// replay resets the schedule's paid amounts and re-applies every
// non-reversed payment in chronological order, rewriting allocation lines
// and payment breakdowns, then derives a fresh tracking row. Running it
// twice in a row is a no-op the second time.
func (s *TrackingService) replay(ctx context.Context, tx repository.LoanTx, loanID string, persist bool) (*domain.LoanTracking, error) {
	terms, err := tx.GetLoanTerms(ctx, loanID)
	if err != nil {
		return nil, err
	}
	entries, err := tx.ListSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	payments, err := tx.ListPayments(ctx, loanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resetEntries(entries, now)

	if persist {
		if err := tx.DeleteAllocationsForLoan(ctx, loanID); err != nil {
			return nil, err
		}
	}

	var allLines []domain.AllocationLine
	for i := range payments {
		p := &payments[i]
		if p.Status != domain.PaymentStatusRecorded {
			continue
		}
		p.IsLate = false
		p.DaysLate = 0
		lines, _, _ := allocatePayment(entries, p, now)
		allLines = append(allLines, lines...)
		if persist {
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return nil, err
			}
		}
	}

	if persist {
		if err := tx.InsertAllocations(ctx, allLines); err != nil {
			return nil, err
		}
		for i := range entries {
			if err := tx.UpdateScheduleEntry(ctx, &entries[i]); err != nil {
				return nil, err
			}
		}
	}

	return deriveTracking(terms, entries, payments, now), nil
}

// replayInMemory is the read-only drift probe used by
// RecalculateInconsistent; it never writes.
func replayInMemory(terms *domain.LoanTerms, entries []domain.ScheduleEntry, payments []domain.Payment, now time.Time) *domain.LoanTracking {
	resetEntries(entries, now)
	for i := range payments {
		p := &payments[i]
		if p.Status != domain.PaymentStatusRecorded {
			continue
		}
		p.IsLate = false
		p.DaysLate = 0
		allocatePayment(entries, p, now)
	}
	return deriveTracking(terms, entries, payments, now)
}

func resetEntries(entries []domain.ScheduleEntry, now time.Time) {
	for i := range entries {
		e := &entries[i]
		e.PrincipalPaid = decimal.Zero
		e.InterestPaid = decimal.Zero
		e.FeePaid = decimal.Zero
		e.PenaltyPaid = decimal.Zero
		e.IsLate = false
		e.Refresh(now)
	}
}
