package service

import (
	"context"
	"log"
	"time"

	"loantrack/internal/domain"
)

// SweeperService is the daily batch pass that moves installments into
// OVERDUE or IN_GRACE without waiting for a payment event. It only
// recomputes status from dates, so running it twice, skipping a day or
// racing a payment all converge to the same answer.
type SweeperService struct {
	store Store
	now   func() time.Time
}

func NewSweeperService(store Store) *SweeperService {
	return &SweeperService{store: store, now: time.Now}
}

// Sweep re-evaluates every open installment against today and writes back
// the ones whose status changed. Returns the number of transitions.
func (s *SweeperService) Sweep(ctx context.Context, today time.Time) (int, error) {
	entries, err := s.store.ListOpenEntries(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		e := entries[i]
		before := e.Status
		e.Refresh(today)
		if e.Status == before {
			continue
		}
		if err := s.store.UpdateEntryStatus(ctx, e.ID, e.Status); err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// Run blocks, sweeping once immediately and then on every tick until the
// context is cancelled. Wired to a daily ticker in main.
func (s *SweeperService) Run(ctx context.Context, interval time.Duration) {
	if n, err := s.Sweep(ctx, s.now()); err != nil {
		log.Printf("[sweeper] initial sweep: %v", err)
	} else {
		log.Printf("[sweeper] initial sweep moved %d installments", n)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx, s.now())
			if err != nil {
				log.Printf("[sweeper] sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[sweeper] moved %d installments", n)
			}
		}
	}
}
