package service

import (
	"context"
	"testing"
	"time"

	"loantrack/internal/domain"

	"github.com/shopspring/decimal"
)

func TestSweep_GraceAndOverdueTransitions(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := NewSweeperService(store)

	// May 3rd: installment 1 (due Apr 1, grace Apr 6) is past grace,
	// installment 2 (due May 1, grace May 6) is inside its grace window.
	changed, err := svc.Sweep(context.Background(), time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}

	entries, _ := store.ListSchedule(context.Background(), "loan-1")
	if entries[0].Status != domain.InstallmentStatusOverdue {
		t.Errorf("installment 1 status = %s, want OVERDUE", entries[0].Status)
	}
	if entries[1].Status != domain.InstallmentStatusInGrace {
		t.Errorf("installment 2 status = %s, want IN_GRACE", entries[1].Status)
	}
	for _, e := range entries[2:] {
		if e.Status != domain.InstallmentStatusPending {
			t.Errorf("installment %d status = %s, want PENDING", e.Number, e.Status)
		}
	}

	// a week later installment 2's grace has expired
	changed, err = svc.Sweep(context.Background(), time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	entries, _ = store.ListSchedule(context.Background(), "loan-1")
	if entries[1].Status != domain.InstallmentStatusOverdue {
		t.Errorf("installment 2 status = %s, want OVERDUE", entries[1].Status)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := NewSweeperService(store)
	today := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Sweep(context.Background(), today); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	changed, err := svc.Sweep(context.Background(), today)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed != 0 {
		t.Errorf("second sweep changed = %d, want 0", changed)
	}
}

func TestSweep_LeavesPaidInstallmentsAlone(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	paySvc := newPaymentService(store)
	if _, err := paySvc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(200_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	svc := NewSweeperService(store)
	changed, err := svc.Sweep(context.Background(), time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 0 {
		t.Errorf("changed = %d, want 0", changed)
	}

	entries, _ := store.ListSchedule(context.Background(), "loan-1")
	if entries[0].Status != domain.InstallmentStatusPaid {
		t.Errorf("installment 1 status = %s, want PAID", entries[0].Status)
	}
}
