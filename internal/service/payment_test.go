package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loantrack/internal/domain"

	"github.com/shopspring/decimal"
)

func newPaymentService(store *mockStore) *PaymentService {
	svc := NewPaymentService(store, store, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func generateFor(t *testing.T, store *mockStore, terms *domain.LoanTerms) {
	t.Helper()
	store.addLoan(terms)
	if _, err := newScheduleService(store).Generate(context.Background(), terms.ID); err != nil {
		t.Fatalf("generate schedule: %v", err)
	}
}

func TestAllocatePayment_ComponentOrder(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	entries := []domain.ScheduleEntry{{
		ID:           "e1",
		LoanID:       "loan-1",
		Number:       1,
		DueDate:      due,
		GraceExpiry:  due.AddDate(0, 0, 5),
		PenaltyDue:   decimal.NewFromInt(50),
		FeeDue:       decimal.NewFromInt(20),
		InterestDue:  decimal.NewFromInt(100),
		PrincipalDue: decimal.NewFromInt(500),
	}}
	p := &domain.Payment{
		ID:          "p1",
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(300),
		PaymentDate: due,
		Status:      domain.PaymentStatusRecorded,
	}

	lines, targetIdx, leftover := allocatePayment(entries, p, testNow)

	if targetIdx != 0 {
		t.Fatalf("targetIdx = %d, want 0", targetIdx)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 allocation line, got %d", len(lines))
	}
	l := lines[0]
	if !l.Penalty.Equal(decimal.NewFromInt(50)) ||
		!l.Fees.Equal(decimal.NewFromInt(20)) ||
		!l.Interest.Equal(decimal.NewFromInt(100)) ||
		!l.Principal.Equal(decimal.NewFromInt(130)) {
		t.Errorf("allocation = penalty %s fees %s interest %s principal %s, want 50/20/100/130",
			l.Penalty, l.Fees, l.Interest, l.Principal)
	}
	if !leftover.IsZero() {
		t.Errorf("leftover = %s, want 0", leftover)
	}
	if !entries[0].OutstandingPrincipal().Equal(decimal.NewFromInt(370)) {
		t.Errorf("outstanding principal = %s, want 370", entries[0].OutstandingPrincipal())
	}
	if p.IsLate {
		t.Error("payment on the due date must not be late")
	}
}

func TestApply_OverpaymentCascadesToNextInstallment(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(250_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if res.InstallmentNumber != 1 || !res.FullyPaid {
		t.Errorf("result installment=%d fullyPaid=%v, want installment 1 fully paid", res.InstallmentNumber, res.FullyPaid)
	}
	if !res.Overpayment.IsZero() {
		t.Errorf("overpayment = %s, want 0", res.Overpayment)
	}

	entries, _ := store.ListSchedule(context.Background(), "loan-1")
	if entries[0].Status != domain.InstallmentStatusPaid {
		t.Errorf("installment 1 status = %s, want PAID", entries[0].Status)
	}
	if !entries[1].PaidAmount.Equal(decimal.NewFromInt(50_000)) {
		t.Errorf("installment 2 paid = %s, want 50000", entries[1].PaidAmount)
	}
	if !entries[1].Outstanding.Equal(decimal.NewFromInt(150_000)) {
		t.Errorf("installment 2 outstanding = %s, want 150000", entries[1].Outstanding)
	}

	tracking, err := store.GetTracking(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("tracking: %v", err)
	}
	if !tracking.CumulativePaid.Equal(decimal.NewFromInt(250_000)) {
		t.Errorf("cumulative paid = %s, want 250000", tracking.CumulativePaid)
	}
	if tracking.InstallmentsPaid != 1 || tracking.InstallmentsRemaining != 5 {
		t.Errorf("installments paid/remaining = %d/%d, want 1/5", tracking.InstallmentsPaid, tracking.InstallmentsRemaining)
	}
	if tracking.NextPaymentDue == nil || !tracking.NextPaymentDue.Equal(entries[1].DueDate) {
		t.Errorf("next payment due = %v, want %v", tracking.NextPaymentDue, entries[1].DueDate)
	}
	if !tracking.NextPaymentAmount.Equal(decimal.NewFromInt(150_000)) {
		t.Errorf("next payment amount = %s, want 150000", tracking.NextPaymentAmount)
	}
}

func TestApply_OverpaymentBeyondSchedule(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(1_300_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Overpayment.Equal(decimal.NewFromInt(100_000)) {
		t.Errorf("overpayment = %s, want 100000", res.Overpayment)
	}

	tracking, _ := store.GetTracking(context.Background(), "loan-1")
	if !tracking.HasOverpayments {
		t.Error("expected HasOverpayments")
	}
	if !tracking.CompletionPercentage.Equal(decimal.NewFromInt(100)) {
		t.Errorf("completion = %s, want 100", tracking.CompletionPercentage)
	}
	if tracking.InstallmentsRemaining != 0 {
		t.Errorf("installments remaining = %d, want 0", tracking.InstallmentsRemaining)
	}
	if tracking.NextPaymentDue != nil {
		t.Errorf("next payment due = %v, want nil", tracking.NextPaymentDue)
	}
}

func TestApply_PaymentAfterFullSettlementIsRecorded(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	if _, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(1_200_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(100),
		PaymentDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("apply on settled loan: %v", err)
	}
	if !res.Overpayment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("overpayment = %s, want 100", res.Overpayment)
	}
	if res.Installment != nil {
		t.Error("expected no target installment on a settled schedule")
	}

	payments, _ := store.ListPayments(context.Background(), "loan-1")
	if len(payments) != 2 {
		t.Fatalf("expected 2 recorded payments, got %d", len(payments))
	}
	tracking, _ := store.GetTracking(context.Background(), "loan-1")
	if !tracking.HasOverpayments {
		t.Error("expected HasOverpayments")
	}
}

func TestApply_LatePaymentFlagged(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(200_000),
		PaymentDate: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), // grace ended Apr 6
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Payment.IsLate {
		t.Error("expected late payment")
	}
	if res.Payment.DaysLate != 9 {
		t.Errorf("days late = %d, want 9", res.Payment.DaysLate)
	}

	entries, _ := store.ListSchedule(context.Background(), "loan-1")
	if !entries[0].IsLate {
		t.Error("expected installment 1 flagged late")
	}
}

func TestApply_WithinGraceNotLate(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(200_000),
		PaymentDate: time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), // last grace day
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Payment.IsLate {
		t.Error("payment within grace must not be late")
	}
}

func TestApply_Validation(t *testing.T) {
	svc := newPaymentService(newMockStore())
	cases := []PaymentInput{
		{Amount: decimal.NewFromInt(100), PaymentDate: testNow},
		{LoanID: "loan-1", PaymentDate: testNow},
		{LoanID: "loan-1", Amount: decimal.NewFromInt(-5), PaymentDate: testNow},
		{LoanID: "loan-1", Amount: decimal.NewFromInt(100)},
	}
	for i, in := range cases {
		_, err := svc.Apply(context.Background(), in)
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestApply_NoScheduleYet(t *testing.T) {
	store := newMockStore()
	store.addLoan(zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	_, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(100),
		PaymentDate: testNow,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReverse_RestoresScheduleAndTracking(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	before, _ := store.ListSchedule(context.Background(), "loan-1")
	trackingBefore, _ := store.GetTracking(context.Background(), "loan-1")

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(450_000),
		PaymentDate: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), // late
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	reversed, err := svc.Reverse(context.Background(), res.Payment.ID, "teller error")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversed.Status != domain.PaymentStatusReversed {
		t.Errorf("status = %s, want REVERSED", reversed.Status)
	}
	if reversed.ReversalReason != "teller error" {
		t.Errorf("reason = %q", reversed.ReversalReason)
	}

	after, _ := store.ListSchedule(context.Background(), "loan-1")
	for i := range before {
		b, a := before[i], after[i]
		if !a.PaidAmount.Equal(b.PaidAmount) || !a.Outstanding.Equal(b.Outstanding) || a.Status != b.Status || a.IsLate != b.IsLate {
			t.Errorf("entry %d not restored: paid %s->%s outstanding %s->%s status %s->%s late %v->%v",
				b.Number, b.PaidAmount, a.PaidAmount, b.Outstanding, a.Outstanding, b.Status, a.Status, b.IsLate, a.IsLate)
		}
	}

	trackingAfter, _ := store.GetTracking(context.Background(), "loan-1")
	if !trackingBefore.Equal(trackingAfter) {
		t.Errorf("tracking not restored:\nbefore %+v\nafter  %+v", trackingBefore, trackingAfter)
	}
}

func TestReverse_OnlyRecordedPayments(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	svc := newPaymentService(store)
	res, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(100_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := svc.Reverse(context.Background(), res.Payment.ID, "first"); err != nil {
		t.Fatalf("first reverse: %v", err)
	}

	_, err = svc.Reverse(context.Background(), res.Payment.ID, "second")
	var conflict *domain.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError on double reversal, got %v", err)
	}
}

func TestReverse_RequiresReason(t *testing.T) {
	svc := newPaymentService(newMockStore())
	_, err := svc.Reverse(context.Background(), "p1", "")
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

type mockBalanceCache struct {
	balances    map[string]*domain.LoanBalance
	hits        int
	invalidated int
}

func newMockBalanceCache() *mockBalanceCache {
	return &mockBalanceCache{balances: map[string]*domain.LoanBalance{}}
}

func (c *mockBalanceCache) GetBalance(ctx context.Context, loanID string) (*domain.LoanBalance, bool) {
	b, ok := c.balances[loanID]
	if ok {
		c.hits++
	}
	return b, ok
}

func (c *mockBalanceCache) SetBalance(ctx context.Context, loanID string, b *domain.LoanBalance) {
	c.balances[loanID] = b
}

func (c *mockBalanceCache) InvalidateBalance(ctx context.Context, loanID string) {
	delete(c.balances, loanID)
	c.invalidated++
}

func TestGetBalance_CachedAndInvalidatedOnApply(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	cache := newMockBalanceCache()
	svc := NewPaymentService(store, store, cache, nil)
	svc.now = func() time.Time { return testNow }

	b, err := svc.GetBalance(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !b.OutstandingTotal.Equal(decimal.NewFromInt(1_200_000)) {
		t.Errorf("outstanding total = %s, want 1200000", b.OutstandingTotal)
	}

	if _, err := svc.GetBalance(context.Background(), "loan-1"); err != nil {
		t.Fatalf("cached balance: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	if _, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(200_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cache.invalidated == 0 {
		t.Error("expected cache invalidation after apply")
	}

	b, err = svc.GetBalance(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("balance after apply: %v", err)
	}
	if !b.OutstandingTotal.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("outstanding total = %s, want 1000000", b.OutstandingTotal)
	}
}

func TestApply_EmitsInstallmentPaidEvent(t *testing.T) {
	store := newMockStore()
	generateFor(t, store, zeroInterestLoan("loan-1", 1_200_000, 6))

	notifier := &recordingNotifier{}
	svc := NewPaymentService(store, store, nil, notifier)
	svc.now = func() time.Time { return testNow }

	if _, err := svc.Apply(context.Background(), PaymentInput{
		LoanID:      "loan-1",
		Amount:      decimal.NewFromInt(200_000),
		PaymentDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	types := notifier.types()
	if len(types) != 1 || types[0] != "installment_paid" {
		t.Errorf("events = %v, want [installment_paid]", types)
	}
}
