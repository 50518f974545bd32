package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"loantrack/internal/domain"
	"loantrack/internal/repository"
)

// mockStore is an in-memory Store. Lists return copies, like rows scanned
// from the database, so services must write mutations back explicitly.
type mockStore struct {
	mu          sync.Mutex
	terms       map[string]*domain.LoanTerms
	entries     map[string][]domain.ScheduleEntry
	payments    map[string][]domain.Payment
	allocations map[string][]domain.AllocationLine
	tracking    map[string]*domain.LoanTracking
}

func newMockStore() *mockStore {
	return &mockStore{
		terms:       map[string]*domain.LoanTerms{},
		entries:     map[string][]domain.ScheduleEntry{},
		payments:    map[string][]domain.Payment{},
		allocations: map[string][]domain.AllocationLine{},
		tracking:    map[string]*domain.LoanTracking{},
	}
}

func (m *mockStore) addLoan(t *domain.LoanTerms) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms[t.ID] = t
}

func (m *mockStore) WithLoanTx(ctx context.Context, loanID string, fn func(tx repository.LoanTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&mockTx{store: m})
}

func (m *mockStore) GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLoanTerms(loanID)
}

func (m *mockStore) getLoanTerms(loanID string) (*domain.LoanTerms, error) {
	t, ok := m.terms[loanID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listSchedule(loanID), nil
}

func (m *mockStore) listSchedule(loanID string) []domain.ScheduleEntry {
	out := append([]domain.ScheduleEntry(nil), m.entries[loanID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].Number < out[j].Number
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

func (m *mockStore) ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPayments(loanID), nil
}

func (m *mockStore) listPayments(loanID string) []domain.Payment {
	out := append([]domain.Payment(nil), m.payments[loanID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].PaymentDate.Before(out[j].PaymentDate)
	})
	return out
}

func (m *mockStore) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPayment(paymentID)
}

func (m *mockStore) getPayment(paymentID string) (*domain.Payment, error) {
	for _, list := range m.payments {
		for i := range list {
			if list[i].ID == paymentID {
				cp := list[i]
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTracking(loanID)
}

func (m *mockStore) getTracking(loanID string) (*domain.LoanTracking, error) {
	t, ok := m.tracking[loanID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTrackedLoanIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.entries {
		if len(m.entries[id]) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStore) ListOpenEntries(ctx context.Context) ([]domain.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScheduleEntry
	for loanID := range m.entries {
		for _, e := range m.listSchedule(loanID) {
			if e.Status != domain.InstallmentStatusPaid {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *mockStore) UpdateEntryStatus(ctx context.Context, entryID string, status domain.InstallmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for loanID := range m.entries {
		for i := range m.entries[loanID] {
			if m.entries[loanID][i].ID == entryID {
				m.entries[loanID][i].Status = status
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// mockTx reuses the store maps directly; WithLoanTx already holds the lock.
type mockTx struct {
	store *mockStore
}

func (t *mockTx) GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	return t.store.getLoanTerms(loanID)
}

func (t *mockTx) ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	return t.store.listSchedule(loanID), nil
}

func (t *mockTx) InsertScheduleEntries(ctx context.Context, entries []domain.ScheduleEntry) error {
	for _, e := range entries {
		t.store.entries[e.LoanID] = append(t.store.entries[e.LoanID], e)
	}
	return nil
}

func (t *mockTx) UpdateScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error {
	list := t.store.entries[e.LoanID]
	for i := range list {
		if list[i].ID == e.ID {
			list[i] = *e
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *mockTx) DeleteSchedule(ctx context.Context, loanID string) error {
	delete(t.store.entries, loanID)
	return nil
}

func (t *mockTx) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return t.store.getPayment(paymentID)
}

func (t *mockTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	t.store.payments[p.LoanID] = append(t.store.payments[p.LoanID], *p)
	return nil
}

func (t *mockTx) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	list := t.store.payments[p.LoanID]
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = *p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *mockTx) ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	return t.store.listPayments(loanID), nil
}

func (t *mockTx) InsertAllocations(ctx context.Context, lines []domain.AllocationLine) error {
	for _, l := range lines {
		t.store.allocations[l.PaymentID] = append(t.store.allocations[l.PaymentID], l)
	}
	return nil
}

func (t *mockTx) ListAllocationsByPayment(ctx context.Context, paymentID string) ([]domain.AllocationLine, error) {
	return append([]domain.AllocationLine(nil), t.store.allocations[paymentID]...), nil
}

func (t *mockTx) DeleteAllocationsByPayment(ctx context.Context, paymentID string) error {
	delete(t.store.allocations, paymentID)
	return nil
}

func (t *mockTx) DeleteAllocationsForLoan(ctx context.Context, loanID string) error {
	for paymentID, lines := range t.store.allocations {
		if len(lines) > 0 && lines[0].LoanID == loanID {
			delete(t.store.allocations, paymentID)
		}
	}
	return nil
}

func (t *mockTx) GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	return t.store.getTracking(loanID)
}

func (t *mockTx) SaveTracking(ctx context.Context, tr *domain.LoanTracking) error {
	cp := *tr
	cp.UpdatedAt = time.Now()
	t.store.tracking[tr.LoanID] = &cp
	return nil
}

// mockSequenceSource is an in-memory counter table guarded by a mutex, the
// same contract the row lock gives the real repository.
type mockSequenceSource struct {
	mu     sync.Mutex
	values map[string]int
}

func newMockSequenceSource() *mockSequenceSource {
	return &mockSequenceSource{values: map[string]int{}}
}

func (m *mockSequenceSource) Next(ctx context.Context, prefix, branch, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefix + "|" + branch + "|" + period
	if m.values[key] >= domain.SequenceMax {
		return 0, domain.ErrSequenceExhausted
	}
	m.values[key]++
	return m.values[key], nil
}

func (m *mockSequenceSource) Peek(ctx context.Context, prefix, branch, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[prefix+"|"+branch+"|"+period], nil
}

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.EventType())
	}
	return out
}
