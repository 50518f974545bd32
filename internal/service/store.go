package service

import (
	"context"

	"loantrack/internal/domain"
	"loantrack/internal/repository"
)

// Store is what the services need from the persistence layer. Implemented by
// *repository.Store; tests substitute an in-memory version.
type Store interface {
	WithLoanTx(ctx context.Context, loanID string, fn func(tx repository.LoanTx) error) error

	GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error)
	ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error)
	ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error)
	GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error)
	ListTrackedLoanIDs(ctx context.Context) ([]string, error)
	ListOpenEntries(ctx context.Context) ([]domain.ScheduleEntry, error)
	UpdateEntryStatus(ctx context.Context, entryID string, status domain.InstallmentStatus) error
}
