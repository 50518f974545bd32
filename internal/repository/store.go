package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loantrack/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the subset of *sql.DB / *sql.Tx the query helpers need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoanTx is the transactional view handed to a unit of work running under the
// per-loan lock. Everything a payment application or a recalculation touches
// goes through here so it commits or rolls back as one.
type LoanTx interface {
	GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error)

	ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error)
	InsertScheduleEntries(ctx context.Context, entries []domain.ScheduleEntry) error
	UpdateScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error
	DeleteSchedule(ctx context.Context, loanID string) error

	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	InsertPayment(ctx context.Context, p *domain.Payment) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error
	ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error)

	InsertAllocations(ctx context.Context, lines []domain.AllocationLine) error
	ListAllocationsByPayment(ctx context.Context, paymentID string) ([]domain.AllocationLine, error)
	DeleteAllocationsByPayment(ctx context.Context, paymentID string) error
	DeleteAllocationsForLoan(ctx context.Context, loanID string) error

	GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error)
	SaveTracking(ctx context.Context, t *domain.LoanTracking) error
}

// Store owns the database handle and the transaction/locking discipline.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

// DB exposes the raw handle for bootstrap code.
func (s *Store) DB() *sql.DB { return s.db }

type loanTx struct {
	tx *sql.Tx
}

// WithLoanTx runs fn inside a transaction holding an exclusive advisory lock
// on the loan. Concurrent payments, reversals and recalculations for the
// same loan serialize here; different loans do not block each other. A lock
// wait beyond the configured timeout surfaces as domain.ErrLockTimeout.
func (s *Store) WithLoanTx(ctx context.Context, loanID string, fn func(tx LoanTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	timeoutMs := int(s.lockTimeout / time.Millisecond)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs)); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "loan:"+loanID); err != nil {
		return mapLockErr(err)
	}

	if err := fn(&loanTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return domain.ErrLockTimeout
	}
	return err
}

// Read-only paths that do not need the loan lock.

func (s *Store) GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	return getLoanTerms(ctx, s.db, loanID)
}

func (s *Store) ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	return listSchedule(ctx, s.db, loanID)
}

func (s *Store) ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	return listPayments(ctx, s.db, loanID)
}

func (s *Store) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return getPayment(ctx, s.db, paymentID)
}

func (s *Store) GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	return getTracking(ctx, s.db, loanID)
}

// ListTrackedLoanIDs returns every loan that has a generated schedule, in a
// stable order so bulk recalculation progresses deterministically.
func (s *Store) ListTrackedLoanIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT loan_id FROM installment_schedule ORDER BY loan_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOpenEntries returns every installment that is not fully paid, for the
// status sweeper.
func (s *Store) ListOpenEntries(ctx context.Context) ([]domain.ScheduleEntry, error) {
	return listEntriesWhere(ctx, s.db, `status <> 'PAID'`)
}

// UpdateEntryStatus writes just the derived status of an installment. The
// sweeper recomputes status from dates only, so last-writer-wins with a
// concurrent payment is safe.
func (s *Store) UpdateEntryStatus(ctx context.Context, entryID string, status domain.InstallmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE installment_schedule SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *loanTx) GetLoanTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	return getLoanTerms(ctx, t.tx, loanID)
}

func (t *loanTx) ListSchedule(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error) {
	return listSchedule(ctx, t.tx, loanID)
}

func (t *loanTx) InsertScheduleEntries(ctx context.Context, entries []domain.ScheduleEntry) error {
	return insertScheduleEntries(ctx, t.tx, entries)
}

func (t *loanTx) UpdateScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error {
	return updateScheduleEntry(ctx, t.tx, e)
}

func (t *loanTx) DeleteSchedule(ctx context.Context, loanID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM installment_schedule WHERE loan_id = $1`, loanID)
	return err
}

func (t *loanTx) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return getPayment(ctx, t.tx, paymentID)
}

func (t *loanTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	return insertPayment(ctx, t.tx, p)
}

func (t *loanTx) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	return updatePayment(ctx, t.tx, p)
}

func (t *loanTx) ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	return listPayments(ctx, t.tx, loanID)
}

func (t *loanTx) InsertAllocations(ctx context.Context, lines []domain.AllocationLine) error {
	return insertAllocations(ctx, t.tx, lines)
}

func (t *loanTx) ListAllocationsByPayment(ctx context.Context, paymentID string) ([]domain.AllocationLine, error) {
	return listAllocationsByPayment(ctx, t.tx, paymentID)
}

func (t *loanTx) DeleteAllocationsByPayment(ctx context.Context, paymentID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM payment_allocations WHERE payment_id = $1`, paymentID)
	return err
}

func (t *loanTx) DeleteAllocationsForLoan(ctx context.Context, loanID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM payment_allocations WHERE loan_id = $1`, loanID)
	return err
}

func (t *loanTx) GetTracking(ctx context.Context, loanID string) (*domain.LoanTracking, error) {
	return getTracking(ctx, t.tx, loanID)
}

func (t *loanTx) SaveTracking(ctx context.Context, tr *domain.LoanTracking) error {
	return saveTracking(ctx, t.tx, tr)
}
