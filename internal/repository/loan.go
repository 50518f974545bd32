package repository

import (
	"context"
	"database/sql"
	"errors"

	"loantrack/internal/domain"
)

func getLoanTerms(ctx context.Context, q dbtx, loanID string) (*domain.LoanTerms, error) {
	const query = `SELECT id, number, principal, interest_rate, interest_method, duration, duration_unit,
		frequency, installments, grace_period_days, disbursement_date, first_repayment_due, total_payable
		FROM loans WHERE id = $1`

	var t domain.LoanTerms
	var method, unit, freq string
	err := q.QueryRowContext(ctx, query, loanID).Scan(
		&t.ID,
		&t.Number,
		&t.Principal,
		&t.InterestRate,
		&method,
		&t.Duration,
		&unit,
		&freq,
		&t.Installments,
		&t.GracePeriodDays,
		&t.DisbursementDate,
		&t.FirstRepaymentDue,
		&t.TotalPayable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.InterestMethod = domain.InterestMethod(method)
	t.DurationUnit = domain.DurationUnit(unit)
	t.Frequency = domain.Frequency(freq)
	return &t, nil
}
