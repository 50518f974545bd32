package repository

import (
	"context"
	"database/sql"
	"errors"

	"loantrack/internal/domain"
)

const paymentColumns = `id, loan_id, amount, payment_date, method, reference, notes,
	principal_paid, interest_paid, fees_paid, penalty_paid,
	status, is_late, days_late, reversal_reason, created_at, updated_at`

func getPayment(ctx context.Context, q dbtx, paymentID string) (*domain.Payment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID)
	p, err := scanPayment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func listPayments(ctx context.Context, q dbtx, loanID string) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY payment_date, created_at`,
		loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(scan func(dest ...any) error) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	if err := scan(
		&p.ID,
		&p.LoanID,
		&p.Amount,
		&p.PaymentDate,
		&p.Method,
		&p.Reference,
		&p.Notes,
		&p.PrincipalPaid,
		&p.InterestPaid,
		&p.FeesPaid,
		&p.PenaltyPaid,
		&status,
		&p.IsLate,
		&p.DaysLate,
		&p.ReversalReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func insertPayment(ctx context.Context, q dbtx, p *domain.Payment) error {
	const query = `INSERT INTO payments
		(id, loan_id, amount, payment_date, method, reference, notes,
		 principal_paid, interest_paid, fees_paid, penalty_paid,
		 status, is_late, days_late, reversal_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := q.ExecContext(ctx, query,
		p.ID, p.LoanID, p.Amount, p.PaymentDate, p.Method, p.Reference, p.Notes,
		p.PrincipalPaid, p.InterestPaid, p.FeesPaid, p.PenaltyPaid,
		string(p.Status), p.IsLate, p.DaysLate, p.ReversalReason, p.CreatedAt, p.UpdatedAt)
	return err
}

func updatePayment(ctx context.Context, q dbtx, p *domain.Payment) error {
	const query = `UPDATE payments SET
		principal_paid = $1, interest_paid = $2, fees_paid = $3, penalty_paid = $4,
		status = $5, is_late = $6, days_late = $7, reversal_reason = $8, updated_at = now()
		WHERE id = $9`

	res, err := q.ExecContext(ctx, query,
		p.PrincipalPaid, p.InterestPaid, p.FeesPaid, p.PenaltyPaid,
		string(p.Status), p.IsLate, p.DaysLate, p.ReversalReason, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertAllocations(ctx context.Context, q dbtx, lines []domain.AllocationLine) error {
	const query = `INSERT INTO payment_allocations
		(id, payment_id, loan_id, installment_number, penalty, fees, interest, principal)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	for _, l := range lines {
		if _, err := q.ExecContext(ctx, query,
			l.ID, l.PaymentID, l.LoanID, l.InstallmentNumber,
			l.Penalty, l.Fees, l.Interest, l.Principal,
		); err != nil {
			return err
		}
	}
	return nil
}

func listAllocationsByPayment(ctx context.Context, q dbtx, paymentID string) ([]domain.AllocationLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, payment_id, loan_id, installment_number, penalty, fees, interest, principal
		 FROM payment_allocations WHERE payment_id = $1 ORDER BY installment_number`,
		paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AllocationLine
	for rows.Next() {
		var l domain.AllocationLine
		if err := rows.Scan(&l.ID, &l.PaymentID, &l.LoanID, &l.InstallmentNumber,
			&l.Penalty, &l.Fees, &l.Interest, &l.Principal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
