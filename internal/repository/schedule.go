package repository

import (
	"context"

	"loantrack/internal/domain"
)

const scheduleColumns = `id, loan_id, number, due_date, grace_expiry,
	principal_due, interest_due, fee_due, penalty_due,
	principal_paid, interest_paid, fee_paid, penalty_paid,
	paid_amount, outstanding, status, is_late, created_at, updated_at`

func listSchedule(ctx context.Context, q dbtx, loanID string) ([]domain.ScheduleEntry, error) {
	return queryEntries(ctx, q,
		`SELECT `+scheduleColumns+` FROM installment_schedule WHERE loan_id = $1 ORDER BY due_date, number`,
		loanID)
}

func listEntriesWhere(ctx context.Context, q dbtx, cond string) ([]domain.ScheduleEntry, error) {
	return queryEntries(ctx, q,
		`SELECT `+scheduleColumns+` FROM installment_schedule WHERE `+cond+` ORDER BY loan_id, due_date, number`)
}

func queryEntries(ctx context.Context, q dbtx, query string, args ...any) ([]domain.ScheduleEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleEntry
	for rows.Next() {
		var e domain.ScheduleEntry
		var status string
		if err := rows.Scan(
			&e.ID,
			&e.LoanID,
			&e.Number,
			&e.DueDate,
			&e.GraceExpiry,
			&e.PrincipalDue,
			&e.InterestDue,
			&e.FeeDue,
			&e.PenaltyDue,
			&e.PrincipalPaid,
			&e.InterestPaid,
			&e.FeePaid,
			&e.PenaltyPaid,
			&e.PaidAmount,
			&e.Outstanding,
			&status,
			&e.IsLate,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.Status = domain.InstallmentStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertScheduleEntries(ctx context.Context, q dbtx, entries []domain.ScheduleEntry) error {
	const query = `INSERT INTO installment_schedule
		(id, loan_id, number, due_date, grace_expiry,
		 principal_due, interest_due, fee_due, penalty_due,
		 principal_paid, interest_paid, fee_paid, penalty_paid,
		 paid_amount, outstanding, status, is_late, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	for i := range entries {
		e := &entries[i]
		if _, err := q.ExecContext(ctx, query,
			e.ID, e.LoanID, e.Number, e.DueDate, e.GraceExpiry,
			e.PrincipalDue, e.InterestDue, e.FeeDue, e.PenaltyDue,
			e.PrincipalPaid, e.InterestPaid, e.FeePaid, e.PenaltyPaid,
			e.PaidAmount, e.Outstanding, string(e.Status), e.IsLate, e.CreatedAt, e.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func updateScheduleEntry(ctx context.Context, q dbtx, e *domain.ScheduleEntry) error {
	const query = `UPDATE installment_schedule SET
		principal_paid = $1, interest_paid = $2, fee_paid = $3, penalty_paid = $4,
		penalty_due = $5, paid_amount = $6, outstanding = $7, status = $8, is_late = $9,
		updated_at = now()
		WHERE id = $10`

	res, err := q.ExecContext(ctx, query,
		e.PrincipalPaid, e.InterestPaid, e.FeePaid, e.PenaltyPaid,
		e.PenaltyDue, e.PaidAmount, e.Outstanding, string(e.Status), e.IsLate,
		e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
