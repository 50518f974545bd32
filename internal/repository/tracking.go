package repository

import (
	"context"
	"database/sql"
	"errors"

	"loantrack/internal/domain"
)

const trackingColumns = `loan_id,
	cumulative_paid, cumulative_principal, cumulative_interest, cumulative_fees, cumulative_penalty,
	outstanding_balance, outstanding_principal, outstanding_interest,
	installments_paid, installments_remaining, next_payment_due, next_payment_amount,
	days_late, is_late, is_defaulted, is_current, has_partial_payments, has_overpayments,
	completion_percentage, payment_behavior_score, default_risk_score, payment_pattern,
	last_payment_date, updated_at`

func getTracking(ctx context.Context, q dbtx, loanID string) (*domain.LoanTracking, error) {
	var t domain.LoanTracking
	var pattern string
	var nextDue, lastPaid sql.NullTime
	err := q.QueryRowContext(ctx,
		`SELECT `+trackingColumns+` FROM loan_tracking WHERE loan_id = $1`, loanID,
	).Scan(
		&t.LoanID,
		&t.CumulativePaid, &t.CumulativePrincipal, &t.CumulativeInterest, &t.CumulativeFees, &t.CumulativePenalty,
		&t.OutstandingBalance, &t.OutstandingPrincipal, &t.OutstandingInterest,
		&t.InstallmentsPaid, &t.InstallmentsRemaining, &nextDue, &t.NextPaymentAmount,
		&t.DaysLate, &t.IsLate, &t.IsDefaulted, &t.IsCurrent, &t.HasPartialPayments, &t.HasOverpayments,
		&t.CompletionPercentage, &t.PaymentBehaviorScore, &t.DefaultRiskScore, &pattern,
		&lastPaid, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.PaymentPattern = domain.PaymentPattern(pattern)
	if nextDue.Valid {
		d := nextDue.Time
		t.NextPaymentDue = &d
	}
	if lastPaid.Valid {
		d := lastPaid.Time
		t.LastPaymentDate = &d
	}
	return &t, nil
}

// saveTracking upserts on the loan_id primary key; a tracking row is never
// created twice for the same loan.
func saveTracking(ctx context.Context, q dbtx, t *domain.LoanTracking) error {
	const query = `INSERT INTO loan_tracking (` + trackingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,now())
		ON CONFLICT (loan_id) DO UPDATE SET
			cumulative_paid = EXCLUDED.cumulative_paid,
			cumulative_principal = EXCLUDED.cumulative_principal,
			cumulative_interest = EXCLUDED.cumulative_interest,
			cumulative_fees = EXCLUDED.cumulative_fees,
			cumulative_penalty = EXCLUDED.cumulative_penalty,
			outstanding_balance = EXCLUDED.outstanding_balance,
			outstanding_principal = EXCLUDED.outstanding_principal,
			outstanding_interest = EXCLUDED.outstanding_interest,
			installments_paid = EXCLUDED.installments_paid,
			installments_remaining = EXCLUDED.installments_remaining,
			next_payment_due = EXCLUDED.next_payment_due,
			next_payment_amount = EXCLUDED.next_payment_amount,
			days_late = EXCLUDED.days_late,
			is_late = EXCLUDED.is_late,
			is_defaulted = EXCLUDED.is_defaulted,
			is_current = EXCLUDED.is_current,
			has_partial_payments = EXCLUDED.has_partial_payments,
			has_overpayments = EXCLUDED.has_overpayments,
			completion_percentage = EXCLUDED.completion_percentage,
			payment_behavior_score = EXCLUDED.payment_behavior_score,
			default_risk_score = EXCLUDED.default_risk_score,
			payment_pattern = EXCLUDED.payment_pattern,
			last_payment_date = EXCLUDED.last_payment_date,
			updated_at = now()`

	var nextDue, lastPaid any
	if t.NextPaymentDue != nil {
		nextDue = *t.NextPaymentDue
	}
	if t.LastPaymentDate != nil {
		lastPaid = *t.LastPaymentDate
	}

	_, err := q.ExecContext(ctx, query,
		t.LoanID,
		t.CumulativePaid, t.CumulativePrincipal, t.CumulativeInterest, t.CumulativeFees, t.CumulativePenalty,
		t.OutstandingBalance, t.OutstandingPrincipal, t.OutstandingInterest,
		t.InstallmentsPaid, t.InstallmentsRemaining, nextDue, t.NextPaymentAmount,
		t.DaysLate, t.IsLate, t.IsDefaulted, t.IsCurrent, t.HasPartialPayments, t.HasOverpayments,
		t.CompletionPercentage, t.PaymentBehaviorScore, t.DefaultRiskScore, string(t.PaymentPattern),
		lastPaid)
	return err
}
