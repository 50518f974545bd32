package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the tables this core owns if they do not exist. The
// loans table belongs to the surrounding loan-management service; it is
// created here too so a standalone deployment can boot against an empty
// database.
func InitSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL DEFAULT '',
		principal NUMERIC(20,4) NOT NULL,
		interest_rate NUMERIC(10,4) NOT NULL,
		interest_method TEXT NOT NULL,
		duration INTEGER NOT NULL,
		duration_unit TEXT NOT NULL,
		frequency TEXT NOT NULL,
		installments INTEGER NOT NULL,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		disbursement_date DATE NOT NULL,
		first_repayment_due DATE NOT NULL,
		total_payable NUMERIC(20,4) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installment_schedule (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		due_date DATE NOT NULL,
		grace_expiry DATE NOT NULL,
		principal_due NUMERIC(20,4) NOT NULL,
		interest_due NUMERIC(20,4) NOT NULL,
		fee_due NUMERIC(20,4) NOT NULL,
		penalty_due NUMERIC(20,4) NOT NULL DEFAULT 0,
		principal_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		interest_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		fee_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		penalty_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		paid_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
		outstanding NUMERIC(20,4) NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		is_late BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (loan_id, number)
	);
	CREATE INDEX IF NOT EXISTS idx_schedule_loan ON installment_schedule (loan_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_schedule_status ON installment_schedule (status);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount NUMERIC(20,4) NOT NULL,
		payment_date DATE NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		principal_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		interest_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		fees_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		penalty_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'RECORDED',
		is_late BOOLEAN NOT NULL DEFAULT FALSE,
		days_late INTEGER NOT NULL DEFAULT 0,
		reversal_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments (loan_id, payment_date, created_at);

	CREATE TABLE IF NOT EXISTS payment_allocations (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		loan_id TEXT NOT NULL,
		installment_number INTEGER NOT NULL,
		penalty NUMERIC(20,4) NOT NULL DEFAULT 0,
		fees NUMERIC(20,4) NOT NULL DEFAULT 0,
		interest NUMERIC(20,4) NOT NULL DEFAULT 0,
		principal NUMERIC(20,4) NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_allocations_payment ON payment_allocations (payment_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_loan ON payment_allocations (loan_id);

	CREATE TABLE IF NOT EXISTS loan_tracking (
		loan_id TEXT PRIMARY KEY,
		cumulative_paid NUMERIC(20,4) NOT NULL DEFAULT 0,
		cumulative_principal NUMERIC(20,4) NOT NULL DEFAULT 0,
		cumulative_interest NUMERIC(20,4) NOT NULL DEFAULT 0,
		cumulative_fees NUMERIC(20,4) NOT NULL DEFAULT 0,
		cumulative_penalty NUMERIC(20,4) NOT NULL DEFAULT 0,
		outstanding_balance NUMERIC(20,4) NOT NULL DEFAULT 0,
		outstanding_principal NUMERIC(20,4) NOT NULL DEFAULT 0,
		outstanding_interest NUMERIC(20,4) NOT NULL DEFAULT 0,
		installments_paid INTEGER NOT NULL DEFAULT 0,
		installments_remaining INTEGER NOT NULL DEFAULT 0,
		next_payment_due DATE,
		next_payment_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
		days_late INTEGER NOT NULL DEFAULT 0,
		is_late BOOLEAN NOT NULL DEFAULT FALSE,
		is_defaulted BOOLEAN NOT NULL DEFAULT FALSE,
		is_current BOOLEAN NOT NULL DEFAULT TRUE,
		has_partial_payments BOOLEAN NOT NULL DEFAULT FALSE,
		has_overpayments BOOLEAN NOT NULL DEFAULT FALSE,
		completion_percentage NUMERIC(10,4) NOT NULL DEFAULT 0,
		payment_behavior_score NUMERIC(10,4) NOT NULL DEFAULT 0,
		default_risk_score NUMERIC(10,4) NOT NULL DEFAULT 0,
		payment_pattern TEXT NOT NULL DEFAULT 'CONSISTENT',
		last_payment_date DATE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS sequences (
		prefix TEXT NOT NULL,
		branch TEXT NOT NULL,
		period TEXT NOT NULL,
		last_value INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (prefix, branch, period)
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
