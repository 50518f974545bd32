package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loantrack/internal/domain"
)

// SequenceRepository issues gapless counters per (prefix, branch, period)
// bucket. Next holds an exclusive row lock for the read-increment-write, so
// concurrent issuers for the same bucket serialize and different buckets do
// not block each other.
type SequenceRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewSequenceRepository(db *sql.DB, lockTimeout time.Duration) *SequenceRepository {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &SequenceRepository{db: db, lockTimeout: lockTimeout}
}

// Next increments and returns the bucket counter. The row is created lazily
// with counter 0 on first use.
func (r *SequenceRepository) Next(ctx context.Context, prefix, branch, period string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	timeoutMs := int(r.lockTimeout / time.Millisecond)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs)); err != nil {
		return 0, err
	}

	// Lazy row creation; ON CONFLICT DO NOTHING keeps concurrent first
	// users from failing.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sequences (prefix, branch, period, last_value) VALUES ($1, $2, $3, 0)
		 ON CONFLICT (prefix, branch, period) DO NOTHING`,
		prefix, branch, period); err != nil {
		return 0, err
	}

	var last int
	err = tx.QueryRowContext(ctx,
		`SELECT last_value FROM sequences WHERE prefix = $1 AND branch = $2 AND period = $3 FOR UPDATE`,
		prefix, branch, period).Scan(&last)
	if err != nil {
		return 0, mapLockErr(err)
	}

	if last >= domain.SequenceMax {
		return 0, domain.ErrSequenceExhausted
	}

	next := last + 1
	if _, err := tx.ExecContext(ctx,
		`UPDATE sequences SET last_value = $1 WHERE prefix = $2 AND branch = $3 AND period = $4`,
		next, prefix, branch, period); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// Peek reads the counter without locking or incrementing. The result is
// informational only and may race with concurrent Next calls.
func (r *SequenceRepository) Peek(ctx context.Context, prefix, branch, period string) (int, error) {
	var last int
	err := r.db.QueryRowContext(ctx,
		`SELECT last_value FROM sequences WHERE prefix = $1 AND branch = $2 AND period = $3`,
		prefix, branch, period).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}
