package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusRecorded  PaymentStatus = "RECORDED"
	PaymentStatusReversed  PaymentStatus = "REVERSED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is a single real-world repayment event. The component breakdown
// records how the amount was allocated across the schedule.
type Payment struct {
	ID             string
	LoanID         string
	Amount         decimal.Decimal
	PaymentDate    time.Time
	Method         string
	Reference      string
	Notes          string
	PrincipalPaid  decimal.Decimal
	InterestPaid   decimal.Decimal
	FeesPaid       decimal.Decimal
	PenaltyPaid    decimal.Decimal
	Status         PaymentStatus
	IsLate         bool
	DaysLate       int
	ReversalReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllocationLine records what a payment contributed to one installment.
// Reversal walks these lines to subtract the exact amounts again.
type AllocationLine struct {
	ID                string
	PaymentID         string
	LoanID            string
	InstallmentNumber int
	Penalty           decimal.Decimal
	Fees              decimal.Decimal
	Interest          decimal.Decimal
	Principal         decimal.Decimal
}

// Total is the sum of all components on the line.
func (l AllocationLine) Total() decimal.Decimal {
	return l.Penalty.Add(l.Fees).Add(l.Interest).Add(l.Principal)
}

// AllocationResult is the outcome of applying a payment; it is also the
// payload the notification layer broadcasts.
type AllocationResult struct {
	Payment           *Payment        `json:"payment"`
	Installment       *ScheduleEntry  `json:"installment"`
	InstallmentNumber int             `json:"installment_number"`
	FullyPaid         bool            `json:"fully_paid"`
	IsPartial         bool            `json:"is_partial"`
	IsLate            bool            `json:"is_late"`
	Overpayment       decimal.Decimal `json:"overpayment"`
}
