package domain

import "github.com/shopspring/decimal"

// Events emitted by the core for the notification/audit layer. Delivery is
// fire-and-forget: the core never waits on a consumer.

type ScheduleGenerated struct {
	LoanID           string `json:"loan_id"`
	InstallmentCount int    `json:"installment_count"`
}

func (ScheduleGenerated) EventType() string { return "schedule_generated" }

type InstallmentPaid struct {
	LoanID            string          `json:"loan_id"`
	InstallmentNumber int             `json:"installment_number"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	FullyPaid         bool            `json:"fully_paid"`
	IsPartial         bool            `json:"is_partial"`
	IsLate            bool            `json:"is_late"`
}

func (InstallmentPaid) EventType() string { return "installment_paid" }

type PaymentReversed struct {
	LoanID    string `json:"loan_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

func (PaymentReversed) EventType() string { return "payment_reversed" }

type TrackingRecalculated struct {
	LoanID string `json:"loan_id"`
}

func (TrackingRecalculated) EventType() string { return "tracking_recalculated" }

// Event is any broadcastable core event.
type Event interface {
	EventType() string
}
