package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InterestMethod string

const (
	InterestFlat            InterestMethod = "FLAT"
	InterestReducingBalance InterestMethod = "REDUCING_BALANCE"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

type DurationUnit string

const (
	DurationDays   DurationUnit = "DAYS"
	DurationWeeks  DurationUnit = "WEEKS"
	DurationMonths DurationUnit = "MONTHS"
)

// LoanTerms is the read-only slice of a loan this core needs. The loan itself
// is owned by the surrounding loan-management service and referenced by ID.
type LoanTerms struct {
	ID                string
	Number            string
	Principal         decimal.Decimal
	InterestRate      decimal.Decimal // annual rate, percent
	InterestMethod    InterestMethod
	Duration          int
	DurationUnit      DurationUnit
	Frequency         Frequency
	Installments      int
	GracePeriodDays   int
	DisbursementDate  time.Time
	FirstRepaymentDue time.Time
	TotalPayable      decimal.Decimal
}

// DurationDays converts the loan duration to days (months are counted as 30).
func (t LoanTerms) DurationDays() int {
	switch t.DurationUnit {
	case DurationWeeks:
		return t.Duration * 7
	case DurationMonths:
		return t.Duration * 30
	default:
		return t.Duration
	}
}

// PeriodsPerYear returns the number of repayment periods in a year for the
// loan's frequency, used for reducing-balance interest.
func (t LoanTerms) PeriodsPerYear() int64 {
	switch t.Frequency {
	case FrequencyDaily:
		return 365
	case FrequencyWeekly:
		return 52
	default:
		return 12
	}
}

type LifecycleState string

const (
	StateActive    LifecycleState = "ACTIVE"
	StateOverdue   LifecycleState = "OVERDUE"
	StateDefaulted LifecycleState = "DEFAULTED"
	StateCompleted LifecycleState = "COMPLETED"
)

// DefaultWindowDays is how long past its duration a loan may stay OVERDUE
// before it is considered DEFAULTED.
const DefaultWindowDays = 180

// LoanBalance is the outstanding view returned by getLoanBalance.
type LoanBalance struct {
	LoanID               string          `json:"loan_id"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal `json:"outstanding_interest"`
	OutstandingFees      decimal.Decimal `json:"outstanding_fees"`
	OutstandingPenalty   decimal.Decimal `json:"outstanding_penalty"`
	OutstandingTotal     decimal.Decimal `json:"outstanding_total"`
}
