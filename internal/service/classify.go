package service

import (
	"time"

	"loantrack/internal/domain"

	"github.com/shopspring/decimal"
)

// Lifecycle classification is recomputed on every read from the loan terms,
// the cumulative paid amount and today's date. The four states are mutually
// exclusive and exhaustive for any fixed date.

func ClassifyLifecycle(terms *domain.LoanTerms, cumulativePaid decimal.Decimal, today time.Time) domain.LifecycleState {
	if cumulativePaid.GreaterThanOrEqual(terms.TotalPayable) {
		return domain.StateCompleted
	}
	elapsed := domain.DaysBetween(terms.DisbursementDate, today)
	duration := terms.DurationDays()
	switch {
	case elapsed <= duration:
		return domain.StateActive
	case elapsed <= duration+domain.DefaultWindowDays:
		return domain.StateOverdue
	default:
		return domain.StateDefaulted
	}
}

var (
	hundred = decimal.NewFromInt(100)

	behaviorOnTimeWeight     = decimal.NewFromInt(70)
	behaviorCompletionWeight = decimal.NewFromInt(30)

	riskLateWeight       = decimal.NewFromInt(40)
	riskDaysLateWeight   = decimal.NewFromInt(35)
	riskCompletionWeight = decimal.NewFromInt(25)
	riskDaysLateCap      = decimal.NewFromInt(domain.DefaultWindowDays)
)

// BehaviorScore scores repayment discipline on [0,100]: 70 points weighted by
// the on-time ratio of allocated payments plus 30 points weighted by the
// completion fraction. With no payments yet the on-time ratio counts as 1, so
// a fresh loan starts at 70. More late payments never raise the score.
func BehaviorScore(onTime, late int, completionPct decimal.Decimal) decimal.Decimal {
	onTimeRatio := decimal.NewFromInt(1)
	if onTime+late > 0 {
		onTimeRatio = decimal.NewFromInt(int64(onTime)).Div(decimal.NewFromInt(int64(onTime + late)))
	}
	score := behaviorOnTimeWeight.Mul(onTimeRatio).
		Add(behaviorCompletionWeight.Mul(completionPct.Div(hundred)))
	return clampScore(score)
}

// RiskScore scores default risk on [0,100]: 40 points by late ratio, 35 by
// current days late capped at the default window, 25 by the uncompleted
// fraction. Monotonic: more lateness or less completion never lowers it.
func RiskScore(onTime, late, daysLate int, completionPct decimal.Decimal) decimal.Decimal {
	lateRatio := decimal.Zero
	if onTime+late > 0 {
		lateRatio = decimal.NewFromInt(int64(late)).Div(decimal.NewFromInt(int64(onTime + late)))
	}
	days := decimal.NewFromInt(int64(daysLate))
	if days.GreaterThan(riskDaysLateCap) {
		days = riskDaysLateCap
	}
	score := riskLateWeight.Mul(lateRatio).
		Add(riskDaysLateWeight.Mul(days.Div(riskDaysLateCap))).
		Add(riskCompletionWeight.Mul(decimal.NewFromInt(1).Sub(completionPct.Div(hundred))))
	return clampScore(score)
}

// ClassifyPattern looks at the late flags of recorded payments in
// chronological order. CONSISTENT when at most a fifth were late,
// DETERIORATING when the three most recent were all late, IRREGULAR
// otherwise.
func ClassifyPattern(lateFlags []bool) domain.PaymentPattern {
	if len(lateFlags) == 0 {
		return domain.PatternConsistent
	}
	late := 0
	for _, l := range lateFlags {
		if l {
			late++
		}
	}
	if len(lateFlags) >= 3 {
		recent := lateFlags[len(lateFlags)-3:]
		if recent[0] && recent[1] && recent[2] {
			return domain.PatternDeteriorating
		}
	}
	lateRatio := decimal.NewFromInt(int64(late)).Div(decimal.NewFromInt(int64(len(lateFlags))))
	if lateRatio.LessThanOrEqual(decimal.NewFromFloat(0.2)) {
		return domain.PatternConsistent
	}
	return domain.PatternIrregular
}

func clampScore(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d.Round(2)
}
