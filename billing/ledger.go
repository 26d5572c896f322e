/*
ledger.go - Installment ledger for split one-time payments

PURPOSE:
  Tracks per-installment paid/unpaid state for the one-time-with-
  installments category: generating the sequence at plan creation,
  marking payments, finding the next unpaid slice, and computing the
  remaining balance.

CRITICAL INVARIANTS:
  1. SUM EXACTNESS: Installment amounts always sum to the plan total.
     Division floors to minor currency units and the remainder lands on
     the LAST installment - a unit is never dropped or duplicated.
  2. SINGLE TRANSITION: An installment goes unpaid -> paid exactly once.
     Marking a paid installment again is a no-op, not an error.
  3. VALIDATE FIRST: Configuration is rejected before any installment is
     created; a failure never leaves a partial sequence behind.
  4. BALANCE CONSISTENCY: RemainingBalance(plan) + sum(paid amounts) ==
     AmountTotal, always.

EXAMPLE:
  insts, err := billing.GenerateInstallments("plan-1",
      billing.NewMoney(1000, billing.CurrencyUSD), 3, start, 30)
  // amounts: [333, 333, 334], due: start, start+30d, start+60d

SEE ALSO:
  - duedate.go: Uses NextUnpaidInstallment for the category's due date
  - evaluator.go: Evaluates each installment as its own obligation
*/
package billing

import (
	"sort"
	"time"
)

// =============================================================================
// CONFIGURATION VALIDATION
// =============================================================================

// ValidateInstallmentConfig rejects malformed installment layouts before
// anything is generated.
func ValidateInstallmentConfig(count, cadenceDays int, total Money) error {
	switch {
	case count < 1:
		return &InstallmentConfigError{Count: count, CadenceDays: cadenceDays, Total: total, Reason: "count must be >= 1"}
	case cadenceDays < 1:
		return &InstallmentConfigError{Count: count, CadenceDays: cadenceDays, Total: total, Reason: "cadenceDays must be >= 1"}
	case !total.IsPositive():
		return &InstallmentConfigError{Count: count, CadenceDays: cadenceDays, Total: total, Reason: "total must be > 0"}
	}
	return nil
}

// =============================================================================
// GENERATION - All installments are created together at plan creation
// =============================================================================

// GenerateInstallments produces the full sequence for a one-time total
// split into `count` parts, `cadenceDays` apart, starting at `start`.
// Sequence numbers are 1-based; installment s is due at
// start + (s-1)*cadenceDays.
func GenerateInstallments(planID PlanID, total Money, count, cadenceDays int, start TimePoint) ([]*Installment, error) {
	if err := ValidateInstallmentConfig(count, cadenceDays, total); err != nil {
		return nil, err
	}

	amounts := total.Split(count)
	installments := make([]*Installment, count)
	for i := 0; i < count; i++ {
		installments[i] = &Installment{
			PlanID:         planID,
			SequenceNumber: i + 1,
			DueDate:        start.AddDays(i * cadenceDays),
			Amount:         amounts[i],
		}
	}
	return installments, nil
}

// =============================================================================
// PAYMENT MARKING
// =============================================================================

// MarkInstallmentPaid records payment of a single installment. Idempotent:
// an already-paid installment is left untouched, including its original
// PaidAt. Never mutates other installments.
func MarkInstallmentPaid(inst *Installment, paidAt time.Time) {
	if inst.Paid() {
		return
	}
	t := paidAt
	inst.PaidAt = &t
}

// =============================================================================
// LOOKUPS AND BALANCES
// =============================================================================

// NextUnpaidInstallment returns the unpaid installment with the smallest
// sequence number, or nil when all are paid.
func NextUnpaidInstallment(plan *PaymentPlan) *Installment {
	var next *Installment
	for _, inst := range plan.Installments {
		if inst.Paid() {
			continue
		}
		if next == nil || inst.SequenceNumber < next.SequenceNumber {
			next = inst
		}
	}
	return next
}

// AllInstallmentsPaid reports whether every installment has been paid.
// A plan with no installments has nothing outstanding.
func AllInstallmentsPaid(plan *PaymentPlan) bool {
	for _, inst := range plan.Installments {
		if !inst.Paid() {
			return false
		}
	}
	return true
}

// RemainingBalance returns what is still owed on the plan. For installment
// plans this is the sum over unpaid installments, which by construction
// equals AmountTotal minus the paid amounts. For other categories the
// whole total is outstanding until the plan settles.
func RemainingBalance(plan *PaymentPlan) Money {
	switch plan.Category {
	case CategoryOneTimeInstallments:
		remaining := plan.AmountTotal.Zero()
		for _, inst := range plan.Installments {
			if !inst.Paid() {
				remaining = remaining.Add(inst.Amount)
			}
		}
		return remaining
	case CategoryOneTime:
		if plan.SettledAt != nil {
			return plan.AmountTotal.Zero()
		}
		return plan.AmountTotal
	default:
		// Subscriptions have no fixed lifetime total to draw down; the
		// outstanding amount is the current period's charge, tracked by
		// the caller.
		return plan.AmountTotal.Zero()
	}
}

// =============================================================================
// REMINDER CANDIDATES
// =============================================================================

// InstallmentsNeedingReminders returns the unpaid installments whose grace
// period has expired at `now` and whose dispatched-reminder count is still
// under the policy cap, ordered by sequence number ascending.
func InstallmentsNeedingReminders(plan *PaymentPlan, now time.Time, policy ReminderPolicy) ([]*Installment, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var due []*Installment
	for _, inst := range plan.Installments {
		if inst.Paid() {
			continue
		}
		if inst.RemindersSent >= policy.MaxOverdueAttempts {
			continue
		}
		overdueStart := inst.DueDate.AddDays(policy.GraceDays)
		nowDay := DayOf(now, inst.DueDate.Location())
		if nowDay.AfterOrEqual(overdueStart) {
			due = append(due, inst)
		}
	}

	// Output order is by sequence regardless of how storage returned them.
	sort.Slice(due, func(i, j int) bool {
		return due[i].SequenceNumber < due[j].SequenceNumber
	})
	return due, nil
}
