/*
policy.go - Reminder policy configuration

PURPOSE:
  Defines the rules that govern the reminder ladder around a due date:
  how early the pre-due nudge fires, how long the grace period runs, how
  often overdue reminders repeat, and when they stop. A ReminderPolicy is
  configuration, not per-plan state - the same policy typically covers
  every plan of a charge type unless an academy overrides it.

THE LADDER AROUND ONE DUE DATE:

    dueDate-PreDueDays   dueDate      dueDate+GraceDays
         |------ pre-due ---|-- grace ----|-- overdue(1) -- overdue(2) ... cap
                                          |<- OverdueIntervalDays between ->|

  After MaxOverdueAttempts overdue reminders the obligation is exhausted:
  no further automatic reminders fire and escalation becomes a human
  process outside this engine.

GRACE SEMANTICS:
  Whether a payment made during grace counts as on-time for reporting is
  a product decision, not an engine invariant. GraceCountsOnTime makes it
  a policy switch; ClassifyPayment applies it.

SEE ALSO:
  - evaluator.go: Consumes the policy to derive ladder state
  - ledger.go: InstallmentsNeedingReminders honors the attempt cap
*/
package billing

import "time"

// =============================================================================
// REMINDER POLICY
// =============================================================================

type ReminderPolicy struct {
	// Days before the due date to fire a pre-due reminder. 0 disables the
	// pre-due window.
	PreDueDays int

	// Days after the due date during which payment is still accepted
	// without the obligation being considered overdue.
	GraceDays int

	// Cadence of repeat overdue reminders once the grace period expires.
	OverdueIntervalDays int

	// Cap on repeat overdue reminders per obligation. 0 means overdue
	// reminders never fire.
	MaxOverdueAttempts int

	// Committed subscriptions only: days before the contract end date to
	// fire a renewal reminder. 0 disables the window.
	ContractEndReminderDays int

	// Whether a payment made during grace is classified on-time for
	// reporting. Does not affect the reminder ladder.
	GraceCountsOnTime bool
}

// Validate rejects inconsistent policies. A bad policy is a plan
// configuration problem from the caller's point of view.
func (p ReminderPolicy) Validate() error {
	switch {
	case p.PreDueDays < 0:
		return &PlanConfigError{Reason: "preDueDays must be >= 0"}
	case p.GraceDays < 0:
		return &PlanConfigError{Reason: "graceDays must be >= 0"}
	case p.OverdueIntervalDays <= 0:
		return &PlanConfigError{Reason: "overdueIntervalDays must be > 0"}
	case p.MaxOverdueAttempts < 0:
		return &PlanConfigError{Reason: "maxOverdueAttempts must be >= 0"}
	case p.ContractEndReminderDays < 0:
		return &PlanConfigError{Reason: "contractEndReminderDays must be >= 0"}
	}
	return nil
}

// =============================================================================
// PAYMENT TIMING CLASSIFICATION
// =============================================================================

type PaymentTiming string

const (
	TimingOnTime      PaymentTiming = "on_time"
	TimingWithinGrace PaymentTiming = "within_grace"
	TimingLate        PaymentTiming = "late"
)

// ClassifyPayment reports how a payment made at paidAt relates to the due
// date under the policy. The day boundary is the due date's zone.
func ClassifyPayment(paidAt time.Time, due TimePoint, policy ReminderPolicy) PaymentTiming {
	paidDay := DayOf(paidAt, due.Location())
	switch {
	case paidDay.BeforeOrEqual(due):
		return TimingOnTime
	case paidDay.Before(due.AddDays(policy.GraceDays)):
		if policy.GraceCountsOnTime {
			return TimingOnTime
		}
		return TimingWithinGrace
	default:
		return TimingLate
	}
}
