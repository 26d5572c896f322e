/*
store.go - Persistence interfaces for plans and reminder dispatch

PURPOSE:
  Defines the interface between the engine's callers and the database.
  The engine itself is pure - it never touches a store - but the
  components around it (HTTP handlers, the reminder scheduler) persist
  through these interfaces so SQLite and in-memory implementations are
  interchangeable.

CONCURRENCY CONTRACT:
  For a single obligation, payment marking must be serialized against
  evaluation: the store's MarkInstallmentPaid applies the unpaid -> paid
  transition at most once (conditional update), so a reminder evaluated
  concurrently with a payment either sees unpaid (and the dispatcher's
  dedupe log absorbs the stale event) or sees paid (and nothing fires).

DUPLICATE DELIVERY:
  The engine is stateless across calls; preventing duplicate sends is
  the dispatcher's job. ReminderLog.RecordReminder is the primitive:
  keyed by ReminderEvent.DedupeKey, it reports whether the event is new,
  and for overdue installment events it advances the installment's
  RemindersSent counter in the same write.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - billing/store/memory.go: In-memory for testing/dev

SEE ALSO:
  - evaluator.go: Produces the events the log records
  - api/scheduler.go: The dispatch loop using both interfaces
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// PLAN STORE
// =============================================================================

// PlanStore persists payment plans and their installments.
type PlanStore interface {
	// SavePlan persists a plan and its installment sequence.
	SavePlan(ctx context.Context, plan *PaymentPlan) error

	// GetPlan returns a plan with installments ordered by sequence.
	// Returns ErrPlanNotFound when missing.
	GetPlan(ctx context.Context, id PlanID) (*PaymentPlan, error)

	// ListPlans returns all plans, installments included.
	ListPlans(ctx context.Context) ([]*PaymentPlan, error)

	// MarkInstallmentPaid applies the unpaid -> paid transition for one
	// installment. Idempotent: a second call leaves the original PaidAt
	// in place and reports no error.
	MarkInstallmentPaid(ctx context.Context, id PlanID, sequenceNumber int, paidAt time.Time) error

	// RecordPeriodPaid advances a subscription plan's paid-period count
	// by one.
	RecordPeriodPaid(ctx context.Context, id PlanID) error

	// SettlePlan records payment of a one-time plan's single obligation.
	// Idempotent like MarkInstallmentPaid.
	SettlePlan(ctx context.Context, id PlanID, paidAt time.Time) error
}

// =============================================================================
// REMINDER LOG - Dispatch-side duplicate suppression
// =============================================================================

// DispatchedReminder is one delivered reminder as remembered by the log.
type DispatchedReminder struct {
	Key          string
	Event        ReminderEvent
	DispatchedAt time.Time
}

// ReminderLog records which reminder events have been handed to the
// notification dispatcher.
type ReminderLog interface {
	// RecordReminder stores the event under its dedupe key. Returns true
	// when the event was newly recorded, false when the key had already
	// been dispatched. Overdue installment events also increment the
	// installment's RemindersSent in the same operation.
	RecordReminder(ctx context.Context, event ReminderEvent) (bool, error)

	// RemindersFor returns the dispatched reminders for a plan, oldest
	// first.
	RemindersFor(ctx context.Context, id PlanID) ([]DispatchedReminder, error)
}
