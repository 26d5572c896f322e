/*
Package billing provides the payment due-date and reminder engine.

PURPOSE:
  This package contains the core types and algorithms for tracking a
  student's financial obligations: when the next payment is due, which
  installments remain unpaid, and which reminders should fire at a given
  instant. It is pure computation - no I/O, no clocks of its own, no
  hidden state. Callers supply plans, policies, and "now"; the engine
  returns dates, balances, and reminder events.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency quantity in minor units (decimal-backed, never float)
  - PaymentPlan: One student's obligation, tagged with its category
  - Installment: One slice of a split one-time payment
  - ReminderEvent: An instruction to the dispatcher ("send reminder X now")

DESIGN PRINCIPLES:
  1. Purity: Every function is (input, now) -> output; safe to re-run
  2. Precision: Uses decimal.Decimal to avoid floating-point currency errors
  3. Zone Correctness: All day arithmetic happens in the plan's timezone
  4. Exhaustiveness: Category dispatch is a checked switch over a variant,
     so adding a fifth category is a compile-surface change, not a runtime
     surprise

USAGE:
  plan := &billing.PaymentPlan{
      ID:          "plan-123",
      Category:    billing.CategoryMonthlySubscription,
      StartDate:   billing.NewTimePoint(2026, time.February, 1, zone),
      AmountTotal: billing.NewMoney(12000, billing.CurrencyUSD),
  }
  due, err := billing.DueDateCalculator{}.NextDueDate(plan)

SEE ALSO:
  - duedate.go: Next-obligation calculation per category
  - ledger.go: Installment generation, payment marking, balances
  - evaluator.go: Reminder ladder state machine
  - policy.go: ReminderPolicy configuration
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency quantity in minor units
// =============================================================================
// Amounts are integral minor units (cents, centavos). Splitting a total
// across installments never fabricates or drops a unit: division floors
// and the remainder lands on the last installment.

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyBRL Currency = "BRL"
)

func NewMoney(minorUnits int64, currency Currency) Money {
	return Money{Value: decimal.NewFromInt(minorUnits), Currency: currency}
}

func MustParseMoney(s string, currency Currency) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero, Currency: currency}
	}
	return Money{Value: d, Currency: currency}
}

func (m Money) Zero() Money              { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(o Money) Money        { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Sub(o Money) Money        { return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency} }
func (m Money) Neg() Money               { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) && m.Currency == o.Currency }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Value.String(), m.Currency)
}

// Split divides the amount into n parts that sum exactly to the original.
// Each part gets the floored even share; the remainder goes to the LAST
// part. Split(1000, 3) -> [333, 333, 334].
func (m Money) Split(n int) []Money {
	if n < 1 {
		return nil
	}
	base := m.Value.Div(decimal.NewFromInt(int64(n))).Floor()
	parts := make([]Money, n)
	for i := 0; i < n-1; i++ {
		parts[i] = Money{Value: base, Currency: m.Currency}
	}
	last := m.Value.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	parts[n-1] = Money{Value: last, Currency: m.Currency}
	return parts
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type StudentID string

// =============================================================================
// PLAN CATEGORY - Tagged variant over payment structures
// =============================================================================
// The category is immutable after creation. Changing how a student pays
// means creating a new plan, never mutating the category in place.

type PlanCategory string

const (
	// CategoryOneTime: a single obligation due at StartDate.
	CategoryOneTime PlanCategory = "one_time"

	// CategoryOneTimeInstallments: a single total split into a fixed
	// sequence of installments generated at plan creation.
	CategoryOneTimeInstallments PlanCategory = "one_time_installments"

	// CategoryMonthlySubscription: recurs on a day-of-month indefinitely.
	CategoryMonthlySubscription PlanCategory = "monthly_subscription"

	// CategoryMonthlySubscriptionCommitted: recurs like a subscription but
	// terminates at a contract end date fixed at creation.
	CategoryMonthlySubscriptionCommitted PlanCategory = "monthly_subscription_committed"
)

func (c PlanCategory) Valid() bool {
	switch c {
	case CategoryOneTime, CategoryOneTimeInstallments,
		CategoryMonthlySubscription, CategoryMonthlySubscriptionCommitted:
		return true
	}
	return false
}

// Recurring reports whether the category generates a new obligation each
// billing period rather than a fixed set at creation.
func (c PlanCategory) Recurring() bool {
	return c == CategoryMonthlySubscription || c == CategoryMonthlySubscriptionCommitted
}

// =============================================================================
// PAYMENT PLAN - One student's obligation for one charge
// =============================================================================

type PaymentPlan struct {
	ID         PlanID
	StudentID  StudentID
	ChargeType ChargeType
	Category   PlanCategory
	StartDate  TimePoint // carries the plan's timezone

	// Total due across the plan's lifetime. For installment plans the
	// installment amounts sum to this exactly (checked at construction).
	AmountTotal Money

	// Subscriptions: the configured day-of-month. 0 means "use the start
	// date's day". Clamped per-month when the target month is shorter.
	BillingDay int

	// Committed subscriptions only: contract length in months. The
	// contract end date is derived once at creation, never recomputed
	// from payment state.
	CommittedMonths int
	ContractEndDate TimePoint

	// Subscriptions: number of fully settled billing periods since
	// StartDate. The persistence layer advances this when a period is
	// paid; the calculator rolls the next due date forward from it.
	MonthsPaid int

	// One-time plans: when the single obligation was settled.
	SettledAt *time.Time

	// Installment plans: the ordered sequence, generated together at
	// plan creation.
	Installments []*Installment

	CreatedAt time.Time
}

// Timezone returns the IANA zone all of the plan's day arithmetic uses.
func (p *PaymentPlan) Timezone() *time.Location {
	return p.StartDate.Location()
}

// EffectiveBillingDay resolves the configured day-of-month, defaulting to
// the start date's day.
func (p *PaymentPlan) EffectiveBillingDay() int {
	if p.BillingDay > 0 {
		return p.BillingDay
	}
	return p.StartDate.Day()
}

// ContractEnd returns the committed plan's terminal date. Falls back to
// deriving it from CommittedMonths for plans persisted before the derived
// column existed.
func (p *PaymentPlan) ContractEnd() TimePoint {
	if !p.ContractEndDate.IsZero() {
		return p.ContractEndDate
	}
	return p.StartDate.AddMonths(p.CommittedMonths)
}

// =============================================================================
// INSTALLMENT - One slice of a split one-time payment
// =============================================================================

type Installment struct {
	PlanID         PlanID
	SequenceNumber int // 1-based, unique within the plan, defines order
	DueDate        TimePoint
	Amount         Money

	// nil means unpaid. An installment transitions unpaid -> paid exactly
	// once; marking a paid installment again is a no-op.
	PaidAt *time.Time

	// Count of overdue reminders already dispatched for this installment.
	// Owned by the dispatcher, read by the engine to honor the attempt cap.
	RemindersSent int
}

func (i *Installment) Paid() bool { return i.PaidAt != nil }

// =============================================================================
// REMINDER EVENT - Output of the evaluator, owned by the dispatcher
// =============================================================================
// The engine emits events; it does not deliver them and does not remember
// having emitted them. The dispatcher records delivery (see ReminderLog)
// keyed by DedupeKey so the same boundary never produces two sends.

type ReminderKind string

const (
	KindPreDue      ReminderKind = "pre_due"
	KindGracePeriod ReminderKind = "grace_period"
	KindOverdue     ReminderKind = "overdue"
	KindContractEnd ReminderKind = "contract_end"
)

// ObligationRef identifies what a reminder is about: a whole plan
// (one-time and subscription categories) or one installment.
type ObligationRef struct {
	PlanID         PlanID
	InstallmentSeq int // 0 = the plan itself
}

func (r ObligationRef) String() string {
	if r.InstallmentSeq == 0 {
		return string(r.PlanID)
	}
	return fmt.Sprintf("%s#%d", r.PlanID, r.InstallmentSeq)
}

type ReminderEvent struct {
	Kind    ReminderKind
	Ref     ObligationRef
	DueDate TimePoint
	FiredAt time.Time

	// 1-based for the overdue ladder; 0 for pre-due, grace, and
	// contract-end events, which fire at most once per obligation.
	AttemptNumber int
}

// DedupeKey is stable across repeated evaluations within the same boundary
// window. The dispatcher uses it to suppress duplicate delivery. The due
// date is part of the key so recurring obligations (month 3 vs month 4 of
// a subscription) never collide.
func (e ReminderEvent) DedupeKey() string {
	return fmt.Sprintf("%s|%d|%s|%s|%d", e.Ref.PlanID, e.Ref.InstallmentSeq, e.Kind, e.DueDate, e.AttemptNumber)
}
