/*
duedate.go - Next-obligation calculation per plan category

PURPOSE:
  Answers "when is this plan's next payment due?" for every category.
  This is the first half of a scheduling tick: establish the obligation,
  then hand it to the evaluator (evaluator.go) to decide which reminder,
  if any, should fire.

CATEGORY RULES:
  OneTime:              due at StartDate; exactly one obligation.
  OneTimeInstallments:  due at the lowest-sequence unpaid installment.
  MonthlySubscription:  due on the billing day-of-month, rolled forward
                        from the number of periods already paid. Short
                        months clamp (day 31 -> Feb 28/29 -> Mar 31).
  ...Committed:         same recurrence, but terminal once the contract
                        end date passes, regardless of payment state.

TERMINAL RESULTS:
  "Nothing due" (all installments paid, one-time settled, contract over)
  is returned as ErrNoUpcomingObligation - a valid outcome the caller
  must distinguish from a date, not a failure.

SEE ALSO:
  - time.go: ClampDayOfMonth and zone-correct day arithmetic
  - ledger.go: NextUnpaidInstallment
*/
package billing

// =============================================================================
// DUE-DATE CALCULATOR
// =============================================================================

type DueDateCalculator struct{}

// NextDueDate computes the plan's next obligation date. Returns
// ErrNoUpcomingObligation when the plan has nothing further due, and a
// PlanConfigError when the plan itself is malformed.
//
// All arithmetic runs in the plan's timezone; the caller's zone and UTC
// are never consulted.
func (c DueDateCalculator) NextDueDate(plan *PaymentPlan) (TimePoint, error) {
	switch plan.Category {
	case CategoryOneTime:
		if plan.SettledAt != nil {
			return TimePoint{}, ErrNoUpcomingObligation
		}
		return plan.StartDate, nil

	case CategoryOneTimeInstallments:
		if len(plan.Installments) == 0 {
			return TimePoint{}, &PlanConfigError{PlanID: plan.ID, Reason: "installment plan has no installments"}
		}
		next := NextUnpaidInstallment(plan)
		if next == nil {
			return TimePoint{}, ErrNoUpcomingObligation
		}
		return next.DueDate, nil

	case CategoryMonthlySubscription:
		return c.monthlyDueDate(plan, plan.MonthsPaid), nil

	case CategoryMonthlySubscriptionCommitted:
		if plan.CommittedMonths <= 0 {
			return TimePoint{}, &PlanConfigError{PlanID: plan.ID, Reason: "committed plan requires committedMonths > 0"}
		}
		if plan.MonthsPaid >= plan.CommittedMonths {
			return TimePoint{}, ErrNoUpcomingObligation
		}
		due := c.monthlyDueDate(plan, plan.MonthsPaid)
		if due.AfterOrEqual(plan.ContractEnd()) {
			return TimePoint{}, ErrNoUpcomingObligation
		}
		return due, nil

	default:
		return TimePoint{}, &PlanConfigError{PlanID: plan.ID, Reason: "unknown plan category: " + string(plan.Category)}
	}
}

// monthlyDueDate computes the due date for the periodIndex-th billing
// period (0-based) after the start date. Clamping applies independently
// each month, so a day-31 plan is due Feb 28 and then Mar 31 again.
func (c DueDateCalculator) monthlyDueDate(plan *PaymentPlan, periodIndex int) TimePoint {
	start := plan.StartDate
	loc := plan.Timezone()
	day := plan.EffectiveBillingDay()

	// Anchor period: the first month whose billing day falls on or after
	// the start date. A billing day earlier in the start month would place
	// the first due date before the plan begins, so the anchor shifts one
	// month; every later period counts from the anchor.
	anchorYear, anchorMonth := start.Year(), start.Month()
	if ClampDayOfMonth(anchorYear, anchorMonth, day, loc).Before(start) {
		anchorYear, anchorMonth = addCalendarMonths(anchorYear, anchorMonth, 1)
	}

	year, month := addCalendarMonths(anchorYear, anchorMonth, periodIndex)
	return ClampDayOfMonth(year, month, day, loc)
}
