/*
evaluator.go - Reminder policy evaluator (derived-state ladder)

PURPOSE:
  Decides, for a given "now", which reminder an obligation should
  receive. There is no persisted state machine object: the state is
  derived fresh on every call by comparing now against boundaries
  computed from the due date and the policy. Re-running an evaluation
  is therefore always safe - two calls inside the same boundary window
  produce the same event with the same attempt number, and the
  dispatcher's dedupe key suppresses the duplicate send.

STATES (derived, never stored):

  Upcoming -> PreDue -> Grace -> Overdue(1) .. Overdue(n) -> Exhausted
                                                   |
  (any state) ------------------ Settled <---------+  once paid

  Committed subscriptions add an orthogonal contract-ending window that
  can co-occur with any ladder state during the final
  ContractEndReminderDays before the contract end date.

ATTEMPT NUMBERS:
  The active overdue attempt is computed from elapsed time:
    attempt = daysSince(dueDate + GraceDays) / OverdueIntervalDays + 1
  capped by MaxOverdueAttempts. Incrementing a counter per call would
  drift under retries; elapsed-time division cannot.

SEE ALSO:
  - policy.go: The boundary configuration
  - duedate.go: Produces the due date the ladder wraps around
  - types.go: ReminderEvent and DedupeKey
*/
package billing

import "time"

// =============================================================================
// OBLIGATION - One due-date instance, whatever owns it
// =============================================================================

// Obligation is a single due-date instance: the whole plan for one-time
// and subscription categories, or one installment for the installment
// category.
type Obligation struct {
	Ref           ObligationRef
	DueDate       TimePoint
	Settled       bool
	RemindersSent int
}

// ObligationFromInstallment adapts an installment for evaluation.
func ObligationFromInstallment(inst *Installment) Obligation {
	return Obligation{
		Ref:           ObligationRef{PlanID: inst.PlanID, InstallmentSeq: inst.SequenceNumber},
		DueDate:       inst.DueDate,
		Settled:       inst.Paid(),
		RemindersSent: inst.RemindersSent,
	}
}

// =============================================================================
// DERIVED STATE
// =============================================================================

type ObligationState string

const (
	StateUpcoming  ObligationState = "upcoming"
	StatePreDue    ObligationState = "pre_due"
	StateGrace     ObligationState = "grace"
	StateOverdue   ObligationState = "overdue"
	StateExhausted ObligationState = "exhausted"
	StateSettled   ObligationState = "settled"
)

// Evaluation is the result of one evaluator call for one obligation.
type Evaluation struct {
	State ObligationState

	// Active overdue attempt (1-based); 0 outside the overdue window.
	AttemptNumber int

	// The reminder that should fire now, or nil. At most one per call.
	Event *ReminderEvent
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluate derives the obligation's ladder state at `now` and returns the
// reminder event, if any, that is active in that window. Callers invoke
// this once per scheduling tick per obligation; more frequent calls are
// harmless because the event is identical within a boundary window.
func Evaluate(ob Obligation, now time.Time, policy ReminderPolicy) (Evaluation, error) {
	if err := policy.Validate(); err != nil {
		return Evaluation{}, err
	}

	// Settled short-circuits every transition.
	if ob.Settled {
		return Evaluation{State: StateSettled}, nil
	}

	due := ob.DueDate
	nowDay := DayOf(now, due.Location())
	preDueStart := due.AddDays(-policy.PreDueDays)
	overdueStart := due.AddDays(policy.GraceDays)

	switch {
	case nowDay.Before(preDueStart):
		return Evaluation{State: StateUpcoming}, nil

	case nowDay.Before(due):
		// PreDueDays == 0 leaves this window empty: preDueStart == due.
		return Evaluation{
			State: StatePreDue,
			Event: &ReminderEvent{Kind: KindPreDue, Ref: ob.Ref, DueDate: due, FiredAt: now},
		}, nil

	case nowDay.Before(overdueStart):
		return Evaluation{
			State: StateGrace,
			Event: &ReminderEvent{Kind: KindGracePeriod, Ref: ob.Ref, DueDate: due, FiredAt: now},
		}, nil
	}

	// Overdue ladder. The active attempt is a pure function of elapsed
	// days, so re-evaluation inside one interval repeats the same attempt.
	attempt := DaysBetween(overdueStart, nowDay)/policy.OverdueIntervalDays + 1
	if attempt > policy.MaxOverdueAttempts || ob.RemindersSent >= policy.MaxOverdueAttempts {
		return Evaluation{State: StateExhausted}, nil
	}
	return Evaluation{
		State:         StateOverdue,
		AttemptNumber: attempt,
		Event:         &ReminderEvent{Kind: KindOverdue, Ref: ob.Ref, DueDate: due, FiredAt: now, AttemptNumber: attempt},
	}, nil
}

// =============================================================================
// PLAN-LEVEL EVALUATION
// =============================================================================

// EvaluatePlan fans a plan out into its obligations by category, evaluates
// each, and collects the events that should fire at `now`. Committed
// subscriptions additionally contribute a contract-end event when inside
// the renewal window. Installment plans can yield several events in one
// tick (e.g. installment 2 overdue while installment 3 is pre-due).
func EvaluatePlan(plan *PaymentPlan, now time.Time, policy ReminderPolicy) ([]ReminderEvent, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var events []ReminderEvent
	calc := DueDateCalculator{}

	switch plan.Category {
	case CategoryOneTime:
		ev, err := Evaluate(Obligation{
			Ref:     ObligationRef{PlanID: plan.ID},
			DueDate: plan.StartDate,
			Settled: plan.SettledAt != nil,
		}, now, policy)
		if err != nil {
			return nil, err
		}
		if ev.Event != nil {
			events = append(events, *ev.Event)
		}

	case CategoryOneTimeInstallments:
		if len(plan.Installments) == 0 {
			return nil, &PlanConfigError{PlanID: plan.ID, Reason: "installment plan has no installments"}
		}
		for _, inst := range plan.Installments {
			ev, err := Evaluate(ObligationFromInstallment(inst), now, policy)
			if err != nil {
				return nil, err
			}
			if ev.Event != nil {
				events = append(events, *ev.Event)
			}
		}

	case CategoryMonthlySubscription, CategoryMonthlySubscriptionCommitted:
		due, err := calc.NextDueDate(plan)
		switch {
		case IsNothingDue(err):
			// Terminal or fully paid; only the contract-end window below
			// can still apply.
		case err != nil:
			return nil, err
		default:
			ev, evalErr := Evaluate(Obligation{
				Ref:     ObligationRef{PlanID: plan.ID},
				DueDate: due,
			}, now, policy)
			if evalErr != nil {
				return nil, evalErr
			}
			if ev.Event != nil {
				events = append(events, *ev.Event)
			}
		}

		if plan.Category == CategoryMonthlySubscriptionCommitted {
			if ev := contractEndEvent(plan, now, policy); ev != nil {
				events = append(events, *ev)
			}
		}

	default:
		return nil, &PlanConfigError{PlanID: plan.ID, Reason: "unknown plan category: " + string(plan.Category)}
	}

	return events, nil
}

// contractEndEvent returns the renewal reminder when `now` falls inside
// the final ContractEndReminderDays before the contract end date.
func contractEndEvent(plan *PaymentPlan, now time.Time, policy ReminderPolicy) *ReminderEvent {
	if policy.ContractEndReminderDays <= 0 {
		return nil
	}
	end := plan.ContractEnd()
	nowDay := DayOf(now, plan.Timezone())
	windowStart := end.AddDays(-policy.ContractEndReminderDays)
	if nowDay.Before(windowStart) || nowDay.AfterOrEqual(end) {
		return nil
	}
	return &ReminderEvent{
		Kind:    KindContractEnd,
		Ref:     ObligationRef{PlanID: plan.ID},
		DueDate: end,
		FiredAt: now,
	}
}
