/*
run.go - Reminder runs across a set of plans

PURPOSE:
  A reminder run is one scheduling tick applied to every plan: evaluate
  each plan at the tick instant, collect the events that should fire,
  and report them in a stable order for the dispatcher. The run itself
  performs no delivery and no deduplication - those belong to the
  dispatch side (see billing.ReminderLog).

SEE ALSO:
  - billing/evaluator.go: Per-plan evaluation
  - api/scheduler.go: The background loop driving runs
*/
package tuition

import (
	"sort"
	"time"

	"github.com/campuskit/billing-engine/billing"
)

// RunResult is the outcome of one reminder run.
type RunResult struct {
	At     time.Time
	Events []billing.ReminderEvent

	// Plans that could not be evaluated, with the reason. A malformed
	// plan never aborts the whole run.
	Skipped map[billing.PlanID]error
}

// ReminderRun evaluates every plan at `now` under the policy and returns
// the events due for dispatch, ordered by plan then installment sequence.
func ReminderRun(plans []*billing.PaymentPlan, now time.Time, policy billing.ReminderPolicy) (RunResult, error) {
	if err := policy.Validate(); err != nil {
		return RunResult{}, err
	}

	result := RunResult{At: now, Skipped: make(map[billing.PlanID]error)}
	for _, plan := range plans {
		events, err := billing.EvaluatePlan(plan, now, policy)
		if err != nil {
			result.Skipped[plan.ID] = err
			continue
		}
		result.Events = append(result.Events, events...)
	}

	sort.Slice(result.Events, func(i, j int) bool {
		a, b := result.Events[i].Ref, result.Events[j].Ref
		if a.PlanID != b.PlanID {
			return a.PlanID < b.PlanID
		}
		return a.InstallmentSeq < b.InstallmentSeq
	})
	return result, nil
}
