package billing_test

import (
	"testing"
	"time"

	"github.com/campuskit/billing-engine/billing"
)

func obligation(due billing.TimePoint) billing.Obligation {
	return billing.Obligation{
		Ref:     billing.ObligationRef{PlanID: "plan-1"},
		DueDate: due,
	}
}

// =============================================================================
// LADDER BOUNDARIES
// =============================================================================

func TestEvaluate_LadderBoundaries(t *testing.T) {
	// GIVEN: preDue=3, grace=2, interval=5, maxAttempts=2, due = Mar 10
	// WHEN: Evaluating at each boundary day
	// THEN: The derived state walks the ladder exactly as configured

	due := day(2026, time.March, 10)
	policy := defaultPolicy()

	cases := []struct {
		name        string
		now         time.Time
		wantState   billing.ObligationState
		wantKind    billing.ReminderKind
		wantAttempt int
	}{
		{"day -4: before pre-due window", instant(2026, time.March, 6), billing.StateUpcoming, "", 0},
		{"day -3: pre-due window opens", instant(2026, time.March, 7), billing.StatePreDue, billing.KindPreDue, 0},
		{"day -1: still pre-due", instant(2026, time.March, 9), billing.StatePreDue, billing.KindPreDue, 0},
		{"day 0: grace window opens", instant(2026, time.March, 10), billing.StateGrace, billing.KindGracePeriod, 0},
		{"day 1: still grace", instant(2026, time.March, 11), billing.StateGrace, billing.KindGracePeriod, 0},
		{"day 2: overdue attempt 1", instant(2026, time.March, 12), billing.StateOverdue, billing.KindOverdue, 1},
		{"day 6: still attempt 1", instant(2026, time.March, 16), billing.StateOverdue, billing.KindOverdue, 1},
		{"day 7: overdue attempt 2", instant(2026, time.March, 17), billing.StateOverdue, billing.KindOverdue, 2},
		{"day 12: exhausted", instant(2026, time.March, 22), billing.StateExhausted, "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := billing.Evaluate(obligation(due), tc.now, policy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.State != tc.wantState {
				t.Errorf("expected state %s, got %s", tc.wantState, ev.State)
			}
			if tc.wantKind == "" {
				if ev.Event != nil {
					t.Errorf("expected no event, got %s", ev.Event.Kind)
				}
				return
			}
			if ev.Event == nil {
				t.Fatalf("expected %s event, got none", tc.wantKind)
			}
			if ev.Event.Kind != tc.wantKind {
				t.Errorf("expected kind %s, got %s", tc.wantKind, ev.Event.Kind)
			}
			if ev.Event.AttemptNumber != tc.wantAttempt {
				t.Errorf("expected attempt %d, got %d", tc.wantAttempt, ev.Event.AttemptNumber)
			}
		})
	}
}

func TestEvaluate_NoDoubleFireWithinBoundaryWindow(t *testing.T) {
	// GIVEN: Two instants inside the same overdue interval
	// WHEN: Evaluating at both
	// THEN: Both return attempt 1 with identical dedupe keys

	due := day(2026, time.March, 10)
	policy := defaultPolicy()

	first, err := billing.Evaluate(obligation(due), instant(2026, time.March, 13), policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := billing.Evaluate(obligation(due), instant(2026, time.March, 16), policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.AttemptNumber != 1 || second.AttemptNumber != 1 {
		t.Fatalf("expected attempt 1 at both instants, got %d and %d",
			first.AttemptNumber, second.AttemptNumber)
	}
	if first.Event.DedupeKey() != second.Event.DedupeKey() {
		t.Errorf("dedupe keys differ within one window: %q vs %q",
			first.Event.DedupeKey(), second.Event.DedupeKey())
	}
}

func TestEvaluate_SettledShortCircuits(t *testing.T) {
	// GIVEN: A paid obligation deep in what would be the overdue window
	// WHEN: Evaluating
	// THEN: State is settled and nothing fires

	ob := obligation(day(2026, time.March, 10))
	ob.Settled = true

	ev, err := billing.Evaluate(ob, instant(2026, time.April, 20), defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != billing.StateSettled || ev.Event != nil {
		t.Errorf("expected settled with no event, got %s / %v", ev.State, ev.Event)
	}
}

func TestEvaluate_DispatchCountCapsAttempts(t *testing.T) {
	// GIVEN: An obligation whose dispatcher already sent maxOverdueAttempts
	// WHEN: Evaluating inside what elapsed time says is attempt 1
	// THEN: Exhausted - the recorded sends take precedence

	ob := obligation(day(2026, time.March, 10))
	ob.RemindersSent = 2

	ev, err := billing.Evaluate(ob, instant(2026, time.March, 13), defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != billing.StateExhausted || ev.Event != nil {
		t.Errorf("expected exhausted with no event, got %s / %v", ev.State, ev.Event)
	}
}

func TestEvaluate_ZeroPreDueDaysSkipsWindow(t *testing.T) {
	policy := defaultPolicy()
	policy.PreDueDays = 0

	ev, err := billing.Evaluate(obligation(day(2026, time.March, 10)), instant(2026, time.March, 9), policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != billing.StateUpcoming {
		t.Errorf("expected upcoming the day before due, got %s", ev.State)
	}
}

func TestEvaluate_InvalidPolicies(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*billing.ReminderPolicy)
	}{
		{"negative grace", func(p *billing.ReminderPolicy) { p.GraceDays = -1 }},
		{"zero interval", func(p *billing.ReminderPolicy) { p.OverdueIntervalDays = 0 }},
		{"negative attempts", func(p *billing.ReminderPolicy) { p.MaxOverdueAttempts = -1 }},
		{"negative pre-due", func(p *billing.ReminderPolicy) { p.PreDueDays = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := defaultPolicy()
			tc.mutate(&policy)
			_, err := billing.Evaluate(obligation(day(2026, time.March, 10)), instant(2026, time.March, 10), policy)
			if !billing.IsClientError(err) {
				t.Errorf("expected plan configuration error, got %v", err)
			}
		})
	}
}

func TestEvaluate_UsesObligationTimezone(t *testing.T) {
	// GIVEN: A due date in UTC-5 and an instant that is already the due
	//        day in UTC but still the day before in UTC-5
	// WHEN: Evaluating
	// THEN: The obligation is still pre-due - day boundaries follow the
	//       plan's zone

	west := time.FixedZone("UTC-5", -5*3600)
	due := billing.NewTimePoint(2026, time.March, 10, west)

	// 02:00 UTC on Mar 10 is 21:00 Mar 9 in UTC-5.
	now := time.Date(2026, time.March, 10, 2, 0, 0, 0, time.UTC)

	ev, err := billing.Evaluate(obligation(due), now, defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != billing.StatePreDue {
		t.Errorf("expected pre-due in the plan's zone, got %s", ev.State)
	}
}

// =============================================================================
// PLAN-LEVEL EVALUATION
// =============================================================================

func TestEvaluatePlan_InstallmentsCanYieldMultipleEvents(t *testing.T) {
	// GIVEN: Installments due Mar 1 and Mar 11; it's Mar 9, so #1 sits in
	//        its second overdue attempt (still under the cap) while #2 has
	//        entered its pre-due window
	// WHEN: Evaluating the plan
	// THEN: #1 is overdue and #2 is pre-due in the same tick

	plan := installmentPlan(t, 1000, 2, 10, day(2026, time.March, 1))

	events, err := billing.EvaluatePlan(plan, instant(2026, time.March, 9), defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := map[billing.ReminderKind]int{}
	for _, e := range events {
		kinds[e.Kind]++
		if e.Kind == billing.KindOverdue && e.AttemptNumber != 2 {
			t.Errorf("expected overdue attempt 2, got %d", e.AttemptNumber)
		}
	}
	if kinds[billing.KindOverdue] != 1 || kinds[billing.KindPreDue] != 1 {
		t.Errorf("expected one overdue and one pre-due event, got %v", kinds)
	}
}

func TestEvaluatePlan_ExhaustedInstallmentStaysSilent(t *testing.T) {
	// GIVEN: Installments due Mar 1 and Mar 31; by Mar 29 the elapsed-time
	//        attempt for #1 is past the cap of 2
	// WHEN: Evaluating the plan
	// THEN: #1 emits nothing (exhausted is terminal); only #2's pre-due
	//       reminder fires

	plan := installmentPlan(t, 1000, 2, 30, day(2026, time.March, 1))

	events, err := billing.EvaluatePlan(plan, instant(2026, time.March, 29), defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, e := range events {
		if e.Ref.InstallmentSeq == 1 {
			t.Errorf("exhausted installment emitted %s attempt %d", e.Kind, e.AttemptNumber)
		}
	}
	if len(events) != 1 || events[0].Kind != billing.KindPreDue {
		t.Errorf("expected only the second installment's pre-due event, got %v", events)
	}
}

func TestEvaluatePlan_ContractEndWindowCoOccurs(t *testing.T) {
	// GIVEN: A 6-month committed plan ending Jul 15, renewal window 14
	//        days, last period unpaid; it's Jul 10
	// WHEN: Evaluating
	// THEN: Both a ladder event and a contract-end event fire

	plan := committedPlan(day(2026, time.January, 15), 6, 5)
	policy := defaultPolicy()
	policy.ContractEndReminderDays = 14
	policy.MaxOverdueAttempts = 10 // keep the ladder alive into July

	events, err := billing.EvaluatePlan(plan, instant(2026, time.July, 10), policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawContractEnd, sawLadder bool
	for _, e := range events {
		if e.Kind == billing.KindContractEnd {
			sawContractEnd = true
		} else {
			sawLadder = true
		}
	}
	if !sawContractEnd {
		t.Error("expected a contract-end event inside the renewal window")
	}
	if !sawLadder {
		t.Error("expected the overdue ladder to run alongside the renewal window")
	}
}

func TestEvaluatePlan_TerminalCommittedStopsLadder(t *testing.T) {
	// GIVEN: A committed plan past its contract with all periods paid
	// WHEN: Evaluating after the end date
	// THEN: No events at all - the plan is terminal

	plan := committedPlan(day(2026, time.January, 15), 6, 6)
	policy := defaultPolicy()
	policy.ContractEndReminderDays = 14

	events, err := billing.EvaluatePlan(plan, instant(2026, time.August, 1), policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events past contract end, got %d", len(events))
	}
}

func TestEvaluatePlan_SettledOneTimeIsSilent(t *testing.T) {
	paid := instant(2026, time.March, 1)
	plan := &billing.PaymentPlan{
		ID:          "ot-1",
		Category:    billing.CategoryOneTime,
		StartDate:   day(2026, time.March, 1),
		AmountTotal: usd(2500),
		SettledAt:   &paid,
	}

	events, err := billing.EvaluatePlan(plan, instant(2026, time.April, 1), defaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for a settled plan, got %d", len(events))
	}
}

// =============================================================================
// PAYMENT TIMING CLASSIFICATION
// =============================================================================

func TestClassifyPayment_GraceIsAPolicyChoice(t *testing.T) {
	due := day(2026, time.March, 10)
	inGrace := instant(2026, time.March, 11)

	strict := defaultPolicy()
	if got := billing.ClassifyPayment(inGrace, due, strict); got != billing.TimingWithinGrace {
		t.Errorf("expected within_grace, got %s", got)
	}

	lenient := defaultPolicy()
	lenient.GraceCountsOnTime = true
	if got := billing.ClassifyPayment(inGrace, due, lenient); got != billing.TimingOnTime {
		t.Errorf("expected on_time under GraceCountsOnTime, got %s", got)
	}

	late := instant(2026, time.March, 13)
	if got := billing.ClassifyPayment(late, due, lenient); got != billing.TimingLate {
		t.Errorf("expected late after grace, got %s", got)
	}
}
