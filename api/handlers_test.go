/*
handlers_test.go - Tests for the HTTP API

Tests for:
- Plan creation and retrieval
- Payment recording (idempotency, timing classification)
- Schedule evaluation
- Reminder runs through the dedupe log
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campuskit/billing-engine/store/sqlite"
)

func newTestRouter(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	h.Notifier = nil // silence the log in tests
	return h, NewRouter(h)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("Failed to encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

const semesterPlanJSON = `{
	"id": "plan-semester",
	"student_id": "student-1",
	"charge_type": "tuition",
	"category": "one_time_installments",
	"amount_total": 120000,
	"currency": "USD",
	"start_date": "2026-02-01",
	"timezone": "UTC",
	"installments": {"count": 4, "cadence_days": 30}
}`

func TestCreatePlan_AndFetch(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doRequest(t, router, "POST", "/api/plans", semesterPlanJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, "GET", "/api/plans/plan-semester", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get returned %d: %s", rec.Code, rec.Body.String())
	}
	plan := decodeBody[PlanDTO](t, rec)

	if len(plan.Installments) != 4 {
		t.Fatalf("Expected 4 installments, got %d", len(plan.Installments))
	}
	if plan.Installments[0].DueDate != "2026-02-01" {
		t.Errorf("First installment due %s, want 2026-02-01", plan.Installments[0].DueDate)
	}
	var sum int64
	for _, inst := range plan.Installments {
		sum += inst.Amount
	}
	if sum != plan.AmountTotal {
		t.Errorf("Installments sum to %d, want %d", sum, plan.AmountTotal)
	}
}

func TestCreatePlan_DuplicateRejected(t *testing.T) {
	_, router := newTestRouter(t)

	if rec := doRequest(t, router, "POST", "/api/plans", semesterPlanJSON); rec.Code != http.StatusCreated {
		t.Fatalf("First create returned %d", rec.Code)
	}
	if rec := doRequest(t, router, "POST", "/api/plans", semesterPlanJSON); rec.Code != http.StatusConflict {
		t.Errorf("Second create returned %d, want 409", rec.Code)
	}
}

func TestCreatePlan_InvalidDefinition(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doRequest(t, router, "POST", "/api/plans", `{"id": "p", "category": "weekly", "amount_total": 100, "start_date": "2026-01-01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Create returned %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doRequest(t, router, "GET", "/api/plans/no-such-plan", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Get returned %d, want 404", rec.Code)
	}
}

func TestRecordPayment_InstallmentIdempotent(t *testing.T) {
	// GIVEN: An installment plan with its first installment inside the
	//        grace window
	_, router := newTestRouter(t)
	doRequest(t, router, "POST", "/api/plans", semesterPlanJSON)

	pay := RecordPaymentRequest{SequenceNumber: 1, PaidAt: "2026-02-02T09:00:00Z"}

	// WHEN: Recording the payment twice
	rec := doRequest(t, router, "POST", "/api/plans/plan-semester/payments", pay)
	if rec.Code != http.StatusOK {
		t.Fatalf("Payment returned %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[PaymentResultDTO](t, rec)

	rec = doRequest(t, router, "POST", "/api/plans/plan-semester/payments", pay)
	if rec.Code != http.StatusOK {
		t.Fatalf("Repeat payment returned %d: %s", rec.Code, rec.Body.String())
	}
	second := decodeBody[PaymentResultDTO](t, rec)

	// THEN: The payment lands once, classified as within-grace
	if first.Timing != "within_grace" {
		t.Errorf("Timing = %s, want within_grace", first.Timing)
	}
	if !second.Plan.Installments[0].Paid {
		t.Error("First installment should remain paid")
	}
	if *first.Plan.Installments[0].PaidAt != *second.Plan.Installments[0].PaidAt {
		t.Errorf("PaidAt changed on repeat: %s then %s",
			*first.Plan.Installments[0].PaidAt, *second.Plan.Installments[0].PaidAt)
	}

	rec = doRequest(t, router, "GET", "/api/plans/plan-semester/balance", nil)
	balance := decodeBody[BalanceDTO](t, rec)
	if balance.Remaining != 90000 {
		t.Errorf("Remaining = %d, want 90000", balance.Remaining)
	}
	if balance.InstallmentsPaid != 1 {
		t.Errorf("InstallmentsPaid = %d, want 1", balance.InstallmentsPaid)
	}
}

func TestRecordPayment_MissingSequence(t *testing.T) {
	_, router := newTestRouter(t)
	doRequest(t, router, "POST", "/api/plans", semesterPlanJSON)

	rec := doRequest(t, router, "POST", "/api/plans/plan-semester/payments", RecordPaymentRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Payment returned %d, want 400", rec.Code)
	}
}

func TestGetSchedule_OverdueFirstInstallment(t *testing.T) {
	// GIVEN: The semester plan evaluated 4 days after its first due date
	_, router := newTestRouter(t)
	doRequest(t, router, "POST", "/api/plans", semesterPlanJSON)

	rec := doRequest(t, router, "GET", "/api/plans/plan-semester/schedule?as_of=2026-02-05T10:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Schedule returned %d: %s", rec.Code, rec.Body.String())
	}
	schedule := decodeBody[ScheduleDTO](t, rec)

	// THEN: The next due date is the unpaid first installment, which sits
	//       in its first overdue attempt (grace ended Feb 3)
	if schedule.NextDueDate == nil || *schedule.NextDueDate != "2026-02-01" {
		t.Fatalf("NextDueDate = %v, want 2026-02-01", schedule.NextDueDate)
	}
	if schedule.Terminal {
		t.Error("Plan should not be terminal")
	}
	if len(schedule.Obligations) != 4 {
		t.Fatalf("Expected 4 obligations, got %d", len(schedule.Obligations))
	}
	if schedule.Obligations[0].State != "overdue" || schedule.Obligations[0].AttemptNumber != 1 {
		t.Errorf("First obligation = %s attempt %d, want overdue attempt 1",
			schedule.Obligations[0].State, schedule.Obligations[0].AttemptNumber)
	}
	if schedule.Obligations[1].State != "upcoming" {
		t.Errorf("Second obligation = %s, want upcoming", schedule.Obligations[1].State)
	}
}

func TestGetSchedule_SettledOneTimeIsTerminal(t *testing.T) {
	_, router := newTestRouter(t)
	doRequest(t, router, "POST", "/api/plans", `{
		"id": "plan-fee",
		"student_id": "student-2",
		"charge_type": "registration",
		"category": "one_time",
		"amount_total": 15000,
		"start_date": "2026-03-01"
	}`)
	doRequest(t, router, "POST", "/api/plans/plan-fee/payments",
		RecordPaymentRequest{PaidAt: "2026-02-28T12:00:00Z"})

	rec := doRequest(t, router, "GET", "/api/plans/plan-fee/schedule?as_of=2026-03-10T10:00:00Z", nil)
	schedule := decodeBody[ScheduleDTO](t, rec)

	if !schedule.Terminal {
		t.Error("Settled one-time plan should be terminal")
	}
	if schedule.NextDueDate != nil {
		t.Errorf("NextDueDate = %v, want nil", *schedule.NextDueDate)
	}
}

func TestRunReminders_DedupeAcrossRuns(t *testing.T) {
	// GIVEN: The semester plan with its first installment in the first
	//        overdue attempt
	_, router := newTestRouter(t)
	doRequest(t, router, "POST", "/api/plans", semesterPlanJSON)

	// WHEN: Running twice inside the same overdue interval
	rec := doRequest(t, router, "POST", "/api/admin/run?at=2026-02-05T10:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Run returned %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[RunResultDTO](t, rec)

	rec = doRequest(t, router, "POST", "/api/admin/run?at=2026-02-06T10:00:00Z", nil)
	second := decodeBody[RunResultDTO](t, rec)

	// THEN: Exactly one reminder dispatches; the second run suppresses it
	if first.Dispatched != 1 {
		t.Errorf("First run dispatched %d, want 1", first.Dispatched)
	}
	if second.Dispatched != 0 || second.Duplicates != 1 {
		t.Errorf("Second run dispatched %d / %d duplicates, want 0 / 1",
			second.Dispatched, second.Duplicates)
	}

	rec = doRequest(t, router, "GET", "/api/plans/plan-semester/reminders", nil)
	reminders := decodeBody[[]ReminderDTO](t, rec)
	if len(reminders) != 1 {
		t.Fatalf("Expected 1 logged reminder, got %d", len(reminders))
	}
	if reminders[0].Kind != "overdue" || reminders[0].AttemptNumber != 1 {
		t.Errorf("Logged reminder = %s attempt %d, want overdue attempt 1",
			reminders[0].Kind, reminders[0].AttemptNumber)
	}

	// The dispatched attempt is reflected on the installment.
	rec = doRequest(t, router, "GET", "/api/plans/plan-semester", nil)
	plan := decodeBody[PlanDTO](t, rec)
	if plan.Installments[0].RemindersSent != 1 {
		t.Errorf("RemindersSent = %d, want 1", plan.Installments[0].RemindersSent)
	}
}

func TestValidatePolicy(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doRequest(t, router, "POST", "/api/policies/validate",
		`{"config": {"grace_days": 10}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Validate returned %d: %s", rec.Code, rec.Body.String())
	}
	policy := decodeBody[NamedPolicyDTO](t, rec)
	if policy.GraceDays != 10 {
		t.Errorf("GraceDays = %d, want 10", policy.GraceDays)
	}
	if policy.OverdueIntervalDays != 5 {
		t.Errorf("OverdueIntervalDays = %d, want the standard default 5", policy.OverdueIntervalDays)
	}

	rec = doRequest(t, router, "POST", "/api/policies/validate",
		`{"config": {"overdue_interval_days": 0}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid policy returned %d, want 400", rec.Code)
	}
}

func TestScenario_LoadAndReset(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doRequest(t, router, "POST", "/api/scenarios/load",
		LoadScenarioRequest{ScenarioID: "installment-semester"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Load returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, "GET", "/api/plans", nil)
	plans := decodeBody[[]PlanDTO](t, rec)
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan after load, got %d", len(plans))
	}

	rec = doRequest(t, router, "POST", "/api/scenarios/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Reset returned %d", rec.Code)
	}
	rec = doRequest(t, router, "GET", "/api/plans", nil)
	plans = decodeBody[[]PlanDTO](t, rec)
	if len(plans) != 0 {
		t.Errorf("Expected 0 plans after reset, got %d", len(plans))
	}
}
