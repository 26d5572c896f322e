/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the due-date and reminder engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Plans:
    GET    /api/plans                    List all plans
    POST   /api/plans                    Create plan from JSON
    GET    /api/plans/{id}               Get plan details
    GET    /api/plans/{id}/schedule      Next due date + obligation states
    GET    /api/plans/{id}/balance       Remaining balance
    GET    /api/plans/{id}/reminders     Dispatched reminder history
    POST   /api/plans/{id}/payments      Record a payment

  Policies:
    GET    /api/policies                 List built-in reminder policies
    POST   /api/policies/validate        Validate a policy definition

  Admin:
    POST   /api/admin/run                Trigger a reminder run now

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    POST   /api/scenarios/load           Load a demo scenario
    POST   /api/scenarios/reset          Reset database

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - PlanFactory: JSON to plan/policy conversion
  - Policy: The reminder posture applied to evaluation endpoints
  - Notifier: Delivery sink for dispatched reminders

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Plan or installment not found
  - 409: Conflict (duplicate plan)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/factory"
	"github.com/campuskit/billing-engine/store/sqlite"
	"github.com/campuskit/billing-engine/tuition"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	PlanFactory *factory.PlanFactory

	// Policy applied by the schedule, payment, and run endpoints.
	Policy billing.ReminderPolicy

	// Notifier receives freshly dispatched reminders.
	Notifier Notifier

	calc billing.DueDateCalculator

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:       store,
		PlanFactory: factory.NewPlanFactory(),
		Policy:      tuition.StandardPolicy(),
		Notifier:    &LogNotifier{},
	}
}

// =============================================================================
// PLAN ENDPOINTS
// =============================================================================

// ListPlans returns all payment plans.
// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, 0, len(plans))
	for _, plan := range plans {
		dtos = append(dtos, toPlanDTO(plan))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates a plan from a JSON definition.
// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	plan, err := h.PlanFactory.ParsePlan(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan definition", err)
		return
	}

	if _, err := h.Store.GetPlan(r.Context(), plan.ID); err == nil {
		writeError(w, http.StatusConflict, "Plan already exists", nil)
		return
	}

	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

// GetPlan returns one plan with its installments.
// GET /api/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// GetSchedule returns the plan's next due date and the evaluated state of
// its obligations. Accepts ?as_of=RFC3339 (defaults to now).
// GET /api/plans/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}

	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use RFC3339)", err)
			return
		}
		asOf = t
	}

	dto := ScheduleDTO{
		PlanID:      string(plan.ID),
		AsOf:        asOf.Format(time.RFC3339),
		Obligations: []ObligationStatusDTO{},
	}

	next, err := h.calc.NextDueDate(plan)
	switch {
	case err == nil:
		s := next.String()
		dto.NextDueDate = &s
	case billing.IsNothingDue(err):
		dto.Terminal = true
	default:
		writeDomainError(w, "Failed to compute due date", err)
		return
	}

	switch plan.Category {
	case billing.CategoryOneTimeInstallments:
		for _, inst := range plan.Installments {
			ev, err := billing.Evaluate(billing.ObligationFromInstallment(inst), asOf, h.Policy)
			if err != nil {
				writeDomainError(w, "Failed to evaluate installment", err)
				return
			}
			dto.Obligations = append(dto.Obligations, obligationStatus(inst.SequenceNumber, inst.DueDate, ev))
		}

	default:
		if dto.Terminal {
			break
		}
		ob := billing.Obligation{
			Ref:     billing.ObligationRef{PlanID: plan.ID},
			DueDate: next,
			Settled: plan.SettledAt != nil,
		}
		ev, err := billing.Evaluate(ob, asOf, h.Policy)
		if err != nil {
			writeDomainError(w, "Failed to evaluate obligation", err)
			return
		}
		dto.Obligations = append(dto.Obligations, obligationStatus(0, next, ev))
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetBalance returns what the plan still owes.
// GET /api/plans/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}

	remaining := billing.RemainingBalance(plan)
	dto := BalanceDTO{
		PlanID:    string(plan.ID),
		Remaining: remaining.Value.IntPart(),
		Currency:  string(remaining.Currency),
	}
	if plan.Category == billing.CategoryOneTimeInstallments {
		dto.InstallmentsTotal = len(plan.Installments)
		for _, inst := range plan.Installments {
			if inst.Paid() {
				dto.InstallmentsPaid++
			}
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// RecordPayment marks one obligation paid and reports the payment timing.
// POST /api/plans/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paidAt := time.Now()
	if req.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_at (use RFC3339)", err)
			return
		}
		paidAt = t
	}

	var due billing.TimePoint
	switch plan.Category {
	case billing.CategoryOneTimeInstallments:
		if req.SequenceNumber < 1 {
			writeError(w, http.StatusBadRequest, "sequence_number is required for installment plans", nil)
			return
		}
		var target *billing.Installment
		for _, inst := range plan.Installments {
			if inst.SequenceNumber == req.SequenceNumber {
				target = inst
				break
			}
		}
		if target == nil {
			writeError(w, http.StatusNotFound, "Installment not found", nil)
			return
		}
		due = target.DueDate
		if err := h.Store.MarkInstallmentPaid(r.Context(), plan.ID, req.SequenceNumber, paidAt); err != nil {
			writeDomainError(w, "Failed to record payment", err)
			return
		}

	case billing.CategoryOneTime:
		due = plan.StartDate
		if err := h.Store.SettlePlan(r.Context(), plan.ID, paidAt); err != nil {
			writeDomainError(w, "Failed to record payment", err)
			return
		}

	case billing.CategoryMonthlySubscription, billing.CategoryMonthlySubscriptionCommitted:
		next, err := h.calc.NextDueDate(plan)
		if err != nil {
			writeDomainError(w, "No open billing period for this plan", err)
			return
		}
		due = next
		if err := h.Store.RecordPeriodPaid(r.Context(), plan.ID); err != nil {
			writeDomainError(w, "Failed to record payment", err)
			return
		}

	default:
		writeError(w, http.StatusBadRequest, "Unknown plan category", nil)
		return
	}

	timing := billing.ClassifyPayment(paidAt, due, h.Policy)

	updated, err := h.Store.GetPlan(r.Context(), plan.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload plan", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResultDTO{
		PlanID: string(plan.ID),
		Timing: string(timing),
		Plan:   toPlanDTO(updated),
	})
}

// ListReminders returns the dispatched reminder history for a plan.
// GET /api/plans/{id}/reminders
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}

	reminders, err := h.Store.RemindersFor(r.Context(), plan.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reminders", err)
		return
	}

	dtos := make([]ReminderDTO, 0, len(reminders))
	for _, rem := range reminders {
		dtos = append(dtos, toReminderDTO(rem))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

// ListPolicies returns the built-in reminder policies.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []NamedPolicyDTO{
		toNamedPolicyDTO("standard", tuition.StandardPolicy()),
		toNamedPolicyDTO("lenient", tuition.LenientPolicy()),
		toNamedPolicyDTO("strict", tuition.StrictPolicy()),
	})
}

// ValidatePolicy parses and validates a policy definition without
// applying it.
// POST /api/policies/validate
func (h *Handler) ValidatePolicy(w http.ResponseWriter, r *http.Request) {
	var req ValidatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	raw, err := json.Marshal(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy config", err)
		return
	}
	policy, err := h.PlanFactory.ParsePolicy(string(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toNamedPolicyDTO("custom", policy))
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// RunReminders performs one reminder run immediately. Accepts ?at=RFC3339
// to evaluate at a different instant (demo/testing).
// POST /api/admin/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
		at = t
	}

	outcome, err := dispatchReminders(r.Context(), h.Store, h.Policy, h.Notifier, at)
	if err != nil {
		writeDomainError(w, "Reminder run failed", err)
		return
	}

	dto := RunResultDTO{
		At:         at.Format(time.RFC3339),
		Dispatched: outcome.Dispatched,
		Duplicates: outcome.Duplicates,
	}
	if len(outcome.Skipped) > 0 {
		dto.Skipped = make(map[string]string, len(outcome.Skipped))
		for id, err := range outcome.Skipped {
			dto.Skipped[string(id)] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// ResetDatabase clears all data (dev only).
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadPlan(w http.ResponseWriter, r *http.Request) (*billing.PaymentPlan, bool) {
	id := chi.URLParam(r, "id")
	plan, err := h.Store.GetPlan(r.Context(), billing.PlanID(id))
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Plan not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		}
		return nil, false
	}
	return plan, true
}

func obligationStatus(seq int, due billing.TimePoint, ev billing.Evaluation) ObligationStatusDTO {
	dto := ObligationStatusDTO{
		InstallmentSeq: seq,
		DueDate:        due.String(),
		State:          string(ev.State),
		AttemptNumber:  ev.AttemptNumber,
	}
	if ev.Event != nil {
		dto.PendingKind = string(ev.Event.Kind)
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsClientError(err) || billing.IsNothingDue(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
