/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for testing and demos. Each scenario creates plans in a known
  reminder state relative to the current date, so loading one and then
  triggering a run shows the engine doing something.

AVAILABLE SCENARIOS:
  single-invoice:      One registration fee, due a few days from now
  installment-semester: Semester tuition in 4 installments, first overdue
  monthly-membership:  Open-ended monthly subscription
  committed-contract:  6-month committed plan inside the renewal window

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build plans via tuition.BuildPlan
 3. Save them, optionally marking some payments

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "installment-semester"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - tuition/types.go: Plan construction
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/tuition"
)

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-invoice",
		Name:        "Single Invoice",
		Description: "One registration fee due in a few days; the pre-due window is active.",
	},
	{
		ID:          "installment-semester",
		Name:        "Semester in Installments",
		Description: "Semester tuition split into 4 monthly installments. The first is overdue, the second approaching.",
	},
	{
		ID:          "monthly-membership",
		Name:        "Monthly Membership",
		Description: "Open-ended monthly subscription with two periods already paid.",
	},
	{
		ID:          "committed-contract",
		Name:        "Committed Contract",
		Description: "6-month committed plan near its contract end; the renewal reminder window is open.",
	},
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the scenario loaded last, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario resets the database and loads a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "single-invoice":
		err = loadSingleInvoiceScenario(ctx, h)
	case "installment-semester":
		err = loadInstallmentSemesterScenario(ctx, h)
	case "monthly-membership":
		err = loadMonthlyMembershipScenario(ctx, h)
	case "committed-contract":
		err = loadCommittedContractScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSingleInvoiceScenario(ctx context.Context, h *Handler) error {
	plan, err := tuition.BuildPlan(tuition.PlanConfig{
		ID:        "demo-registration",
		StudentID: "student-ana",
		Charge:    tuition.ChargeRegistration,
		Category:  billing.CategoryOneTime,
		Total:     billing.NewMoney(15000, billing.CurrencyUSD),
		StartDate: time.Now().AddDate(0, 0, 2),
		Timezone:  "UTC",
	})
	if err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, plan)
}

func loadInstallmentSemesterScenario(ctx context.Context, h *Handler) error {
	// Started 40 days ago with a 30-day cadence: the first installment is
	// past its grace period, the second is a few days out.
	plan, err := tuition.BuildPlan(tuition.PlanConfig{
		ID:                 "demo-semester",
		StudentID:          "student-bruno",
		Charge:             tuition.ChargeTuition,
		Category:           billing.CategoryOneTimeInstallments,
		Total:              billing.NewMoney(240000, billing.CurrencyUSD),
		StartDate:          time.Now().AddDate(0, 0, -40),
		Timezone:           "UTC",
		InstallmentCount:   4,
		InstallmentCadence: 30,
	})
	if err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, plan)
}

func loadMonthlyMembershipScenario(ctx context.Context, h *Handler) error {
	plan, err := tuition.BuildPlan(tuition.PlanConfig{
		ID:         "demo-membership",
		StudentID:  "student-carla",
		Charge:     tuition.ChargeTuition,
		Category:   billing.CategoryMonthlySubscription,
		Total:      billing.NewMoney(20000, billing.CurrencyUSD),
		StartDate:  time.Now().AddDate(0, -2, -5),
		Timezone:   "UTC",
		BillingDay: 0, // bill on the start date's day each month
	})
	if err != nil {
		return err
	}
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return err
	}
	// Two periods already paid; the third is the open one.
	for i := 0; i < 2; i++ {
		if err := h.Store.RecordPeriodPaid(ctx, plan.ID); err != nil {
			return err
		}
	}
	return nil
}

func loadCommittedContractScenario(ctx context.Context, h *Handler) error {
	plan, err := tuition.BuildPlan(tuition.PlanConfig{
		ID:              "demo-contract",
		StudentID:       "student-diego",
		Charge:          tuition.ChargeTuition,
		Category:        billing.CategoryMonthlySubscriptionCommitted,
		Total:           billing.NewMoney(18000, billing.CurrencyUSD),
		StartDate:       time.Now().AddDate(0, -6, 10),
		Timezone:        "UTC",
		CommittedMonths: 6,
	})
	if err != nil {
		return err
	}
	if err := h.Store.SavePlan(ctx, plan); err != nil {
		return err
	}
	// Five of six periods paid; the last period and the contract-end
	// window are both live.
	for i := 0; i < 5; i++ {
		if err := h.Store.RecordPeriodPaid(ctx, plan.ID); err != nil {
			return err
		}
	}
	return nil
}
