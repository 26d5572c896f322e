/*
Package factory provides JSON to Go plan and policy conversion.

PURPOSE:
  Converts JSON definitions into billing.PaymentPlan configurations and
  billing.ReminderPolicy values. This enables billing setup without code
  changes - academy admins define plans and reminder postures in JSON,
  stored alongside the tenant, and the factory creates the proper Go
  structs.

PLAN JSON SCHEMA:
  {
    "id": "plan-2026-spring-violin",
    "student_id": "student-42",
    "charge_type": "tuition",
    "category": "one_time_installments",
    "amount_total": 120000,
    "currency": "USD",
    "start_date": "2026-02-01",
    "timezone": "America/Sao_Paulo",
    "installments": {"count": 4, "cadence_days": 30}
  }

POLICY JSON SCHEMA:
  {
    "pre_due_days": 3,
    "grace_days": 2,
    "overdue_interval_days": 5,
    "max_overdue_attempts": 3,
    "contract_end_reminder_days": 14,
    "grace_counts_on_time": false
  }

KEY FEATURES:
  - Validates structure before any plan is constructed
  - Sets sensible defaults (UTC timezone, standard policy values)
  - Resolves charge types through the billing registry

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(jsonString)
  policy, err := f.ParsePolicy(jsonString)

SEE ALSO:
  - tuition/types.go: Go-based plan construction (BuildPlan)
  - billing/policy.go: ReminderPolicy validation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/tuition"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a payment plan.
type PlanJSON struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	ChargeType  string           `json:"charge_type"`
	Category    string           `json:"category"`
	AmountTotal int64            `json:"amount_total"` // minor currency units
	Currency    string           `json:"currency,omitempty"`
	StartDate   string           `json:"start_date"` // 2006-01-02
	Timezone    string           `json:"timezone,omitempty"`
	BillingDay  int              `json:"billing_day,omitempty"`
	Committed   int              `json:"committed_months,omitempty"`
	Installment *InstallmentJSON `json:"installments,omitempty"`
}

// InstallmentJSON configures installment generation.
type InstallmentJSON struct {
	Count       int `json:"count"`
	CadenceDays int `json:"cadence_days"`
}

// PolicyJSON is the JSON representation of a reminder policy.
type PolicyJSON struct {
	PreDueDays              *int `json:"pre_due_days,omitempty"`
	GraceDays               *int `json:"grace_days,omitempty"`
	OverdueIntervalDays     *int `json:"overdue_interval_days,omitempty"`
	MaxOverdueAttempts      *int `json:"max_overdue_attempts,omitempty"`
	ContractEndReminderDays *int `json:"contract_end_reminder_days,omitempty"`
	GraceCountsOnTime       bool `json:"grace_counts_on_time,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan converts a JSON plan definition into a PaymentPlan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*billing.PaymentPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}

	if pj.ID == "" {
		return nil, &billing.PlanConfigError{Reason: "plan id is required"}
	}
	start, err := time.Parse("2006-01-02", pj.StartDate)
	if err != nil {
		return nil, &billing.PlanConfigError{PlanID: billing.PlanID(pj.ID), Reason: "start_date must be YYYY-MM-DD"}
	}

	currency := billing.Currency(pj.Currency)
	if currency == "" {
		currency = billing.CurrencyUSD
	}
	tz := pj.Timezone
	if tz == "" {
		tz = "UTC"
	}

	charge, ok := billing.LookupChargeType(pj.ChargeType).(tuition.Charge)
	if pj.ChargeType != "" && !ok {
		return nil, &billing.PlanConfigError{PlanID: billing.PlanID(pj.ID), Reason: "unknown charge type: " + pj.ChargeType}
	}

	cfg := tuition.PlanConfig{
		ID:              billing.PlanID(pj.ID),
		StudentID:       billing.StudentID(pj.StudentID),
		Charge:          charge,
		Category:        billing.PlanCategory(pj.Category),
		Total:           billing.NewMoney(pj.AmountTotal, currency),
		StartDate:       start,
		Timezone:        tz,
		BillingDay:      pj.BillingDay,
		CommittedMonths: pj.Committed,
	}
	if pj.Installment != nil {
		cfg.InstallmentCount = pj.Installment.Count
		cfg.InstallmentCadence = pj.Installment.CadenceDays
	}

	return tuition.BuildPlan(cfg)
}

// ParsePolicy converts a JSON policy definition into a ReminderPolicy.
// Omitted fields fall back to the standard policy's values.
func (f *PlanFactory) ParsePolicy(jsonStr string) (billing.ReminderPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return billing.ReminderPolicy{}, fmt.Errorf("invalid policy JSON: %w", err)
	}

	policy := tuition.StandardPolicy()
	if pj.PreDueDays != nil {
		policy.PreDueDays = *pj.PreDueDays
	}
	if pj.GraceDays != nil {
		policy.GraceDays = *pj.GraceDays
	}
	if pj.OverdueIntervalDays != nil {
		policy.OverdueIntervalDays = *pj.OverdueIntervalDays
	}
	if pj.MaxOverdueAttempts != nil {
		policy.MaxOverdueAttempts = *pj.MaxOverdueAttempts
	}
	if pj.ContractEndReminderDays != nil {
		policy.ContractEndReminderDays = *pj.ContractEndReminderDays
	}
	policy.GraceCountsOnTime = pj.GraceCountsOnTime

	if err := policy.Validate(); err != nil {
		return billing.ReminderPolicy{}, err
	}
	return policy, nil
}
