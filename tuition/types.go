// Package tuition implements academy-billing specific plan management.
// It uses the billing engine with academy charge types, plan builders,
// and reminder policies.
package tuition

import (
	"fmt"
	"time"

	"github.com/campuskit/billing-engine/billing"
)

// =============================================================================
// ACADEMY CHARGE TYPES
// =============================================================================

// Charge is the concrete charge type for the academy domain.
// Implements billing.ChargeType.
type Charge string

func (c Charge) ChargeID() string     { return string(c) }
func (c Charge) ChargeDomain() string { return "academy" }

// Compile-time check that Charge implements billing.ChargeType
var _ billing.ChargeType = Charge("")

// Charge types for academy billing
const (
	ChargeTuition      Charge = "tuition"
	ChargeRegistration Charge = "registration"
	ChargeMaterials    Charge = "materials"
	ChargeEventTicket  Charge = "event_ticket"
)

// Register all academy charges with the billing registry
func init() {
	billing.RegisterChargeType(ChargeTuition)
	billing.RegisterChargeType(ChargeRegistration)
	billing.RegisterChargeType(ChargeMaterials)
	billing.RegisterChargeType(ChargeEventTicket)
}

// =============================================================================
// PLAN CONFIGURATION - What an enrollment asks the builder for
// =============================================================================

// PlanConfig describes a payment plan to build. BuildPlan validates it,
// generates installments where the category calls for them, and fixes the
// contract end date once, at creation.
type PlanConfig struct {
	ID        billing.PlanID
	StudentID billing.StudentID
	Charge    Charge
	Category  billing.PlanCategory
	Total     billing.Money
	StartDate time.Time
	Timezone  string // IANA name; all of the plan's day arithmetic uses it

	// One-time installments only
	InstallmentCount   int
	InstallmentCadence int // days between installments

	// Subscriptions only
	BillingDay int // 0 = start date's day

	// Committed subscriptions only
	CommittedMonths int
}

// BuildPlan constructs a valid PaymentPlan from the configuration.
// Category-specific requirements are enforced here so a plan that reaches
// the calculator or evaluator is never structurally malformed.
func BuildPlan(cfg PlanConfig) (*billing.PaymentPlan, error) {
	if !cfg.Category.Valid() {
		return nil, &billing.PlanConfigError{PlanID: cfg.ID, Reason: "unknown plan category: " + string(cfg.Category)}
	}
	if !cfg.Total.IsPositive() {
		return nil, &billing.PlanConfigError{PlanID: cfg.ID, Reason: "amountTotal must be > 0"}
	}
	if cfg.BillingDay < 0 || cfg.BillingDay > 31 {
		return nil, &billing.PlanConfigError{PlanID: cfg.ID, Reason: fmt.Sprintf("billingDay %d out of range", cfg.BillingDay)}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, &billing.PlanConfigError{PlanID: cfg.ID, Reason: "unknown timezone: " + cfg.Timezone}
	}

	start := billing.DayOf(cfg.StartDate, loc)
	plan := &billing.PaymentPlan{
		ID:          cfg.ID,
		StudentID:   cfg.StudentID,
		ChargeType:  cfg.Charge,
		Category:    cfg.Category,
		StartDate:   start,
		AmountTotal: cfg.Total,
		BillingDay:  cfg.BillingDay,
		CreatedAt:   time.Now(),
	}

	switch cfg.Category {
	case billing.CategoryOneTimeInstallments:
		insts, err := billing.GenerateInstallments(cfg.ID, cfg.Total, cfg.InstallmentCount, cfg.InstallmentCadence, start)
		if err != nil {
			return nil, err
		}
		plan.Installments = insts

	case billing.CategoryMonthlySubscriptionCommitted:
		if cfg.CommittedMonths <= 0 {
			return nil, &billing.PlanConfigError{PlanID: cfg.ID, Reason: "committed plan requires committedMonths > 0"}
		}
		plan.CommittedMonths = cfg.CommittedMonths
		plan.ContractEndDate = start.AddMonths(cfg.CommittedMonths)
	}

	return plan, nil
}
