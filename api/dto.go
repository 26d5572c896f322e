/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Plan:
    PlanDTO, InstallmentDTO (creation uses factory.PlanJSON directly)

  Schedule:
    ScheduleDTO, ObligationStatusDTO

  Payments:
    RecordPaymentRequest, PaymentResultDTO

  Reminders:
    ReminderDTO, RunResultDTO

  Policies:
    NamedPolicyDTO (wraps factory.PolicyJSON)

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON and PolicyJSON types
*/
package api

import (
	"time"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/factory"
)

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a payment plan in API responses.
type PlanDTO struct {
	ID              string           `json:"id"`
	StudentID       string           `json:"student_id"`
	ChargeType      string           `json:"charge_type,omitempty"`
	Category        string           `json:"category"`
	StartDate       string           `json:"start_date"`
	Timezone        string           `json:"timezone"`
	AmountTotal     int64            `json:"amount_total"` // minor currency units
	Currency        string           `json:"currency"`
	BillingDay      int              `json:"billing_day,omitempty"`
	CommittedMonths int              `json:"committed_months,omitempty"`
	ContractEndDate string           `json:"contract_end_date,omitempty"`
	MonthsPaid      int              `json:"months_paid"`
	SettledAt       *string          `json:"settled_at,omitempty"`
	Installments    []InstallmentDTO `json:"installments,omitempty"`
	CreatedAt       string           `json:"created_at,omitempty"`
}

// InstallmentDTO represents one installment of a plan.
type InstallmentDTO struct {
	SequenceNumber int     `json:"sequence_number"`
	DueDate        string  `json:"due_date"`
	Amount         int64   `json:"amount"`
	Paid           bool    `json:"paid"`
	PaidAt         *string `json:"paid_at,omitempty"`
	RemindersSent  int     `json:"reminders_sent"`
}

// =============================================================================
// SCHEDULE AND BALANCE TYPES
// =============================================================================

// ScheduleDTO reports a plan's next due date and the reminder state of
// its open obligations at the evaluation instant.
type ScheduleDTO struct {
	PlanID      string                `json:"plan_id"`
	AsOf        string                `json:"as_of"`
	NextDueDate *string               `json:"next_due_date"`
	Terminal    bool                  `json:"terminal"`
	Obligations []ObligationStatusDTO `json:"obligations"`
}

// ObligationStatusDTO is the evaluated state of one obligation.
type ObligationStatusDTO struct {
	InstallmentSeq int    `json:"installment_seq,omitempty"`
	DueDate        string `json:"due_date"`
	State          string `json:"state"`
	AttemptNumber  int    `json:"attempt_number,omitempty"`
	PendingKind    string `json:"pending_reminder,omitempty"`
}

// BalanceDTO reports what a plan still owes.
type BalanceDTO struct {
	PlanID            string `json:"plan_id"`
	Remaining         int64  `json:"remaining"` // minor currency units
	Currency          string `json:"currency"`
	InstallmentsPaid  int    `json:"installments_paid,omitempty"`
	InstallmentsTotal int    `json:"installments_total,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// RecordPaymentRequest marks an obligation as paid. SequenceNumber is
// required for installment plans and ignored otherwise. PaidAt defaults
// to the current time when omitted.
type RecordPaymentRequest struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	PaidAt         string `json:"paid_at,omitempty"` // RFC3339
}

// PaymentResultDTO reports the outcome of recording a payment.
type PaymentResultDTO struct {
	PlanID string  `json:"plan_id"`
	Timing string  `json:"timing"` // on_time, within_grace, late
	Plan   PlanDTO `json:"plan"`
}

// =============================================================================
// REMINDER TYPES
// =============================================================================

// ReminderDTO is one dispatched reminder from the log.
type ReminderDTO struct {
	Key            string `json:"key"`
	Kind           string `json:"kind"`
	PlanID         string `json:"plan_id"`
	InstallmentSeq int    `json:"installment_seq,omitempty"`
	DueDate        string `json:"due_date"`
	AttemptNumber  int    `json:"attempt_number,omitempty"`
	DispatchedAt   string `json:"dispatched_at"`
}

// RunResultDTO summarizes one reminder run.
type RunResultDTO struct {
	At         string            `json:"at"`
	Dispatched int               `json:"dispatched"`
	Duplicates int               `json:"duplicates"`
	Skipped    map[string]string `json:"skipped,omitempty"`
}

// =============================================================================
// POLICY TYPES
// =============================================================================

// NamedPolicyDTO is a reminder policy with its catalog name.
type NamedPolicyDTO struct {
	Name                    string `json:"name"`
	PreDueDays              int    `json:"pre_due_days"`
	GraceDays               int    `json:"grace_days"`
	OverdueIntervalDays     int    `json:"overdue_interval_days"`
	MaxOverdueAttempts      int    `json:"max_overdue_attempts"`
	ContractEndReminderDays int    `json:"contract_end_reminder_days"`
	GraceCountsOnTime       bool   `json:"grace_counts_on_time"`
}

// ValidatePolicyRequest wraps a policy definition for validation.
type ValidatePolicyRequest struct {
	Config factory.PolicyJSON `json:"config"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPlanDTO(plan *billing.PaymentPlan) PlanDTO {
	dto := PlanDTO{
		ID:              string(plan.ID),
		StudentID:       string(plan.StudentID),
		Category:        string(plan.Category),
		StartDate:       plan.StartDate.String(),
		Timezone:        plan.Timezone().String(),
		AmountTotal:     plan.AmountTotal.Value.IntPart(),
		Currency:        string(plan.AmountTotal.Currency),
		BillingDay:      plan.BillingDay,
		CommittedMonths: plan.CommittedMonths,
		MonthsPaid:      plan.MonthsPaid,
	}
	if plan.ChargeType != nil {
		dto.ChargeType = plan.ChargeType.ChargeID()
	}
	if !plan.ContractEndDate.IsZero() {
		dto.ContractEndDate = plan.ContractEndDate.String()
	}
	if plan.SettledAt != nil {
		s := plan.SettledAt.Format(time.RFC3339)
		dto.SettledAt = &s
	}
	if !plan.CreatedAt.IsZero() {
		dto.CreatedAt = plan.CreatedAt.Format(time.RFC3339)
	}
	for _, inst := range plan.Installments {
		dto.Installments = append(dto.Installments, toInstallmentDTO(inst))
	}
	return dto
}

func toInstallmentDTO(inst *billing.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		SequenceNumber: inst.SequenceNumber,
		DueDate:        inst.DueDate.String(),
		Amount:         inst.Amount.Value.IntPart(),
		Paid:           inst.Paid(),
		RemindersSent:  inst.RemindersSent,
	}
	if inst.PaidAt != nil {
		s := inst.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	return dto
}

func toReminderDTO(d billing.DispatchedReminder) ReminderDTO {
	return ReminderDTO{
		Key:            d.Key,
		Kind:           string(d.Event.Kind),
		PlanID:         string(d.Event.Ref.PlanID),
		InstallmentSeq: d.Event.Ref.InstallmentSeq,
		DueDate:        d.Event.DueDate.String(),
		AttemptNumber:  d.Event.AttemptNumber,
		DispatchedAt:   d.DispatchedAt.Format(time.RFC3339),
	}
}

func toNamedPolicyDTO(name string, p billing.ReminderPolicy) NamedPolicyDTO {
	return NamedPolicyDTO{
		Name:                    name,
		PreDueDays:              p.PreDueDays,
		GraceDays:               p.GraceDays,
		OverdueIntervalDays:     p.OverdueIntervalDays,
		MaxOverdueAttempts:      p.MaxOverdueAttempts,
		ContractEndReminderDays: p.ContractEndReminderDays,
		GraceCountsOnTime:       p.GraceCountsOnTime,
	}
}
