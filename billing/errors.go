/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every engine function either returns a fully valid result or exactly
  one typed failure; validation happens before any mutation, so a
  failure never leaves an installment ledger half-updated.

ERROR CATEGORIES:
  1. Configuration errors - Malformed plans or policies (client's fault)
  2. Terminal results - "Nothing is due", which is NOT a failure but is
     modeled as a sentinel so callers can't mistake it for a date
  3. Store errors - Persistence-level failures

USAGE:
  Callers branch with errors.Is:

    due, err := calc.NextDueDate(plan)
    switch {
    case errors.Is(err, billing.ErrNoUpcomingObligation):
        // plan is settled or terminal; nothing to schedule
    case billing.IsClientError(err):
        // surface as "misconfigured payment plan"
    }

SEE ALSO:
  - duedate.go: Returns plan configuration errors
  - ledger.go: Returns installment configuration errors
  - store.go: Store-level sentinels
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlanConfiguration is returned when a plan or reminder
	// policy is internally inconsistent (e.g. an installment plan with no
	// installments, a committed subscription with zero months).
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")

	// ErrInvalidInstallmentConfig is returned when an installment
	// generation request is malformed (count, cadence, or total out of
	// range).
	ErrInvalidInstallmentConfig = errors.New("invalid installment configuration")

	// ErrNoUpcomingObligation is the terminal "nothing due" result: all
	// installments paid, a one-time plan settled, or a committed contract
	// past its end date. It is a valid outcome, distinct from a
	// misconfiguration.
	ErrNoUpcomingObligation = errors.New("no upcoming obligation")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInstallmentNotFound is returned when a referenced installment
	// sequence number doesn't exist on the plan.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrDuplicateReminder is returned when a reminder with the same
	// dedupe key was already dispatched. Expected under re-evaluation.
	ErrDuplicateReminder = errors.New("reminder already dispatched")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PlanConfigError describes why a plan (or its reminder policy) is
// rejected.
type PlanConfigError struct {
	PlanID PlanID
	Reason string
}

func (e *PlanConfigError) Error() string {
	if e.PlanID == "" {
		return fmt.Sprintf("invalid plan configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid plan configuration for %s: %s", e.PlanID, e.Reason)
}

func (e *PlanConfigError) Unwrap() error { return ErrInvalidPlanConfiguration }

// InstallmentConfigError describes why an installment layout is rejected.
type InstallmentConfigError struct {
	Count       int
	CadenceDays int
	Total       Money
	Reason      string
}

func (e *InstallmentConfigError) Error() string {
	return fmt.Sprintf("invalid installment configuration (count=%d cadence=%d total=%v): %s",
		e.Count, e.CadenceDays, e.Total.Value, e.Reason)
}

func (e *InstallmentConfigError) Unwrap() error { return ErrInvalidInstallmentConfig }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input rather
// than an engine or store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlanConfiguration) ||
		errors.Is(err, ErrInvalidInstallmentConfig)
}

// IsNothingDue returns true for the terminal "no obligation" result.
func IsNothingDue(err error) bool {
	return errors.Is(err, ErrNoUpcomingObligation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrInstallmentNotFound)
}
