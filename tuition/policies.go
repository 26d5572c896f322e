/*
policies.go - Pre-built reminder policy configurations

PURPOSE:
  Provides ready-to-use reminder policies for common academy billing
  postures. These are convenience functions; academies that need
  different windows configure their own ReminderPolicy (or store one as
  JSON and parse it through the factory package).

AVAILABLE POLICIES:
  StandardPolicy: 3-day heads-up, short grace, reminders every 5 days
                  with a cap of 3, two-week renewal window
  LenientPolicy:  Longer grace, slower cadence, grace payments count
                  as on-time for reporting
  StrictPolicy:   No grace, weekly reminders until the cap

CUSTOMIZATION:
  These are starting points. Real deployments often need per-charge-type
  overrides (event tickets rarely warrant an escalation ladder) or
  academy-level settings stored with the tenant.

SEE ALSO:
  - billing/policy.go: ReminderPolicy definition and validation
  - factory/plan.go: JSON-based policy creation
*/
package tuition

import "github.com/campuskit/billing-engine/billing"

// StandardPolicy returns the default academy reminder posture.
func StandardPolicy() billing.ReminderPolicy {
	return billing.ReminderPolicy{
		PreDueDays:              3,
		GraceDays:               2,
		OverdueIntervalDays:     5,
		MaxOverdueAttempts:      3,
		ContractEndReminderDays: 14,
	}
}

// LenientPolicy waits longer before escalating and treats grace-period
// payments as on-time.
func LenientPolicy() billing.ReminderPolicy {
	return billing.ReminderPolicy{
		PreDueDays:              7,
		GraceDays:               5,
		OverdueIntervalDays:     10,
		MaxOverdueAttempts:      2,
		ContractEndReminderDays: 30,
		GraceCountsOnTime:       true,
	}
}

// StrictPolicy escalates immediately after the due date.
func StrictPolicy() billing.ReminderPolicy {
	return billing.ReminderPolicy{
		PreDueDays:              1,
		GraceDays:               0,
		OverdueIntervalDays:     7,
		MaxOverdueAttempts:      5,
		ContractEndReminderDays: 7,
	}
}
