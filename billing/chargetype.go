/*
chargetype.go - Charge type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register their charge types
  (tuition, registration fees, event tickets, ...). Storage and the JSON
  factory use the registry to reconstruct concrete types from strings
  while the billing package itself stays domain-agnostic.

HOW IT WORKS:
  1. Domain packages define their ChargeType implementations
  2. Domain packages register them on init()
  3. Factory/storage use LookupChargeType to rebuild from strings

USAGE:
  // In tuition/types.go
  func init() {
      billing.RegisterChargeType(ChargeTuition)
  }

  // In factory or storage
  ct := billing.LookupChargeType("tuition")  // returns tuition.ChargeTuition

SEE ALSO:
  - types.go: ChargeType field on PaymentPlan
  - tuition/types.go: Academy charge type implementations
*/
package billing

import (
	"fmt"
	"sync"
)

// ChargeType identifies what a payment plan is charging for. This is an
// interface so domain packages define their own concrete types; the
// billing package has no knowledge of specific charges.
type ChargeType interface {
	// ChargeID returns the unique identifier for this charge type.
	ChargeID() string

	// ChargeDomain returns which domain this charge belongs to.
	ChargeDomain() string
}

// =============================================================================
// CHARGE TYPE REGISTRY
// =============================================================================

var (
	chargeRegistry = make(map[string]ChargeType)
	chargeMu       sync.RWMutex
)

// RegisterChargeType adds a charge type to the global registry.
// Call this from domain package init() functions.
func RegisterChargeType(c ChargeType) {
	chargeMu.Lock()
	defer chargeMu.Unlock()
	chargeRegistry[c.ChargeID()] = c
}

// LookupChargeType finds a registered charge type by ID.
// Returns nil if not found.
func LookupChargeType(id string) ChargeType {
	chargeMu.RLock()
	defer chargeMu.RUnlock()
	return chargeRegistry[id]
}

// MustLookupChargeType finds a registered charge type or panics.
// Use during startup when a missing registration is a programming error.
func MustLookupChargeType(id string) ChargeType {
	if c := LookupChargeType(id); c != nil {
		return c
	}
	panic(fmt.Sprintf("charge type not registered: %s", id))
}

// RegisteredChargeTypes returns the IDs of all registered charge types.
func RegisteredChargeTypes() []string {
	chargeMu.RLock()
	defer chargeMu.RUnlock()
	ids := make([]string, 0, len(chargeRegistry))
	for id := range chargeRegistry {
		ids = append(ids, id)
	}
	return ids
}
