// Package store provides in-memory PlanStore and ReminderLog
// implementations (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campuskit/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	plans     map[billing.PlanID]*billing.PaymentPlan
	reminders map[string]billing.DispatchedReminder
}

func NewMemory() *Memory {
	return &Memory{
		plans:     make(map[billing.PlanID]*billing.PaymentPlan),
		reminders: make(map[string]billing.DispatchedReminder),
	}
}

// Compile-time interface checks.
var (
	_ billing.PlanStore   = (*Memory)(nil)
	_ billing.ReminderLog = (*Memory)(nil)
)

func (m *Memory) SavePlan(_ context.Context, plan *billing.PaymentPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id billing.PlanID) (*billing.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, billing.ErrPlanNotFound
	}
	return clonePlan(plan), nil
}

func (m *Memory) ListPlans(_ context.Context) ([]*billing.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plans := make([]*billing.PaymentPlan, 0, len(m.plans))
	for _, p := range m.plans {
		plans = append(plans, clonePlan(p))
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (m *Memory) MarkInstallmentPaid(_ context.Context, id billing.PlanID, sequenceNumber int, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return billing.ErrPlanNotFound
	}
	for _, inst := range plan.Installments {
		if inst.SequenceNumber == sequenceNumber {
			billing.MarkInstallmentPaid(inst, paidAt)
			return nil
		}
	}
	return billing.ErrInstallmentNotFound
}

func (m *Memory) RecordPeriodPaid(_ context.Context, id billing.PlanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return billing.ErrPlanNotFound
	}
	plan.MonthsPaid++
	return nil
}

func (m *Memory) SettlePlan(_ context.Context, id billing.PlanID, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return billing.ErrPlanNotFound
	}
	if plan.SettledAt == nil {
		t := paidAt
		plan.SettledAt = &t
	}
	return nil
}

// =============================================================================
// REMINDER LOG
// =============================================================================

func (m *Memory) RecordReminder(_ context.Context, event billing.ReminderEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := event.DedupeKey()
	if _, exists := m.reminders[key]; exists {
		return false, nil
	}
	m.reminders[key] = billing.DispatchedReminder{
		Key:          key,
		Event:        event,
		DispatchedAt: event.FiredAt,
	}

	// Overdue installment reminders advance the per-installment counter.
	if event.Kind == billing.KindOverdue && event.Ref.InstallmentSeq > 0 {
		if plan, ok := m.plans[event.Ref.PlanID]; ok {
			for _, inst := range plan.Installments {
				if inst.SequenceNumber == event.Ref.InstallmentSeq {
					inst.RemindersSent++
				}
			}
		}
	}
	return true, nil
}

func (m *Memory) RemindersFor(_ context.Context, id billing.PlanID) ([]billing.DispatchedReminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.DispatchedReminder
	for _, r := range m.reminders {
		if r.Event.Ref.PlanID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DispatchedAt.Before(out[j].DispatchedAt) })
	return out, nil
}

// clonePlan deep-copies a plan so callers can't mutate stored state
// without going through the store.
func clonePlan(p *billing.PaymentPlan) *billing.PaymentPlan {
	cp := *p
	if p.SettledAt != nil {
		t := *p.SettledAt
		cp.SettledAt = &t
	}
	cp.Installments = make([]*billing.Installment, len(p.Installments))
	for i, inst := range p.Installments {
		ci := *inst
		if inst.PaidAt != nil {
			t := *inst.PaidAt
			ci.PaidAt = &t
		}
		cp.Installments[i] = &ci
	}
	return &cp
}
