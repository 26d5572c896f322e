package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/billing/store"
)

func savedPlan(t *testing.T, mem *store.Memory) *billing.PaymentPlan {
	t.Helper()
	total := billing.NewMoney(90000, billing.CurrencyUSD)
	insts, err := billing.GenerateInstallments("plan-1", total, 3, 30,
		billing.NewTimePoint(2026, time.March, 1, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plan := &billing.PaymentPlan{
		ID:           "plan-1",
		StudentID:    "student-1",
		Category:     billing.CategoryOneTimeInstallments,
		StartDate:    billing.NewTimePoint(2026, time.March, 1, time.UTC),
		AmountTotal:  total,
		Installments: insts,
	}
	if err := mem.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return plan
}

func TestMemory_GetPlanReturnsIndependentCopy(t *testing.T) {
	// GIVEN: A saved installment plan
	// WHEN: Mutating the plan a Get returned
	// THEN: The stored state is untouched; only store operations change it

	mem := store.NewMemory()
	savedPlan(t, mem)
	ctx := context.Background()

	got, err := mem.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	paid := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	got.Installments[0].PaidAt = &paid
	got.MonthsPaid = 99

	fresh, err := mem.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Installments[0].Paid() {
		t.Error("mutating a returned plan leaked into the store")
	}
	if fresh.MonthsPaid != 0 {
		t.Errorf("MonthsPaid = %d, want 0", fresh.MonthsPaid)
	}

	if err := mem.MarkInstallmentPaid(ctx, "plan-1", 1, paid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh, _ = mem.GetPlan(ctx, "plan-1")
	if !fresh.Installments[0].Paid() {
		t.Error("MarkInstallmentPaid should be visible on the next Get")
	}
}

func TestMemory_MarkInstallmentPaid_Errors(t *testing.T) {
	mem := store.NewMemory()
	savedPlan(t, mem)
	ctx := context.Background()
	paid := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	if err := mem.MarkInstallmentPaid(ctx, "missing", 1, paid); err != billing.ErrPlanNotFound {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
	if err := mem.MarkInstallmentPaid(ctx, "plan-1", 99, paid); err != billing.ErrInstallmentNotFound {
		t.Errorf("expected ErrInstallmentNotFound, got %v", err)
	}
}
