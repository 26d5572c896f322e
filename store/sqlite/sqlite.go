/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements billing.PlanStore and billing.ReminderLog using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  payment_plans:  One row per plan; category-specific columns default to
                  zero where they don't apply
  installments:   Ordered sequence per installment plan
  reminder_log:   Dispatched reminders keyed by dedupe key

PAYMENT TRANSITIONS:
  MarkInstallmentPaid and SettlePlan use conditional updates
  (WHERE paid_at IS NULL) so the unpaid -> paid transition happens at
  most once even when callers race. A second call matches zero rows and
  reports no error.

DUPLICATE DELIVERY:
  RecordReminder inserts by dedupe key with INSERT OR IGNORE and reports
  whether a row was actually written. Overdue installment reminders
  advance reminders_sent inside the same transaction, so the counter and
  the log can never disagree.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/campuskit/billing-engine/billing"
)

// Store implements billing.PlanStore and billing.ReminderLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ billing.PlanStore   = (*Store)(nil)
	_ billing.ReminderLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payment_plans (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		charge_type TEXT,
		category TEXT NOT NULL,
		start_date TEXT NOT NULL,
		timezone TEXT NOT NULL,
		amount_total TEXT NOT NULL,
		currency TEXT NOT NULL,
		billing_day INTEGER NOT NULL DEFAULT 0,
		committed_months INTEGER NOT NULL DEFAULT 0,
		contract_end_date TEXT,
		months_paid INTEGER NOT NULL DEFAULT 0,
		settled_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_student
		ON payment_plans(student_id);

	CREATE TABLE IF NOT EXISTS installments (
		plan_id TEXT NOT NULL REFERENCES payment_plans(id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT,
		reminders_sent INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (plan_id, sequence_number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_unpaid_due
		ON installments(due_date) WHERE paid_at IS NULL;

	-- The dedupe key is the duplicate-delivery guard.
	CREATE TABLE IF NOT EXISTS reminder_log (
		dedupe_key TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		installment_seq INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		due_date TEXT NOT NULL,
		attempt_number INTEGER NOT NULL DEFAULT 0,
		dispatched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminder_log_plan
		ON reminder_log(plan_id, dispatched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, plan *billing.PaymentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	chargeID := ""
	if plan.ChargeType != nil {
		chargeID = plan.ChargeType.ChargeID()
	}
	var contractEnd, settledAt sql.NullString
	if !plan.ContractEndDate.IsZero() {
		contractEnd = sql.NullString{String: plan.ContractEndDate.String(), Valid: true}
	}
	if plan.SettledAt != nil {
		settledAt = sql.NullString{String: plan.SettledAt.UTC().Format(time.RFC3339), Valid: true}
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_plans
			(id, student_id, charge_type, category, start_date, timezone,
			 amount_total, currency, billing_day, committed_months,
			 contract_end_date, months_paid, settled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			months_paid = excluded.months_paid,
			settled_at = excluded.settled_at`,
		string(plan.ID), string(plan.StudentID), chargeID, string(plan.Category),
		plan.StartDate.String(), plan.Timezone().String(),
		plan.AmountTotal.Value.String(), string(plan.AmountTotal.Currency),
		plan.BillingDay, plan.CommittedMonths, contractEnd, plan.MonthsPaid,
		settledAt, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	for _, inst := range plan.Installments {
		var paidAt sql.NullString
		if inst.PaidAt != nil {
			paidAt = sql.NullString{String: inst.PaidAt.UTC().Format(time.RFC3339), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO installments
				(plan_id, sequence_number, due_date, amount, paid_at, reminders_sent)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(plan_id, sequence_number) DO UPDATE SET
				paid_at = excluded.paid_at,
				reminders_sent = excluded.reminders_sent`,
			string(plan.ID), inst.SequenceNumber, inst.DueDate.String(),
			inst.Amount.Value.String(), paidAt, inst.RemindersSent)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetPlan(ctx context.Context, id billing.PlanID) (*billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, charge_type, category, start_date, timezone,
		       amount_total, currency, billing_day, committed_months,
		       contract_end_date, months_paid, settled_at, created_at
		FROM payment_plans WHERE id = ?`, string(id))

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, billing.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadInstallments(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]*billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, charge_type, category, start_date, timezone,
		       amount_total, currency, billing_day, committed_months,
		       contract_end_date, months_paid, settled_at, created_at
		FROM payment_plans ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*billing.PaymentPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, plan := range plans {
		if err := s.loadInstallments(ctx, plan); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (s *Store) MarkInstallmentPaid(ctx context.Context, id billing.PlanID, sequenceNumber int, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Conditional update: a second call matches zero rows and keeps the
	// original paid_at.
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET paid_at = ?
		WHERE plan_id = ? AND sequence_number = ? AND paid_at IS NULL`,
		paidAt.UTC().Format(time.RFC3339), string(id), sequenceNumber)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Zero rows: either already paid (fine) or the installment is missing.
	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM installments WHERE plan_id = ? AND sequence_number = ?`,
		string(id), sequenceNumber).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return billing.ErrInstallmentNotFound
	}
	return nil
}

func (s *Store) RecordPeriodPaid(ctx context.Context, id billing.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_plans SET months_paid = months_paid + 1 WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}

func (s *Store) SettlePlan(ctx context.Context, id billing.PlanID, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_plans SET settled_at = ?
		WHERE id = ? AND settled_at IS NULL`,
		paidAt.UTC().Format(time.RFC3339), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payment_plans WHERE id = ?`, string(id)).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}

// Reset clears all data. Development and demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"reminder_log", "installments", "payment_plans"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// REMINDER LOG
// =============================================================================

func (s *Store) RecordReminder(ctx context.Context, event billing.ReminderEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_log
			(dedupe_key, plan_id, installment_seq, kind, due_date, attempt_number, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.DedupeKey(), string(event.Ref.PlanID), event.Ref.InstallmentSeq,
		string(event.Kind), event.DueDate.String(), event.AttemptNumber,
		event.FiredAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil // already dispatched
	}

	// Counter and log move together or not at all.
	if event.Kind == billing.KindOverdue && event.Ref.InstallmentSeq > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE installments SET reminders_sent = reminders_sent + 1
			WHERE plan_id = ? AND sequence_number = ?`,
			string(event.Ref.PlanID), event.Ref.InstallmentSeq)
		if err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RemindersFor(ctx context.Context, id billing.PlanID) ([]billing.DispatchedReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT dedupe_key, plan_id, installment_seq, kind, due_date, attempt_number, dispatched_at
		FROM reminder_log WHERE plan_id = ? ORDER BY dispatched_at, dedupe_key`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.DispatchedReminder
	for rows.Next() {
		var (
			key, planID, kind, dueDate, dispatchedAt string
			seq, attempt                             int
		)
		if err := rows.Scan(&key, &planID, &seq, &kind, &dueDate, &attempt, &dispatchedAt); err != nil {
			return nil, err
		}
		due, err := parseDay(dueDate, time.UTC)
		if err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339, dispatchedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, billing.DispatchedReminder{
			Key: key,
			Event: billing.ReminderEvent{
				Kind:          billing.ReminderKind(kind),
				Ref:           billing.ObligationRef{PlanID: billing.PlanID(planID), InstallmentSeq: seq},
				DueDate:       due,
				FiredAt:       at,
				AttemptNumber: attempt,
			},
			DispatchedAt: at,
		})
	}
	return out, rows.Err()
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*billing.PaymentPlan, error) {
	var (
		id, studentID, chargeType, category string
		startDate, tzName, amount, currency string
		billingDay, committedMonths, paid   int
		contractEnd, settledAt              sql.NullString
		createdAt                           string
	)
	err := row.Scan(&id, &studentID, &chargeType, &category, &startDate, &tzName,
		&amount, &currency, &billingDay, &committedMonths, &contractEnd,
		&paid, &settledAt, &createdAt)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("plan %s has unknown timezone %q: %w", id, tzName, err)
	}
	start, err := parseDay(startDate, loc)
	if err != nil {
		return nil, err
	}

	plan := &billing.PaymentPlan{
		ID:              billing.PlanID(id),
		StudentID:       billing.StudentID(studentID),
		ChargeType:      billing.LookupChargeType(chargeType),
		Category:        billing.PlanCategory(category),
		StartDate:       start,
		AmountTotal:     billing.MustParseMoney(amount, billing.Currency(currency)),
		BillingDay:      billingDay,
		CommittedMonths: committedMonths,
		MonthsPaid:      paid,
	}
	if contractEnd.Valid {
		end, err := parseDay(contractEnd.String, loc)
		if err != nil {
			return nil, err
		}
		plan.ContractEndDate = end
	}
	if settledAt.Valid {
		t, err := time.Parse(time.RFC3339, settledAt.String)
		if err != nil {
			return nil, err
		}
		plan.SettledAt = &t
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		plan.CreatedAt = t
	}
	return plan, nil
}

func (s *Store) loadInstallments(ctx context.Context, plan *billing.PaymentPlan) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, due_date, amount, paid_at, reminders_sent
		FROM installments WHERE plan_id = ? ORDER BY sequence_number`, string(plan.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	loc := plan.Timezone()
	for rows.Next() {
		var (
			seq, sent       int
			dueDate, amount string
			paidAt          sql.NullString
		)
		if err := rows.Scan(&seq, &dueDate, &amount, &paidAt, &sent); err != nil {
			return err
		}
		due, err := parseDay(dueDate, loc)
		if err != nil {
			return err
		}
		inst := &billing.Installment{
			PlanID:         plan.ID,
			SequenceNumber: seq,
			DueDate:        due,
			Amount:         billing.MustParseMoney(amount, plan.AmountTotal.Currency),
			RemindersSent:  sent,
		}
		if paidAt.Valid {
			t, err := time.Parse(time.RFC3339, paidAt.String)
			if err != nil {
				return err
			}
			inst.PaidAt = &t
		}
		plan.Installments = append(plan.Installments, inst)
	}
	return rows.Err()
}

func parseDay(s string, loc *time.Location) (billing.TimePoint, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return billing.TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return billing.NewTimePoint(t.Year(), t.Month(), t.Day(), loc), nil
}
