/*
scheduler.go - Automated reminder scheduler

PURPOSE:
  Periodically runs the reminder evaluation over every stored plan and
  dispatches the events that should fire, deduplicated through the
  store's reminder log.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick loads all plans, evaluates them at the tick instant, and
    records each event under its dedupe key
  - Events already recorded are counted as duplicates and not re-sent
  - Delivery goes through the Notifier interface; the default logs

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunReminders endpoint (manual run)
  - tuition/run.go: The per-tick evaluation
  - billing/store.go: ReminderLog dedupe contract
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campuskit/billing-engine/billing"
	"github.com/campuskit/billing-engine/store/sqlite"
	"github.com/campuskit/billing-engine/tuition"
)

// =============================================================================
// NOTIFIER - Delivery sink for dispatched reminders
// =============================================================================

// Notifier delivers a reminder to the student. Implementations send
// email, SMS, or push; the engine only guarantees each event reaches the
// notifier once.
type Notifier interface {
	Notify(event billing.ReminderEvent)
}

// LogNotifier writes reminders to the application log. Default sink for
// development and demos.
type LogNotifier struct{}

func (LogNotifier) Notify(event billing.ReminderEvent) {
	if event.Ref.InstallmentSeq > 0 {
		log.Printf("[Reminder] %s plan=%s installment=%d due=%s attempt=%d",
			event.Kind, event.Ref.PlanID, event.Ref.InstallmentSeq, event.DueDate, event.AttemptNumber)
		return
	}
	log.Printf("[Reminder] %s plan=%s due=%s attempt=%d",
		event.Kind, event.Ref.PlanID, event.DueDate, event.AttemptNumber)
}

// =============================================================================
// SCHEDULER
// =============================================================================

// ReminderScheduler runs reminder ticks in the background.
type ReminderScheduler struct {
	Store         *sqlite.Store
	Policy        billing.ReminderPolicy
	Notifier      Notifier
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler sharing the handler's
// policy and notifier.
func NewReminderScheduler(store *sqlite.Store, handler *Handler) *ReminderScheduler {
	return &ReminderScheduler{
		Store:         store,
		Policy:        handler.Policy,
		Notifier:      handler.Notifier,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReminderScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now()

	outcome, err := dispatchReminders(ctx, rs.Store, rs.Policy, rs.Notifier, now)
	if err != nil {
		log.Printf("[Scheduler] Run failed: %v", err)
		return
	}

	for id, err := range outcome.Skipped {
		log.Printf("[Scheduler] Skipped plan %s: %v", id, err)
	}
	if outcome.Dispatched > 0 || outcome.Duplicates > 0 {
		log.Printf("[Scheduler] Completed: %d dispatched, %d duplicates suppressed",
			outcome.Dispatched, outcome.Duplicates)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReminderScheduler) RunNow() {
	rs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReminderScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}

// =============================================================================
// DISPATCH
// =============================================================================

// RunOutcome summarizes one dispatch pass.
type RunOutcome struct {
	Dispatched int
	Duplicates int
	Skipped    map[billing.PlanID]error
}

// dispatchReminders evaluates every plan at `now` and hands each fresh
// event to the notifier. The reminder log absorbs repeats, so calling
// this more often than the boundary windows change is harmless.
func dispatchReminders(ctx context.Context, store *sqlite.Store, policy billing.ReminderPolicy, notify Notifier, now time.Time) (RunOutcome, error) {
	plans, err := store.ListPlans(ctx)
	if err != nil {
		return RunOutcome{}, err
	}

	result, err := tuition.ReminderRun(plans, now, policy)
	if err != nil {
		return RunOutcome{}, err
	}

	outcome := RunOutcome{Skipped: result.Skipped}
	for _, event := range result.Events {
		fresh, err := store.RecordReminder(ctx, event)
		if err != nil {
			log.Printf("[Scheduler] Failed to record reminder %s: %v", event.DedupeKey(), err)
			continue
		}
		if !fresh {
			outcome.Duplicates++
			continue
		}
		if notify != nil {
			notify.Notify(event)
		}
		outcome.Dispatched++
	}
	return outcome, nil
}
