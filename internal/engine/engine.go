package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/notify"
	"choreboard/internal/points"
	"choreboard/internal/schedule"
)

// Options are the scan windows the engine falls back to when a chore does
// not override them.
type Options struct {
	DueSoonWindow time.Duration
	ReminderLead  time.Duration
}

// Engine composes the scanner, the approval-reset gatekeeper, and the
// claim/approve/disapprove workflow over injected repositories. It holds no
// instance state of its own; everything flows through the repos.
type Engine struct {
	Chores    chore.Repo
	Kids      kid.Repo
	Instances instance.Repo
	Points    *points.Evaluator
	Notify    notify.Dispatcher
	Clock     Clock
	Logger    *log.Logger

	optsMu sync.RWMutex
	opts   Options

	locks lockTable
}

func New(chores chore.Repo, kids kid.Repo, instances instance.Repo,
	ev *points.Evaluator, dispatcher notify.Dispatcher, clock Clock,
	logger *log.Logger, opts Options) *Engine {

	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if opts.DueSoonWindow <= 0 {
		opts.DueSoonWindow = 4 * time.Hour
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = 30 * time.Minute
	}
	return &Engine{
		Chores:    chores,
		Kids:      kids,
		Instances: instances,
		Points:    ev,
		Notify:    dispatcher,
		Clock:     clock,
		Logger:    logger,
		opts:      opts,
	}
}

// SetWindows replaces the fallback scan windows, used by config hot reload.
// Safe to call while the runner is mid-pass; the next window check sees the
// new values. Non-positive values leave the current window in place.
func (e *Engine) SetWindows(dueSoon, reminderLead time.Duration) {
	e.optsMu.Lock()
	defer e.optsMu.Unlock()
	if dueSoon > 0 {
		e.opts.DueSoonWindow = dueSoon
	}
	if reminderLead > 0 {
		e.opts.ReminderLead = reminderLead
	}
}

// Windows reports the current fallback scan windows.
func (e *Engine) Windows() Options {
	e.optsMu.RLock()
	defer e.optsMu.RUnlock()
	return e.opts
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

// AssignChore creates the tracked instances for a chore: one per kid for
// independent criteria, a single shared one otherwise. Due dates come from
// the first-occurrence rules.
func (e *Engine) AssignChore(ctx context.Context, ch chore.Chore) ([]instance.Instance, error) {
	now := e.now()
	due, err := schedule.FirstDue(ch.Recurrence, now)
	if err != nil {
		return nil, fmt.Errorf("first due for chore %s: %w", ch.ID, err)
	}

	var created []instance.Instance
	if ch.Criteria.Shared() {
		in, err := e.Instances.Create(ctx, instance.Instance{
			ChoreID:     ch.ID,
			State:       instance.StatePending,
			DueAt:       copyTime(due),
			PeriodStart: now,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, in)
		return created, nil
	}

	for _, kidID := range ch.KidIDs {
		in, err := e.Instances.Create(ctx, instance.Instance{
			ChoreID:     ch.ID,
			KidID:       kidID,
			State:       instance.StatePending,
			DueAt:       copyTime(due),
			PeriodStart: now,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, in)
	}
	return created, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (e *Engine) emit(kind notify.Kind, ch chore.Chore, in instance.Instance, kidID string, at time.Time) {
	e.Notify.Dispatch(notify.Event{
		Kind:       kind,
		ChoreID:    ch.ID,
		InstanceID: in.ID,
		KidID:      kidID,
		At:         at,
	})
}
