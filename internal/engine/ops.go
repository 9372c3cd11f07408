package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/notify"
	"choreboard/internal/schedule"
)

// ErrMissingDueDate flags a reschedule attempted for a frequency that needs
// a prior due date on an instance that has none. The instance is left as-is
// rather than guessing a default.
var ErrMissingDueDate = errors.New("instance has no due date for a due-date-dependent frequency")

// catchUpLimit bounds the advance loop that walks a stale due date forward
// past the reference instant.
const catchUpLimit = 1000

// doReset clears the instance back to pending and starts a fresh tracking
// period. Idempotent: a second call produces the same end state.
func (e *Engine) doReset(in *instance.Instance, now time.Time) {
	in.State = instance.StatePending
	in.PeriodCount = 0
	in.Claims = map[string]instance.Claim{}
	in.OverdueSince = nil
	in.PeriodStart = now
}

// doReschedule computes and records the next due date. It never changes
// instance state, and it is only ever called right after doReset within the
// same decision (reset precedes reschedule; reschedule never runs alone).
//
// completedAt is the completion anchor for from_completion frequencies; nil
// falls back to the reference.
func (e *Engine) doReschedule(ctx context.Context, ch chore.Chore, in *instance.Instance, completedAt *time.Time, now time.Time) error {
	cfg := ch.Recurrence
	if cfg.Frequency == schedule.FreqNone {
		in.DueAt = nil
		return nil
	}
	if cfg.Frequency.NeedsPriorDue() && in.DueAt == nil {
		return fmt.Errorf("%w: instance %s frequency %s", ErrMissingDueDate, in.ID, cfg.Frequency)
	}

	ref := now
	if in.DueAt != nil {
		ref = *in.DueAt
	}

	due, err := schedule.NextDue(cfg, ref, completedAt)
	if err != nil {
		return fmt.Errorf("next due for instance %s: %w", in.ID, err)
	}
	if due == nil {
		in.DueAt = nil
		return nil
	}

	// A stale anchor (several missed cycles) can land in the past; walk it
	// forward so a pending instance never starts its period already due.
	for i := 0; !due.After(now); i++ {
		if i >= catchUpLimit {
			return fmt.Errorf("catch-up for instance %s: %w", in.ID, schedule.ErrIterationLimit)
		}
		due, err = schedule.NextDue(cfg, *due, completedAt)
		if err != nil {
			return fmt.Errorf("next due for instance %s: %w", in.ID, err)
		}
		if due == nil {
			in.DueAt = nil
			return nil
		}
	}

	in.DueAt = due
	return nil
}

// ForceReset resets a single instance outside the scanner/gatekeeper path,
// bypassing scope filtering. Administrative use only.
func (e *Engine) ForceReset(ctx context.Context, instanceID string) (instance.Instance, error) {
	lock := e.locks.forInstance(instanceID)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.Instances.Get(ctx, instanceID)
	if err != nil {
		return instance.Instance{}, err
	}
	ch, err := e.Chores.Get(ctx, in.ChoreID)
	if err != nil {
		return instance.Instance{}, err
	}

	now := e.now()
	completedAt := in.LastApprovedAt()
	e.doReset(&in, now)
	if err := e.doReschedule(ctx, ch, &in, completedAt, now); err != nil {
		e.Logger.Printf("force reset: reschedule instance %s: %v", in.ID, err)
	}

	updated, err := e.Instances.Update(ctx, in)
	if err != nil {
		return instance.Instance{}, err
	}
	e.emit(notify.KindReset, ch, updated, updated.KidID, now)
	return updated, nil
}

// ForceReschedule bumps a single instance's due date in place without
// touching its state. For bulk/manual correction flows.
func (e *Engine) ForceReschedule(ctx context.Context, instanceID string) (instance.Instance, error) {
	lock := e.locks.forInstance(instanceID)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.Instances.Get(ctx, instanceID)
	if err != nil {
		return instance.Instance{}, err
	}
	ch, err := e.Chores.Get(ctx, in.ChoreID)
	if err != nil {
		return instance.Instance{}, err
	}

	now := e.now()
	if err := e.doReschedule(ctx, ch, &in, in.LastApprovedAt(), now); err != nil {
		return instance.Instance{}, err
	}

	updated, err := e.Instances.Update(ctx, in)
	if err != nil {
		return instance.Instance{}, err
	}
	e.emit(notify.KindRescheduled, ch, updated, updated.KidID, now)
	return updated, nil
}

// ResetAll resets every tracked instance. Per-instance failures are logged
// and skipped; the sweep always finishes.
func (e *Engine) ResetAll(ctx context.Context) (int, error) {
	instances, err := e.Instances.List(ctx, instance.ListFilter{})
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, in := range instances {
		if _, err := e.ForceReset(ctx, in.ID); err != nil {
			e.Logger.Printf("reset all: instance %s: %v", in.ID, err)
			continue
		}
		reset++
	}
	return reset, nil
}

// ResetOverdue resets only the instances currently flagged overdue.
func (e *Engine) ResetOverdue(ctx context.Context) (int, error) {
	instances, err := e.Instances.List(ctx, instance.ListFilter{States: []instance.State{instance.StateOverdue}})
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, in := range instances {
		if _, err := e.ForceReset(ctx, in.ID); err != nil {
			e.Logger.Printf("reset overdue: instance %s: %v", in.ID, err)
			continue
		}
		reset++
	}
	return reset, nil
}
