package engine

import (
	"context"
	"fmt"
	"time"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/notify"
)

// Candidate pairs a tracked instance with its chore definition so the
// gatekeeper never has to re-resolve configuration mid-pass.
type Candidate struct {
	Chore    chore.Chore
	Instance instance.Instance
}

// Buckets is the scanner's output. An instance may appear in several
// buckets in the same pass (e.g. both due-soon and reminder-due).
type Buckets struct {
	Overdue          []Candidate
	DueSoon          []Candidate
	ReminderDue      []Candidate
	BoundaryMidnight []Candidate
	BoundaryDueDate  []Candidate
}

// Scan classifies every tracked instance against the reference instant in a
// single pass. It mutates nothing: flag transitions and boundary processing
// belong to the caller. A missing chore definition is logged and skipped so
// one orphaned instance cannot halt the pass.
func (e *Engine) Scan(ctx context.Context, ref time.Time) (Buckets, error) {
	chores, err := e.Chores.List(ctx)
	if err != nil {
		return Buckets{}, fmt.Errorf("list chores: %w", err)
	}
	byID := make(map[string]chore.Chore, len(chores))
	for _, c := range chores {
		byID[c.ID] = c
	}

	instances, err := e.Instances.List(ctx, instance.ListFilter{})
	if err != nil {
		return Buckets{}, fmt.Errorf("list instances: %w", err)
	}

	var b Buckets
	for _, in := range instances {
		ch, ok := byID[in.ChoreID]
		if !ok {
			e.Logger.Printf("scan: instance %s references missing chore %s, skipping", in.ID, in.ChoreID)
			continue
		}
		cand := Candidate{Chore: ch, Instance: in}

		if e.isNewlyOverdue(ch, in, ref) {
			b.Overdue = append(b.Overdue, cand)
		}
		if e.inWindow(in, ref, e.dueWindow(ch)) {
			b.DueSoon = append(b.DueSoon, cand)
		}
		if e.inWindow(in, ref, e.reminderLead(ch)) {
			b.ReminderDue = append(b.ReminderDue, cand)
		}

		// on_completion chores never reach a boundary bucket: their reset runs
		// synchronously inside Approve.
		if ch.ResetType.AtMidnight() {
			b.BoundaryMidnight = append(b.BoundaryMidnight, cand)
		}
		if ch.ResetType.AtDueDate() && in.DuePassed(ref) {
			b.BoundaryDueDate = append(b.BoundaryDueDate, cand)
		}
	}
	return b, nil
}

// isNewlyOverdue matches instances whose due date has passed but which have
// not been flagged yet. Completed states are excluded: a finished cycle
// waiting for its boundary is not late. A standing OverdueSince means the
// instance was already flagged this period (the flag clears at reset), so a
// kid who claims an already-overdue instance keeps the claim across ticks.
func (e *Engine) isNewlyOverdue(ch chore.Chore, in instance.Instance, ref time.Time) bool {
	if ch.Overdue == chore.OverdueNever {
		return false
	}
	if in.OverdueSince != nil {
		return false
	}
	if in.State != instance.StatePending && in.State != instance.StateClaimed {
		return false
	}
	// an open claim is flagged only when the chore discards unapproved claims
	// anyway; hold and auto_approve claims wait for the boundary table instead
	if in.State == instance.StateClaimed && ch.PendingClaim != chore.ClaimClear {
		return false
	}
	return in.DuePassed(ref)
}

func (e *Engine) inWindow(in instance.Instance, ref time.Time, window time.Duration) bool {
	if in.DueAt == nil || in.State.Completed() {
		return false
	}
	if in.DuePassed(ref) {
		return false
	}
	return in.DueAt.Sub(ref) <= window
}

func (e *Engine) dueWindow(ch chore.Chore) time.Duration {
	if ch.DueWindow > 0 {
		return ch.DueWindow
	}
	e.optsMu.RLock()
	defer e.optsMu.RUnlock()
	return e.opts.DueSoonWindow
}

func (e *Engine) reminderLead(ch chore.Chore) time.Duration {
	if ch.ReminderLead > 0 {
		return ch.ReminderLead
	}
	e.optsMu.RLock()
	defer e.optsMu.RUnlock()
	return e.opts.ReminderLead
}

// MarkOverdue flips the scanner's overdue bucket into the overdue state and
// applies the one policy that resolves immediately: clear_on_late resets and
// reschedules in the same pass, so the flag never survives it. Failures on
// one instance are logged and do not stop the rest.
func (e *Engine) MarkOverdue(ctx context.Context, candidates []Candidate, ref time.Time) {
	for _, cand := range candidates {
		if err := e.markOneOverdue(ctx, cand, ref); err != nil {
			e.Logger.Printf("overdue: instance %s: %v", cand.Instance.ID, err)
		}
	}
}

func (e *Engine) markOneOverdue(ctx context.Context, cand Candidate, ref time.Time) error {
	lock := e.locks.forInstance(cand.Instance.ID)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.Instances.Get(ctx, cand.Instance.ID)
	if err != nil {
		return err
	}
	// re-check under the lock; a claim or approval may have raced the sweep
	if !e.isNewlyOverdue(cand.Chore, in, ref) {
		return nil
	}

	since := ref
	in.State = instance.StateOverdue
	in.OverdueSince = &since

	if cand.Chore.Overdue == chore.OverdueClearOnLate {
		e.doReset(&in, ref)
		if err := e.doReschedule(ctx, cand.Chore, &in, nil, ref); err != nil {
			e.Logger.Printf("overdue: reschedule instance %s: %v", in.ID, err)
		}
	}

	if _, err := e.Instances.Update(ctx, in); err != nil {
		return err
	}
	e.emit(notify.KindOverdue, cand.Chore, in, in.KidID, ref)
	return nil
}
