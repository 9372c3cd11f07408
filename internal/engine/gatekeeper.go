package engine

import (
	"context"
	"time"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/notify"
)

// Trigger identifies which boundary invoked the gatekeeper.
type Trigger string

const (
	TriggerMidnight Trigger = "midnight"
	TriggerDueDate  Trigger = "due_date"
)

func (t Trigger) matches(rt chore.ResetType) bool {
	switch t {
	case TriggerMidnight:
		return rt.AtMidnight()
	case TriggerDueDate:
		return rt.AtDueDate()
	}
	return false
}

// BoundaryReport summarizes one gatekeeper pass.
type BoundaryReport struct {
	Trigger      Trigger `json:"trigger"`
	Processed    int     `json:"processed"`
	Reset        int     `json:"reset"`
	Held         int     `json:"held"`
	AutoApproved int     `json:"auto_approved"`
	Cleared      int     `json:"cleared"`
	Skipped      int     `json:"skipped"`
	Errors       int     `json:"errors"`
}

// ApplyBoundary runs the reset decision tree over a scanned boundary bucket.
// Each candidate is re-read and re-evaluated under its instance lock, so a
// human action racing the sweep is decided one way or the other, never half
// of each. Failures on one instance are logged and counted, not propagated:
// partial progress beats none.
func (e *Engine) ApplyBoundary(ctx context.Context, trigger Trigger, candidates []Candidate) BoundaryReport {
	report := BoundaryReport{Trigger: trigger}
	now := e.now()

	for _, cand := range candidates {
		// scope filter: a bucket entry only belongs to its matching trigger
		if !trigger.matches(cand.Chore.ResetType) {
			report.Skipped++
			continue
		}
		report.Processed++

		outcome, err := e.applyOne(ctx, cand, now)
		if err != nil {
			report.Errors++
			e.Logger.Printf("gatekeeper %s: instance %s: %v", trigger, cand.Instance.ID, err)
			continue
		}
		switch outcome {
		case outcomeReset:
			report.Reset++
		case outcomeHeld:
			report.Held++
		case outcomeAutoApproved:
			report.AutoApproved++
			report.Reset++
		case outcomeCleared:
			report.Cleared++
			report.Reset++
		case outcomeSkipped:
			report.Skipped++
		}
	}
	return report
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeReset
	outcomeHeld
	outcomeAutoApproved
	outcomeCleared
)

// applyOne executes the state-dependent decision for a single candidate.
// Independent instances are per-kid records already; shared instances are
// evaluated once, covering every kid's claim state together.
func (e *Engine) applyOne(ctx context.Context, cand Candidate, now time.Time) (outcome, error) {
	lock := e.locks.forInstance(cand.Instance.ID)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.Instances.Get(ctx, cand.Instance.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	ch := cand.Chore

	switch in.State {
	case instance.StatePending:
		// nothing to clear: due date is in the future or absent
		return outcomeSkipped, nil

	case instance.StateApproved, instance.StateApprovedInPart:
		// the common case: completed, now starting the next cycle. Partial
		// completion is reset identically to full completion.
		return outcomeReset, e.resetAndReschedule(ctx, ch, in, now)

	case instance.StateClaimed:
		return e.resolvePendingClaim(ctx, ch, in, now)

	case instance.StateOverdue:
		return e.resolveOverdue(ctx, ch, in, now)
	}
	return outcomeSkipped, nil
}

// resolvePendingClaim is the decision table for an unapproved claim still
// outstanding when the boundary arrives.
func (e *Engine) resolvePendingClaim(ctx context.Context, ch chore.Chore, in instance.Instance, now time.Time) (outcome, error) {
	switch ch.PendingClaim {
	case chore.ClaimHold:
		// preserved for a human to approve later; untouched this pass
		return outcomeHeld, nil

	case chore.ClaimAutoApprove:
		for _, cl := range in.OpenClaims() {
			e.creditKid(ctx, ch, in, cl.KidID, now)
		}
		if err := e.resetAndReschedule(ctx, ch, in, now); err != nil {
			return outcomeSkipped, err
		}
		return outcomeAutoApproved, nil

	case chore.ClaimClear:
		// discarded with no credit
		if err := e.resetAndReschedule(ctx, ch, in, now); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCleared, nil
	}
	return outcomeSkipped, nil
}

// resolveOverdue is the decision table for an overdue instance at a boundary.
func (e *Engine) resolveOverdue(ctx context.Context, ch chore.Chore, in instance.Instance, now time.Time) (outcome, error) {
	switch ch.Overdue {
	case chore.OverdueClearOnLate:
		// already resolved when the flag was first set
		return outcomeSkipped, nil
	case chore.OverdueHold, chore.OverdueClearAtReset:
		return outcomeReset, e.resetAndReschedule(ctx, ch, in, now)
	}
	// never-overdue instances cannot reach this state
	return outcomeSkipped, nil
}

// resetAndReschedule is the only place boundary processing advances a due
// date, and the reset always comes first: the due date is never moved while
// approval or claim state is still standing.
func (e *Engine) resetAndReschedule(ctx context.Context, ch chore.Chore, in instance.Instance, now time.Time) error {
	completedAt := in.LastApprovedAt()
	e.doReset(&in, now)
	if err := e.doReschedule(ctx, ch, &in, completedAt, now); err != nil {
		// data-integrity or calculation failure: keep the reset, leave the
		// due date alone, surface the error to the pass log
		if _, uerr := e.Instances.Update(ctx, in); uerr != nil {
			return uerr
		}
		return err
	}
	if _, err := e.Instances.Update(ctx, in); err != nil {
		return err
	}
	e.emit(notify.KindReset, ch, in, in.KidID, now)
	return nil
}

// creditKid awards points for one kid's completion, fire-and-forget: a
// failed award is logged and never blocks the boundary decision.
func (e *Engine) creditKid(ctx context.Context, ch chore.Chore, in instance.Instance, kidID string, now time.Time) {
	e.emit(notify.KindApproved, ch, in, kidID, now)
	if e.Points == nil {
		return
	}
	res, err := e.Points.Award(ctx, kidID, ch.Points, now)
	if err != nil {
		e.Logger.Printf("points: award kid %s chore %s: %v", kidID, ch.ID, err)
		return
	}
	e.Notify.Dispatch(notify.Event{
		Kind:       notify.KindPointsEarned,
		ChoreID:    ch.ID,
		InstanceID: in.ID,
		KidID:      kidID,
		At:         now,
		Extra:      map[string]any{"points": res.Points, "bonus": res.BonusPoints, "streak": res.Streak},
	})
}
