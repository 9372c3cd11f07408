package engine

import (
	"context"
	"errors"
	"fmt"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/notify"
)

var (
	ErrNotAssigned = errors.New("kid is not assigned to this chore")
	ErrCompleted   = errors.New("instance already completed this period")
)

// Claim records a kid's completion claim, moving the instance to the
// claimed state until a parent approves or disapproves it.
func (e *Engine) Claim(ctx context.Context, instanceID, kidID string) (instance.Instance, error) {
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
	if err := e.checkAssignment(ch, in, kidID); err != nil {
		return instance.Instance{}, err
	}
	if in.State == instance.StateApproved {
		return instance.Instance{}, fmt.Errorf("%w: instance %s", ErrCompleted, in.ID)
	}
	if cl, ok := in.Claims[kidID]; ok {
		if !cl.Approved() {
			return instance.Instance{}, fmt.Errorf("%w: kid %s on instance %s", instance.ErrAlreadyClaimed, kidID, in.ID)
		}
		// multi-approval chores cycle back through pending, so an approved
		// claim just starts the next round; everywhere else a kid completes
		// at most once per period. A partially approved shared_all instance
		// stays claimable for the kids still outstanding.
		if !ch.ResetType.Multi() {
			return instance.Instance{}, fmt.Errorf("%w: kid %s on instance %s", ErrCompleted, kidID, in.ID)
		}
	}

	now := e.now()
	if in.Claims == nil {
		in.Claims = map[string]instance.Claim{}
	}
	in.Claims[kidID] = instance.Claim{KidID: kidID, ClaimedAt: now}
	// claiming an overdue instance pulls it back into the normal workflow;
	// OverdueSince stays recorded until the next reset
	in.State = instance.StateClaimed

	updated, err := e.Instances.Update(ctx, in)
	if err != nil {
		return instance.Instance{}, err
	}
	e.emit(notify.KindClaimed, ch, updated, kidID, now)
	return updated, nil
}

// Approve confirms a kid's claim, credits points, and advances the state
// machine. For on_completion chores a fully approved instance resets and
// reschedules synchronously here, with no timer involvement.
func (e *Engine) Approve(ctx context.Context, instanceID, kidID, approver string) (instance.Instance, error) {
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

	cl, ok := in.Claims[kidID]
	if !ok || cl.Approved() {
		return instance.Instance{}, fmt.Errorf("%w: kid %s on instance %s", instance.ErrNoClaim, kidID, in.ID)
	}

	now := e.now()
	cl.ApprovedAt = &now
	cl.ApprovedBy = approver
	in.Claims[kidID] = cl
	in.PeriodCount++

	e.creditKid(ctx, ch, in, kidID, now)

	if ch.ResetType.Multi() {
		// multi-approval cycles return to pending immediately so the chore
		// can be completed again before the boundary; the boundary reset
		// zeroes the counter
		in.State = instance.StatePending
	} else {
		in.State = e.stateAfterApproval(ch, in)
	}

	if ch.ResetType == chore.ResetOnCompletion && in.State == instance.StateApproved {
		completedAt := now
		e.doReset(&in, now)
		if err := e.doReschedule(ctx, ch, &in, &completedAt, now); err != nil {
			e.Logger.Printf("approve: reschedule instance %s: %v", in.ID, err)
		}
	}

	updated, err := e.Instances.Update(ctx, in)
	if err != nil {
		return instance.Instance{}, err
	}
	return updated, nil
}

// Disapprove rejects a kid's open claim with no credit. The instance falls
// back to whatever its remaining claims imply.
func (e *Engine) Disapprove(ctx context.Context, instanceID, kidID, actor, reason string) (instance.Instance, error) {
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

	cl, ok := in.Claims[kidID]
	if !ok || cl.Approved() {
		return instance.Instance{}, fmt.Errorf("%w: kid %s on instance %s", instance.ErrNoClaim, kidID, in.ID)
	}
	delete(in.Claims, kidID)

	switch {
	case len(in.OpenClaims()) > 0:
		in.State = instance.StateClaimed
	case len(in.ApprovedClaims()) > 0:
		in.State = e.stateAfterApproval(ch, in)
	default:
		in.State = instance.StatePending
	}

	now := e.now()
	updated, err := e.Instances.Update(ctx, in)
	if err != nil {
		return instance.Instance{}, err
	}
	e.Notify.Dispatch(notify.Event{
		Kind:       notify.KindDisapproved,
		ChoreID:    ch.ID,
		InstanceID: updated.ID,
		KidID:      kidID,
		At:         now,
		Extra:      map[string]any{"actor": actor, "reason": reason},
	})
	return updated, nil
}

// stateAfterApproval maps the claim bookkeeping to the instance state for
// single-approval cycles: independent and shared_first complete on one
// approval, shared_all completes when every assigned kid has one.
func (e *Engine) stateAfterApproval(ch chore.Chore, in instance.Instance) instance.State {
	if ch.Criteria != chore.CriteriaSharedAll {
		return instance.StateApproved
	}
	for _, kidID := range ch.KidIDs {
		cl, ok := in.Claims[kidID]
		if !ok || !cl.Approved() {
			return instance.StateApprovedInPart
		}
	}
	return instance.StateApproved
}

func (e *Engine) checkAssignment(ch chore.Chore, in instance.Instance, kidID string) error {
	if in.Shared() {
		if !ch.AssignedTo(kidID) {
			return fmt.Errorf("%w: kid %s chore %s", ErrNotAssigned, kidID, ch.ID)
		}
		return nil
	}
	if in.KidID != kidID {
		return fmt.Errorf("%w: kid %s instance %s", ErrNotAssigned, kidID, in.ID)
	}
	return nil
}
