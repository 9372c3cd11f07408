package chore

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"choreboard/internal/schedule"
)

// ResetType governs when a completed chore's tracking cycle clears back to
// pending: at a fixed midnight boundary, when the due date passes, or
// synchronously inside the approval itself. The *_multi variants allow more
// than one credited completion per cycle.
type ResetType string

const (
	ResetMidnightSingle ResetType = "midnight_single"
	ResetMidnightMulti  ResetType = "midnight_multi"
	ResetDueDateSingle  ResetType = "due_date_single"
	ResetDueDateMulti   ResetType = "due_date_multi"
	ResetOnCompletion   ResetType = "on_completion"
)

func (rt ResetType) AtMidnight() bool {
	return rt == ResetMidnightSingle || rt == ResetMidnightMulti
}

func (rt ResetType) AtDueDate() bool {
	return rt == ResetDueDateSingle || rt == ResetDueDateMulti
}

func (rt ResetType) Multi() bool {
	return rt == ResetMidnightMulti || rt == ResetDueDateMulti
}

// OverdueType governs whether and when a past-due, incomplete instance is
// flagged overdue and when that flag clears.
type OverdueType string

const (
	// OverdueHold marks the instance overdue and holds the flag until the
	// reset boundary tied to the due date clears it.
	OverdueHold OverdueType = "hold_until_due"
	// OverdueClearAtReset marks the instance overdue and clears the flag at
	// the next reset boundary of any kind.
	OverdueClearAtReset OverdueType = "clear_at_reset"
	// OverdueClearOnLate resets and reschedules the instance the moment it is
	// detected late; the overdue flag never outlives the detecting pass.
	OverdueClearOnLate OverdueType = "clear_on_late"
	// OverdueNever means the instance is never flagged regardless of lateness.
	OverdueNever OverdueType = "never"
)

// PendingClaimType decides what happens to an unapproved claim still
// outstanding when a reset boundary arrives.
type PendingClaimType string

const (
	// ClaimHold skips the instance at the boundary, preserving the claim for
	// a human to approve later.
	ClaimHold PendingClaimType = "hold"
	// ClaimClear discards the claim with no credit before resetting.
	ClaimClear PendingClaimType = "clear"
	// ClaimAutoApprove credits the claimant(s) as if approved, then resets.
	ClaimAutoApprove PendingClaimType = "auto_approve"
)

// Criteria selects the assignment model: one independent instance per
// assigned kid, or a single instance shared by all of them.
type Criteria string

const (
	CriteriaIndependent Criteria = "independent"
	// CriteriaSharedAll requires every assigned kid to complete within the
	// same cycle for the instance to count as fully approved.
	CriteriaSharedAll Criteria = "shared_all"
	// CriteriaSharedFirst is satisfied by the first kid to complete.
	CriteriaSharedFirst Criteria = "shared_first"
)

func (c Criteria) Shared() bool {
	return c == CriteriaSharedAll || c == CriteriaSharedFirst
}

var (
	ErrNotFound     = errors.New("chore not found")
	ErrNoAssignees  = errors.New("chore has no assigned kids")
	ErrBadPolicyMix = errors.New("invalid policy combination")
)

// Chore is an immutable-per-edit task definition. The engine assumes every
// chore it receives already passed Validate; policy combinations are rejected
// here, at configuration time, not re-checked per tick.
type Chore struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"required,min=1,max=255"`
	Description string   `json:"description,omitempty"`
	Points      int      `json:"points" validate:"gte=0"`
	KidIDs      []string `json:"kid_ids" validate:"required,min=1"`

	Recurrence   schedule.Config  `json:"recurrence"`
	ResetType    ResetType        `json:"reset_type" validate:"required,oneof=midnight_single midnight_multi due_date_single due_date_multi on_completion"`
	Overdue      OverdueType      `json:"overdue" validate:"required,oneof=hold_until_due clear_at_reset clear_on_late never"`
	PendingClaim PendingClaimType `json:"pending_claim" validate:"required,oneof=hold clear auto_approve"`
	Criteria     Criteria         `json:"criteria" validate:"required,oneof=independent shared_all shared_first"`

	// Per-chore overrides for the scanner's due-soon and reminder windows.
	// Zero means "use the configured default".
	DueWindow    time.Duration `json:"due_window,omitempty"`
	ReminderLead time.Duration `json:"reminder_lead,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validate = validator.New()

// Validate checks field constraints and the cross-field policy rules the
// engine depends on.
func (c Chore) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Recurrence.Validate(); err != nil {
		return err
	}
	if len(c.KidIDs) == 0 {
		return ErrNoAssignees
	}

	// A slot-list chore cycles several times a day; a single midnight reset
	// would swallow all but the last slot.
	if c.Recurrence.Frequency == schedule.FreqDailyMulti && c.ResetType == ResetMidnightSingle {
		return fmt.Errorf("%w: %s frequency with %s reset", ErrBadPolicyMix, c.Recurrence.Frequency, c.ResetType)
	}
	// Due-date resets need a due date to fire on.
	if c.Recurrence.Frequency == schedule.FreqNone && c.ResetType.AtDueDate() {
		return fmt.Errorf("%w: %s reset without a recurring due date", ErrBadPolicyMix, c.ResetType)
	}
	// A chore with no due date can never be overdue.
	if c.Recurrence.Frequency == schedule.FreqNone && c.Overdue != OverdueNever {
		return fmt.Errorf("%w: overdue handling %q without a due date", ErrBadPolicyMix, c.Overdue)
	}
	return nil
}

func (c Chore) AssignedTo(kidID string) bool {
	for _, id := range c.KidIDs {
		if id == kidID {
			return true
		}
	}
	return false
}
