package instance

import (
	"errors"
	"time"
)

// State is the finite lifecycle of a tracked instance.
type State string

const (
	StatePending State = "pending"
	StateClaimed State = "claimed"
	// StateApproved means the cycle is fully complete. For shared_all chores
	// with some but not all kids approved, the instance sits in
	// StateApprovedInPart instead.
	StateApproved       State = "approved"
	StateApprovedInPart State = "approved_in_part"
	StateOverdue        State = "overdue"
)

// Completed reports whether the state counts as a completed cycle at a reset
// boundary. Partial completion is deliberately treated like full completion
// there: the boundary always clears the whole cycle.
func (s State) Completed() bool {
	return s == StateApproved || s == StateApprovedInPart
}

var (
	ErrNotFound       = errors.New("instance not found")
	ErrBadTransition  = errors.New("invalid state transition")
	ErrAlreadyClaimed = errors.New("kid already has an open claim")
	ErrNoClaim        = errors.New("no claim to act on")
)

// Claim records one kid's in-flight or approved completion within the
// current tracking period.
type Claim struct {
	KidID      string     `json:"kid_id"`
	ClaimedAt  time.Time  `json:"claimed_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`
}

func (c Claim) Approved() bool { return c.ApprovedAt != nil }

// Instance is the unit the engine operates on: one per (chore, kid) pair for
// independent chores, one per chore for shared ones (KidID empty). Claims
// keeps per-kid bookkeeping beneath a shared instance.
type Instance struct {
	ID      string `json:"id"`
	ChoreID string `json:"chore_id"`
	// KidID is empty for shared instances.
	KidID string `json:"kid_id,omitempty"`

	State State `json:"state"`
	// DueAt is nil for non-recurring, due-date-less chores.
	DueAt *time.Time `json:"due_at,omitempty"`
	// PeriodStart marks the start of the current approval-tracking period.
	PeriodStart time.Time `json:"period_start"`
	// PeriodCount counts credited completions within the current period; only
	// meaningful for *_multi reset types.
	PeriodCount int `json:"period_count"`

	Claims       map[string]Claim `json:"claims,omitempty"`
	OverdueSince *time.Time       `json:"overdue_since,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (in Instance) Shared() bool { return in.KidID == "" }

// DuePassed reports whether the due date exists and is at or before ref.
func (in Instance) DuePassed(ref time.Time) bool {
	return in.DueAt != nil && !in.DueAt.After(ref)
}

// OpenClaims returns the kids with an unapproved claim outstanding.
func (in Instance) OpenClaims() []Claim {
	var out []Claim
	for _, c := range in.Claims {
		if !c.Approved() {
			out = append(out, c)
		}
	}
	return out
}

// ApprovedClaims returns the claims already approved this period.
func (in Instance) ApprovedClaims() []Claim {
	var out []Claim
	for _, c := range in.Claims {
		if c.Approved() {
			out = append(out, c)
		}
	}
	return out
}

// LastApprovedAt returns the most recent approval instant this period, or
// nil when nothing was approved. Used as the completion anchor for
// from_completion rescheduling.
func (in Instance) LastApprovedAt() *time.Time {
	var latest *time.Time
	for _, c := range in.Claims {
		if c.ApprovedAt == nil {
			continue
		}
		if latest == nil || c.ApprovedAt.After(*latest) {
			t := *c.ApprovedAt
			latest = &t
		}
	}
	return latest
}
