package notify

import (
	"log"
	"time"
)

type Kind string

const (
	KindClaimed      Kind = "claimed"
	KindApproved     Kind = "approved"
	KindDisapproved  Kind = "disapproved"
	KindOverdue      Kind = "overdue"
	KindReset        Kind = "reset"
	KindRescheduled  Kind = "rescheduled"
	KindReminderDue  Kind = "reminder_due"
	KindDueSoon      Kind = "due_soon"
	KindPointsEarned Kind = "points_earned"
)

// Event is a fire-and-forget notification. The engine never waits on or
// inspects the outcome of dispatch.
type Event struct {
	Kind       Kind           `json:"kind"`
	ChoreID    string         `json:"chore_id,omitempty"`
	InstanceID string         `json:"instance_id,omitempty"`
	KidID      string         `json:"kid_id,omitempty"`
	At         time.Time      `json:"at"`
	Extra      map[string]any `json:"extra,omitempty"`
}

type Dispatcher interface {
	Dispatch(ev Event)
}

// LogDispatcher writes events to a logger. The zero value uses log.Default.
type LogDispatcher struct {
	Logger *log.Logger
}

func (d LogDispatcher) Dispatch(ev Event) {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("event kind=%s chore=%s instance=%s kid=%s at=%s",
		ev.Kind, ev.ChoreID, ev.InstanceID, ev.KidID, ev.At.Format(time.RFC3339))
}

// MultiDispatcher fans an event out to every child dispatcher.
type MultiDispatcher []Dispatcher

func (d MultiDispatcher) Dispatch(ev Event) {
	for _, child := range d {
		if child != nil {
			child.Dispatch(ev)
		}
	}
}

// NopDispatcher drops every event.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(Event) {}
