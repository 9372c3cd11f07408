// Package history keeps a queryable log of engine events: who claimed what,
// what was approved, which instances went overdue. It plugs into the engine
// as a notify.Dispatcher.
package history

import (
	"sync"
	"time"

	"choreboard/internal/notify"
)

// Entry is one recorded engine event.
type Entry struct {
	ID         int            `json:"id"`
	Kind       notify.Kind    `json:"kind"`
	ChoreID    string         `json:"chore_id,omitempty"`
	InstanceID string         `json:"instance_id,omitempty"`
	KidID      string         `json:"kid_id,omitempty"`
	At         time.Time      `json:"at"`
	Extra      map[string]any `json:"extra,omitempty"`
}

type Repo interface {
	Record(e Entry) error
	// List returns entries at or after since, filtered to kinds when
	// non-empty, oldest first.
	List(since time.Time, kinds []notify.Kind) ([]Entry, error)
	Clear() error
}

type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1}
}

func (r *MemoryRepo) Record(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) List(since time.Time, kinds []notify.Kind) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries {
		if e.At.Before(since) {
			continue
		}
		if len(kinds) > 0 && !kindIn(e.Kind, kinds) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.nextID = 1
	return nil
}

func kindIn(k notify.Kind, kinds []notify.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// Dispatcher records every dispatched event into a Repo. Failures are
// dropped; history is best effort.
type Dispatcher struct {
	Repo Repo
}

func (d Dispatcher) Dispatch(ev notify.Event) {
	_ = d.Repo.Record(Entry{
		Kind:       ev.Kind,
		ChoreID:    ev.ChoreID,
		InstanceID: ev.InstanceID,
		KidID:      ev.KidID,
		At:         ev.At,
		Extra:      ev.Extra,
	})
}
