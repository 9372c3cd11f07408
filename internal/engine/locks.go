package engine

import "sync"

// lockTable hands out one mutex per instance ID so a human action and a
// timer sweep can never interleave their read-modify-write on the same
// instance. Entries are created on demand and never reaped; the instance
// population is small and bounded by the chore roster.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) forInstance(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = map[string]*sync.Mutex{}
	}
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	return l
}
