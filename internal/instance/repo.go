package instance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	ChoreID string
	KidID   string
	// States filters to the given states; empty means all.
	States []State
}

type Repo interface {
	Create(ctx context.Context, in Instance) (Instance, error)
	Get(ctx context.Context, id string) (Instance, error)
	// Update persists the full instance record. Writes are atomic per
	// instance; callers must not assume batching across instances.
	Update(ctx context.Context, in Instance) (Instance, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Instance, error)
}

type MemoryRepo struct {
	mu        sync.RWMutex
	instances map[string]Instance
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{instances: map[string]Instance{}}
}

func normalize(in *Instance) {
	if in.Claims == nil {
		in.Claims = map[string]Claim{}
	}
}

func (r *MemoryRepo) Create(_ context.Context, in Instance) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.State == "" {
		in.State = StatePending
	}
	if in.PeriodStart.IsZero() {
		in.PeriodStart = now
	}
	in.CreatedAt = now
	in.UpdatedAt = now
	normalize(&in)

	r.instances[in.ID] = in
	return in, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.instances[id]
	if !ok {
		return Instance{}, ErrNotFound
	}
	normalize(&in)
	return in, nil
}

func (r *MemoryRepo) Update(_ context.Context, in Instance) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.instances[in.ID]
	if !ok {
		return Instance{}, ErrNotFound
	}
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = time.Now()
	normalize(&in)

	r.instances[in.ID] = in
	return in, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[id]; !ok {
		return ErrNotFound
	}
	delete(r.instances, id)
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f ListFilter) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := func(in Instance) bool {
		if f.ChoreID != "" && in.ChoreID != f.ChoreID {
			return false
		}
		if f.KidID != "" && in.KidID != f.KidID {
			return false
		}
		if len(f.States) > 0 {
			found := false
			for _, s := range f.States {
				if in.State == s {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	out := make([]Instance, 0, len(r.instances))
	for _, in := range r.instances {
		if matches(in) {
			normalize(&in)
			out = append(out, in)
		}
	}

	// due soonest first, nil due dates last
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DueAt, out[j].DueAt
		switch {
		case di == nil && dj == nil:
			return out[i].ID < out[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out, nil
}
