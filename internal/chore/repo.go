package chore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, c Chore) (Chore, error)
	Get(ctx context.Context, id string) (Chore, error)
	Update(ctx context.Context, c Chore) (Chore, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Chore, error)
}

type MemoryRepo struct {
	mu     sync.RWMutex
	chores map[string]Chore
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{chores: map[string]Chore{}}
}

func (r *MemoryRepo) Create(_ context.Context, c Chore) (Chore, error) {
	if err := c.Validate(); err != nil {
		return Chore{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	r.chores[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Chore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chores[id]
	if !ok {
		return Chore{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Update(_ context.Context, c Chore) (Chore, error) {
	if err := c.Validate(); err != nil {
		return Chore{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.chores[c.ID]
	if !ok {
		return Chore{}, ErrNotFound
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now()
	r.chores[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chores[id]; !ok {
		return ErrNotFound
	}
	delete(r.chores, id)
	return nil
}

func (r *MemoryRepo) List(_ context.Context) ([]Chore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Chore, 0, len(r.chores))
	for _, c := range r.chores {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
