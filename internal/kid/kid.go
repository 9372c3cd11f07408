package kid

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("kid not found")

type Kid struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo interface {
	Create(ctx context.Context, k Kid) (Kid, error)
	Get(ctx context.Context, id string) (Kid, error)
	List(ctx context.Context) ([]Kid, error)
	Delete(ctx context.Context, id string) error
}

type MemoryRepo struct {
	mu   sync.RWMutex
	kids map[string]Kid
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{kids: map[string]Kid{}}
}

func (r *MemoryRepo) Create(_ context.Context, k Kid) (Kid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now()
	r.kids[k.ID] = k
	return k, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Kid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.kids[id]
	if !ok {
		return Kid{}, ErrNotFound
	}
	return k, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]Kid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kid, 0, len(r.kids))
	for _, k := range r.kids {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kids[id]; !ok {
		return ErrNotFound
	}
	delete(r.kids, id)
	return nil
}
