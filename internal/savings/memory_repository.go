package savings

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory circle store for tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	circles map[string]Circle
	byCode  map[string]string
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		circles: make(map[string]Circle),
		byCode:  make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, c Circle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circles[c.ID] = cloneCircle(c)
	r.byCode[c.InviteCode] = c.ID
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Circle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.circles[id]
	if !ok {
		return Circle{}, ErrCircleNotFound
	}
	return cloneCircle(c), nil
}

func (r *MemoryRepository) GetByInviteCode(_ context.Context, code string) (Circle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return Circle{}, ErrCircleNotFound
	}
	return cloneCircle(r.circles[id]), nil
}

func (r *MemoryRepository) Update(_ context.Context, c Circle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.circles[c.ID]; !ok {
		return ErrCircleNotFound
	}
	r.circles[c.ID] = cloneCircle(c)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circles[id]
	if !ok {
		return ErrCircleNotFound
	}
	delete(r.byCode, c.InviteCode)
	delete(r.circles, id)
	return nil
}

func (r *MemoryRepository) ByUser(_ context.Context, userID string) ([]Circle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Circle
	for _, c := range r.circles {
		if _, ok := c.MemberByUser(userID); ok {
			out = append(out, cloneCircle(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneCircle(c Circle) Circle {
	members := make([]Member, len(c.Members))
	copy(members, c.Members)
	c.Members = members
	return c
}
