package split

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory split store for tests and local runs.
type MemoryRepository struct {
	mu            sync.RWMutex
	groups        map[string]Group
	byCode        map[string]string
	contributions map[string][]Contribution
	payments      map[string]Payment
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		groups:        make(map[string]Group),
		byCode:        make(map[string]string),
		contributions: make(map[string][]Contribution),
		payments:      make(map[string]Payment),
	}
}

func (r *MemoryRepository) CreateGroup(_ context.Context, g Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = cloneGroup(g)
	r.byCode[g.InviteCode] = g.ID
	return nil
}

func (r *MemoryRepository) Group(_ context.Context, id string) (Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return cloneGroup(g), nil
}

func (r *MemoryRepository) GroupByInviteCode(_ context.Context, code string) (Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return cloneGroup(r.groups[id]), nil
}

func (r *MemoryRepository) UpdateGroup(_ context.Context, g Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.ID]; !ok {
		return ErrGroupNotFound
	}
	r.groups[g.ID] = cloneGroup(g)
	return nil
}

func (r *MemoryRepository) DeleteGroup(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	delete(r.byCode, g.InviteCode)
	delete(r.groups, id)
	delete(r.contributions, id)
	return nil
}

func (r *MemoryRepository) GroupsByUser(_ context.Context, userID string) ([]Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Group
	for _, g := range r.groups {
		if g.HasMember(userID) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) AddContribution(_ context.Context, c Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contributions[c.GroupID] = append(r.contributions[c.GroupID], c)
	return nil
}

func (r *MemoryRepository) ContributionsByGroup(_ context.Context, groupID string) ([]Contribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Contribution, len(r.contributions[groupID]))
	copy(out, r.contributions[groupID])
	return out, nil
}

func (r *MemoryRepository) CreatePayment(_ context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *MemoryRepository) Payment(_ context.Context, id string) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r *MemoryRepository) UpdatePayment(_ context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.payments[p.ID]
	if !ok || existing.Status != PaymentPending {
		return ErrPaymentNotPending
	}
	r.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *MemoryRepository) PaymentsByGroup(_ context.Context, groupID string) ([]Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Payment
	for _, p := range r.payments {
		if p.GroupID == groupID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneGroup(g Group) Group {
	members := make([]string, len(g.Members))
	copy(members, g.Members)
	g.Members = members
	return g
}

func clonePayment(p Payment) Payment {
	approvals := make([]string, len(p.Approvals))
	copy(approvals, p.Approvals)
	p.Approvals = approvals
	return p
}
