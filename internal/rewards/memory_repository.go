package rewards

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory rewards store for tests and local runs.
type MemoryRepository struct {
	mu          sync.RWMutex
	balances    map[string]Balance
	rewards     map[string][]Reward
	redemptions map[string][]Redemption
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances:    make(map[string]Balance),
		rewards:     make(map[string][]Reward),
		redemptions: make(map[string][]Redemption),
	}
}

func (r *MemoryRepository) Balance(_ context.Context, userID string) (Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[userID]
	if !ok {
		return zeroBalance(userID), nil
	}
	return b, nil
}

func (r *MemoryRepository) SaveBalance(_ context.Context, b Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[b.UserID] = b
	return nil
}

func (r *MemoryRepository) AddReward(_ context.Context, reward Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewards[reward.UserID] = append(r.rewards[reward.UserID], reward)
	return nil
}

func (r *MemoryRepository) RewardsByUser(_ context.Context, userID string, limit int) ([]Reward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Reward, len(r.rewards[userID]))
	copy(out, r.rewards[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) AddRedemption(_ context.Context, redemption Redemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redemptions[redemption.UserID] = append(r.redemptions[redemption.UserID], redemption)
	return nil
}

func (r *MemoryRepository) RedemptionsByUser(_ context.Context, userID string) ([]Redemption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Redemption, len(r.redemptions[userID]))
	copy(out, r.redemptions[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
