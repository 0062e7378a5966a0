package transfer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]ScheduledTransfer
}

// NewMemoryScheduleRepository builds an in-memory schedule store for tests.
func NewMemoryScheduleRepository() ScheduleRepository {
	return &memoryScheduleRepository{schedules: make(map[string]ScheduledTransfer)}
}

func (r *memoryScheduleRepository) Create(_ context.Context, st ScheduledTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schedules[st.ID]; exists {
		return errors.New("scheduled transfer exists")
	}
	r.schedules[st.ID] = st
	return nil
}

func (r *memoryScheduleRepository) Get(_ context.Context, id string) (ScheduledTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.schedules[id]
	if !ok {
		return ScheduledTransfer{}, ErrScheduleNotFound
	}
	return st, nil
}

func (r *memoryScheduleRepository) Update(_ context.Context, st ScheduledTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[st.ID]; !ok {
		return ErrScheduleNotFound
	}
	r.schedules[st.ID] = st
	return nil
}

func (r *memoryScheduleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *memoryScheduleRepository) ByUser(_ context.Context, userID string) ([]ScheduledTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ScheduledTransfer
	for _, st := range r.schedules {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryScheduleRepository) DueBefore(_ context.Context, now time.Time) ([]ScheduledTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ScheduledTransfer
	for _, st := range r.schedules {
		if st.Status == ScheduleActive && !st.NextExecutionDate.After(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextExecutionDate.Before(out[j].NextExecutionDate) })
	return out, nil
}
