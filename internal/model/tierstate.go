package model

import (
	"context"
	"sync"
	"time"
)

// TierState holds the rotating start index of each tier. Implementations must
// be safe for concurrent use.
type TierState interface {
	Index(ctx context.Context, tier string) (int, error)
	SetIndex(ctx context.Context, tier string, idx int) error
	// ResetIfDue sets every tier's index back to zero when interval has
	// elapsed since the last reset. All tiers share one reset clock.
	ResetIfDue(ctx context.Context, interval time.Duration) error
}

type MemoryTierState struct {
	mu        sync.Mutex
	now       func() time.Time
	lastReset time.Time
	indices   map[string]int
}

func NewMemoryTierState(now func() time.Time) *MemoryTierState {
	if now == nil {
		now = time.Now
	}
	return &MemoryTierState{now: now, lastReset: now(), indices: make(map[string]int)}
}

func (s *MemoryTierState) Index(_ context.Context, tier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indices[tier], nil
}

func (s *MemoryTierState) SetIndex(_ context.Context, tier string, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices[tier] = idx
	return nil
}

func (s *MemoryTierState) ResetIfDue(_ context.Context, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastReset) > interval {
		clear(s.indices)
		s.lastReset = now
	}
	return nil
}
