package repository

import (
	"context"
	"sync"
	"time"

	"jetsflare/internal/models"
)

// MemoryStateRepository keeps chat state in-process. Used standalone in
// tests and as the fallback behind the redis repository.
type MemoryStateRepository struct {
	mu         sync.Mutex
	states     map[int64]stateEntry
	rateLimits map[int64]*rateLimitEntry
	ttl        time.Duration
}

type stateEntry struct {
	state     *models.ChatState
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		states:     make(map[int64]stateEntry),
		rateLimits: make(map[int64]*rateLimitEntry),
		ttl:        ttl,
	}
}

func (r *MemoryStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.states[chatID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		delete(r.states, chatID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ChatID] = stateEntry{state: state, expiresAt: time.Now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearState(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, chatID)
	return nil
}

// CheckRateLimit counts messages in a rolling window; true means allowed.
func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.rateLimits[chatID]
	if !ok || now.After(entry.expiresAt) {
		r.rateLimits[chatID] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return true, nil
	}

	entry.count++
	return entry.count <= limit, nil
}
