package repository

import (
	"context"
	"sync/atomic"
	"time"

	"jetsflare/internal/domain"
	"jetsflare/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStateRepository prefers redis and degrades to the in-memory
// repository when it misbehaves, retrying the primary once a minute.
// Losing dialog state on failover is acceptable; losing the bot is not.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last primary probe
}

const recoveryInterval = time.Minute

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

// shouldRetryPrimary reports whether the recovery window has elapsed.
func (r *FailoverStateRepository) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetState(ctx, chatID)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		state, err := r.primary.GetState(ctx, chatID)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetState(ctx, chatID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	if !r.isDown.Load() {
		if err := r.primary.SetState(ctx, state); err == nil {
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, chatID int64) error {
	if !r.isDown.Load() {
		if err := r.primary.ClearState(ctx, chatID); err == nil {
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.ClearState(ctx, chatID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}
