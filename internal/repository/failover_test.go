package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"jetsflare/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStateRepository fails every call until healed.
type brokenStateRepository struct {
	inner  *MemoryStateRepository
	broken bool
}

var errBroken = errors.New("connection refused")

func (b *brokenStateRepository) GetState(ctx context.Context, chatID int64) (*models.ChatState, error) {
	if b.broken {
		return nil, errBroken
	}
	return b.inner.GetState(ctx, chatID)
}

func (b *brokenStateRepository) SetState(ctx context.Context, state *models.ChatState) error {
	if b.broken {
		return errBroken
	}
	return b.inner.SetState(ctx, state)
}

func (b *brokenStateRepository) ClearState(ctx context.Context, chatID int64) error {
	if b.broken {
		return errBroken
	}
	return b.inner.ClearState(ctx, chatID)
}

func (b *brokenStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if b.broken {
		return false, errBroken
	}
	return b.inner.CheckRateLimit(ctx, chatID, limit, window)
}

func newFailoverUnderTest() (*brokenStateRepository, *MemoryStateRepository, *FailoverStateRepository) {
	primary := &brokenStateRepository{inner: NewMemoryStateRepository(time.Hour)}
	fallback := NewMemoryStateRepository(time.Hour)
	logger := zerolog.Nop()
	return primary, fallback, NewFailoverStateRepository(primary, fallback, &logger)
}

func TestFailover_UsesPrimaryWhenHealthy(t *testing.T) {
	primary, fallback, repo := newFailoverUnderTest()
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.ChatState{ChatID: 1, Step: "a"}))

	got, err := primary.inner.GetState(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, got, "state must land in the primary")

	got, err = fallback.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "fallback must stay untouched")
}

func TestFailover_FallsBackOnError(t *testing.T) {
	primary, fallback, repo := newFailoverUnderTest()
	ctx := context.Background()
	primary.broken = true

	require.NoError(t, repo.SetState(ctx, &models.ChatState{ChatID: 2, Step: "b"}))

	// The write went to the fallback and reads keep working.
	got, err := repo.GetState(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Step)

	inFallback, err := fallback.GetState(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, inFallback)

	allowed, err := repo.CheckRateLimit(ctx, 2, 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestFailover_RecoversAfterInterval(t *testing.T) {
	primary, _, repo := newFailoverUnderTest()
	ctx := context.Background()

	primary.broken = true
	_, err := repo.GetState(ctx, 3)
	require.NoError(t, err)
	assert.True(t, repo.isDown.Load())

	// Heal the primary and age the last probe beyond the recovery window.
	primary.broken = false
	repo.lastCheck.Store(time.Now().Add(-2 * recoveryInterval).UnixNano())

	_, err = repo.GetState(ctx, 3)
	require.NoError(t, err)
	assert.False(t, repo.isDown.Load(), "primary must be back in rotation")
}
