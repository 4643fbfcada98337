package repository

import (
	"context"
	"testing"
	"time"

	"jetsflare/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRepo(t *testing.T) (*miniredis.Miniredis, *RedisStateRepository) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return s, NewRedisStateRepository(client, time.Hour)
}

func TestRedisStateRepository_SetGetClear(t *testing.T) {
	_, repo := setupRedisRepo(t)
	ctx := context.Background()

	got, err := repo.GetState(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &models.ChatState{
		ChatID: 123,
		Step:   models.StepAwaitingNickname,
		Data:   map[string]string{"key": "value"},
	}
	require.NoError(t, repo.SetState(ctx, state))

	got, err = repo.GetState(ctx, 123)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state.ChatID, got.ChatID)
	assert.Equal(t, state.Step, got.Step)
	assert.Equal(t, "value", got.Data["key"])

	require.NoError(t, repo.ClearState(ctx, 123))
	got, err = repo.GetState(ctx, 123)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateRepository_TTL(t *testing.T) {
	s, repo := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.ChatState{ChatID: 9, Step: "x"}))

	s.FastForward(2 * time.Hour)

	got, err := repo.GetState(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateRepository_RateLimit(t *testing.T) {
	s, repo := setupRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 42, 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, 42, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window expiry resets the counter.
	s.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, 42, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisStateRepository_NilClient(t *testing.T) {
	repo := NewRedisStateRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.GetState(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, repo.SetState(ctx, &models.ChatState{ChatID: 1}))
	assert.Error(t, repo.ClearState(ctx, 1))
	_, err = repo.CheckRateLimit(ctx, 1, 1, time.Minute)
	assert.Error(t, err)
}
