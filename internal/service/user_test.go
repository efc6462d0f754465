package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

type memoryUserRepo struct {
	users map[string]*entity.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*entity.User)}
}

func (that *memoryUserRepo) Save(_ context.Context, user *entity.User) error {
	clone := *user
	that.users[user.ID] = &clone

	return nil
}

func (that *memoryUserRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	user, ok := that.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}

	clone := *user

	return &clone, nil
}

func (that *memoryUserRepo) UpdateBalance(_ context.Context, id string, balance int64) error {
	user, ok := that.users[id]
	if !ok {
		return apperror.ErrUserNotFound
	}

	user.Balance = balance

	return nil
}

func (that *memoryUserRepo) RecordGameResult(_ context.Context, id string, won bool) error {
	user, ok := that.users[id]
	if !ok {
		return apperror.ErrUserNotFound
	}

	user.GamesPlayed++
	if won {
		user.GamesWon++
	}

	return nil
}

func TestUserService_RegisterGuest(t *testing.T) {
	ctx := context.Background()

	// Given: an empty user store
	userService := NewUserService(newMemoryUserRepo())

	// When: a guest registers
	user, err := userService.RegisterGuest(ctx, "alice")

	// Then: the account has an ID and the starting balance
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int64(startingBalance), user.Balance)

	// And: it is retrievable
	stored, err := userService.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, stored.Username)
}

func TestUserService_RecordGameResult(t *testing.T) {
	ctx := context.Background()

	repo := newMemoryUserRepo()
	userService := NewUserService(repo)

	user, err := userService.RegisterGuest(ctx, "alice")
	require.NoError(t, err)

	// When: one win and one loss are recorded
	require.NoError(t, userService.RecordGameResult(ctx, user.ID, true))
	require.NoError(t, userService.RecordGameResult(ctx, user.ID, false))

	// Then: the tallies reflect both games
	stored, err := userService.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.GamesPlayed)
	assert.Equal(t, 1, stored.GamesWon)
}

func TestUserService_UpdateBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("Updates an existing account", func(t *testing.T) {
		userService := NewUserService(newMemoryUserRepo())

		user, err := userService.RegisterGuest(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, userService.UpdateBalance(ctx, user.ID, 2500))

		stored, err := userService.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), stored.Balance)
	})

	t.Run("Surfaces ErrUserNotFound for an unknown account", func(t *testing.T) {
		userService := NewUserService(newMemoryUserRepo())

		err := userService.UpdateBalance(ctx, "missing", 100)
		assert.ErrorIs(t, err, apperror.ErrUserNotFound)
	})
}
