package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

// startingBalance is credited to every freshly registered guest account.
const startingBalance = 1000

type userRepo interface {
	Save(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error
	RecordGameResult(ctx context.Context, id string, won bool) error
}

type UserService interface {
	RegisterGuest(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error
	RecordGameResult(ctx context.Context, id string, won bool) error
}

type userServiceImpl struct {
	repo userRepo
}

func NewUserService(repo userRepo) UserService {
	return &userServiceImpl{
		repo: repo,
	}
}

// RegisterGuest - creates an account with a fresh ID and the starting balance.
func (that *userServiceImpl) RegisterGuest(ctx context.Context, username string) (*entity.User, error) {
	user := &entity.User{
		ID:       uuid.NewString(),
		Username: username,
		Balance:  startingBalance,
	}

	if err := that.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to register guest: %w", err)
	}

	return user, nil
}

func (that *userServiceImpl) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, err := that.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (that *userServiceImpl) UpdateBalance(ctx context.Context, id string, balance int64) error {
	if err := that.repo.UpdateBalance(ctx, id, balance); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	return nil
}

func (that *userServiceImpl) RecordGameResult(ctx context.Context, id string, won bool) error {
	if err := that.repo.RecordGameResult(ctx, id, won); err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}

	return nil
}
