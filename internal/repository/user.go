package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error
	RecordGameResult(ctx context.Context, id string, won bool) error
}

type userRepository struct {
	conn *sql.DB
}

func NewUserRepository(conn *sql.DB) UserRepository {
	return &userRepository{
		conn: conn,
	}
}

func (that *userRepository) Save(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (id, username, balance) VALUES (?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query, user.ID, user.Username, user.Balance)
	if err != nil {
		return fmt.Errorf("can't save user: %w", err)
	}

	return nil
}

func (that *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, username, balance, games_played, games_won, created_at FROM users WHERE id = ?`

	var user entity.User

	err := that.conn.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Balance, &user.GamesPlayed, &user.GamesWon, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find user: %w", err)
	}

	return &user, nil
}

func (that *userRepository) UpdateBalance(ctx context.Context, id string, balance int64) error {
	query := `UPDATE users SET balance = ? WHERE id = ?`

	result, err := that.conn.ExecContext(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("can't update balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't check update result: %w", err)
	}

	if affected == 0 {
		return apperror.ErrUserNotFound
	}

	return nil
}

func (that *userRepository) RecordGameResult(ctx context.Context, id string, won bool) error {
	query := `UPDATE users SET games_played = games_played + 1, games_won = games_won + ? WHERE id = ?`

	wonInc := 0
	if won {
		wonInc = 1
	}

	result, err := that.conn.ExecContext(ctx, query, wonInc, id)
	if err != nil {
		return fmt.Errorf("can't record game result: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't check update result: %w", err)
	}

	if affected == 0 {
		return apperror.ErrUserNotFound
	}

	return nil
}
