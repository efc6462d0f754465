package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

type PlayerRepository interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	SetCurrentRoom(ctx context.Context, id, roomCode string) error
	ClearConnection(ctx context.Context, id string) error
}

type dbPlayer struct {
	client *redis.Client
}

func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

func playerKey(id string) string {
	return "player:" + id
}

func (that *dbPlayer) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	playerJSON, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}

	err = that.client.Set(ctx, playerKey(player.ID), playerJSON, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	response, err := that.client.Get(ctx, playerKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	var existingPlayer entity.Player
	if err = json.Unmarshal([]byte(response), &existingPlayer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	return &existingPlayer, nil
}

// SetCurrentRoom - updates the player's current-room reference. An empty
// roomCode clears it.
func (that *dbPlayer) SetCurrentRoom(ctx context.Context, id, roomCode string) error {
	player, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	player.RoomCode = roomCode

	return that.CreateOrUpdate(ctx, player)
}

// ClearConnection - drops the connection handle and marks the player
// offline, keeping the rest of the record.
func (that *dbPlayer) ClearConnection(ctx context.Context, id string) error {
	player, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	player.ConnID = ""
	player.Online = false

	return that.CreateOrUpdate(ctx, player)
}
