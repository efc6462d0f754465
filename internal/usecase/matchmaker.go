package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

// maxAssignAttempts bounds the candidate-retry loop in Assign so latency
// stays sane under pathological contention. A burst of arrivals can cost a
// few attempts each (lost joins plus lost creates), so the cap leaves some
// headroom over the worst case observed with a full room of contenders.
const maxAssignAttempts = 10

type roomRepo interface {
	Create(ctx context.Context) (*entity.Room, error)
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	FindJoinable(ctx context.Context) (*entity.Room, error)
	TryJoin(ctx context.Context, code string, member entity.Member) (*entity.Room, error)
	TryLeave(ctx context.Context, code, playerID string) (*entity.Room, error)
	MarkPlaying(ctx context.Context, code string) (*entity.Room, error)
}

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	SetCurrentRoom(ctx context.Context, id, roomCode string) error
	ClearConnection(ctx context.Context, id string) error
}

type gameAnnouncer interface {
	GameStarted(room *entity.Room)
}

// Matchmaker assigns participants to fixed-capacity rooms and drives the
// room lifecycle. Capacity is enforced by the store's conditional
// primitives; the matchmaker only retries candidates it lost to a
// concurrent arrival.
type Matchmaker struct {
	logger     *slog.Logger
	roomRepo   roomRepo
	playerRepo playerRepo
	announcer  gameAnnouncer
}

func NewMatchmaker(logger *slog.Logger, roomRepo roomRepo, playerRepo playerRepo, announcer gameAnnouncer) *Matchmaker {
	return &Matchmaker{
		logger: logger,

		roomRepo:   roomRepo,
		playerRepo: playerRepo,
		announcer:  announcer,
	}
}

// Assign - puts the player into a joinable room, creating one when none
// exists. A candidate that filled up or started between the read and the
// join is discarded and the loop retries; past the attempt budget the
// caller gets ErrMatchmakingUnavailable.
func (that *Matchmaker) Assign(ctx context.Context, player *entity.Player, connID string) (*entity.Room, error) {
	log := that.logger.With("method", "Assign", "playerID", player.ID)

	for attempt := 1; attempt <= maxAssignAttempts; attempt++ {
		room, err := that.roomRepo.FindJoinable(ctx)
		if errors.Is(err, apperror.ErrNoJoinableRoom) {
			room, err = that.roomRepo.Create(ctx)
		}

		// a concurrent arrival opened or joined a room first; re-run the find
		if errors.Is(err, apperror.ErrJoinableRoomExists) {
			log.Debug("joinable room appeared during create, retrying", "attempt", attempt)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to pick a room: %w", err)
		}

		joined, err := that.roomRepo.TryJoin(ctx, room.Code, entity.Member{
			PlayerID: player.ID,
			Name:     player.Name,
			Balance:  player.Balance,
			ConnID:   connID,
			JoinedAt: time.Now().UTC(),
		})

		// another arrival won the race for this candidate
		if errors.Is(err, apperror.ErrRoomFull) || errors.Is(err, apperror.ErrRoomNotWaiting) || errors.Is(err, apperror.ErrRoomNotFound) {
			log.Debug("lost candidate room, retrying", "roomCode", room.Code, "attempt", attempt, "reason", err)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to join room: %w", err)
		}

		player.RoomCode = joined.Code
		player.ConnID = connID
		player.Online = true

		if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
			return nil, fmt.Errorf("failed to update player: %w", err)
		}

		return joined, nil
	}

	return nil, apperror.ErrMatchmakingUnavailable
}

// OnCapacityReached - transitions the room to playing when the join that
// produced it filled the last seat. Fullness is derived strictly from the
// room TryJoin returned, never from a separate read; MarkPlaying arbitrates
// racing callers, and only the winner announces the start.
func (that *Matchmaker) OnCapacityReached(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	if room == nil || !room.IsWaiting() || !room.IsFull() {
		return nil, nil
	}

	log := that.logger.With("method", "OnCapacityReached", "roomCode", room.Code)

	started, err := that.roomRepo.MarkPlaying(ctx, room.Code)
	if errors.Is(err, apperror.ErrAlreadyPlaying) {
		log.Debug("room already started by another join")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to mark room playing: %w", err)
	}

	that.announcer.GameStarted(started)

	log.Info("game started", "members", len(started.Members))

	return started, nil
}

// Leave - removes the player from their current room. The current-room
// reference is cleared regardless of the outcome; a stale reference (room
// already gone, membership already dropped) is treated as a no-op. The
// returned room is nil when the player had no room or the room was retired.
func (that *Matchmaker) Leave(ctx context.Context, playerID string) (*entity.Room, error) {
	log := that.logger.With("method", "Leave", "playerID", playerID)

	player, err := that.playerRepo.GetByID(ctx, playerID)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	if !player.InRoom() {
		return nil, nil
	}

	roomCode := player.RoomCode

	remaining, err := that.roomRepo.TryLeave(ctx, roomCode, playerID)

	if clearErr := that.playerRepo.SetCurrentRoom(ctx, playerID, ""); clearErr != nil {
		log.Error("failed to clear current room reference", "error", clearErr)
	}

	if errors.Is(err, apperror.ErrRoomNotFound) || errors.Is(err, apperror.ErrNotInRoom) {
		log.Debug("stale room reference on leave", "roomCode", roomCode)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}

	if remaining == nil {
		log.Info("room retired", "roomCode", roomCode)
	}

	return remaining, nil
}

// Disconnect - a vanished connection is just another leave competing for
// the same store primitives; additionally the dead connection handle is
// dropped from the player record.
func (that *Matchmaker) Disconnect(ctx context.Context, playerID string) (*entity.Room, error) {
	log := that.logger.With("method", "Disconnect", "playerID", playerID)

	room, err := that.Leave(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if clearErr := that.playerRepo.ClearConnection(ctx, playerID); clearErr != nil {
		log.Error("failed to clear connection handle", "error", clearErr)
	}

	return room, nil
}

// CurrentRoom - resolves the player's current room, revalidating the
// denormalized reference against the store.
func (that *Matchmaker) CurrentRoom(ctx context.Context, playerID string) (*entity.Room, error) {
	player, err := that.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	if !player.InRoom() {
		return nil, apperror.ErrNotInRoom
	}

	room, err := that.roomRepo.GetByCode(ctx, player.RoomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}
