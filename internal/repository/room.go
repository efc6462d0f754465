package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
	"github.com/rocketscienceinc/lobby-backend/internal/pkg"
)

const (
	waitingRoomsKey = "rooms:waiting"

	// bounded retries for optimistic transactions and code generation.
	maxTxRetries   = 5
	maxCodeRetries = 5

	// how many index entries FindJoinable inspects before giving up;
	// stale entries found along the way are repaired.
	joinableScanLimit = 10
)

type RoomRepository interface {
	Create(ctx context.Context) (*entity.Room, error)
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	FindJoinable(ctx context.Context) (*entity.Room, error)
	TryJoin(ctx context.Context, code string, member entity.Member) (*entity.Room, error)
	TryLeave(ctx context.Context, code, playerID string) (*entity.Room, error)
	MarkPlaying(ctx context.Context, code string) (*entity.Room, error)
	MarkFinished(ctx context.Context, code string) (*entity.Room, error)
	ListWaiting(ctx context.Context) ([]*entity.Room, error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func roomKey(code string) string {
	return "room:" + code
}

// Create - allocates a waiting room under a freshly generated code and puts
// it into the joinable index. The creation is conditional on the index
// still being empty, so concurrent arrivals cannot each open a room of
// their own; the loser gets ErrJoinableRoomExists and re-runs its find.
// A code collision is retried internally.
func (that *dbRoom) Create(ctx context.Context) (*entity.Room, error) {
	var created *entity.Room

	for range maxCodeRetries {
		room := entity.NewRoom(pkg.GenerateRoomCode())

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return nil, fmt.Errorf("could not marshal room: %w", err)
		}

		err = that.client.Watch(ctx, func(tx *redis.Tx) error {
			joinable, err := tx.ZCard(ctx, waitingRoomsKey).Result()
			if err != nil {
				return fmt.Errorf("failed to read joinable index: %w", err)
			}

			if joinable > 0 {
				return apperror.ErrJoinableRoomExists
			}

			exists, err := tx.Exists(ctx, roomKey(room.Code)).Result()
			if err != nil {
				return fmt.Errorf("failed to check room code: %w", err)
			}

			if exists > 0 {
				return apperror.ErrDuplicateRoomCode
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, roomKey(room.Code), roomJSON, 0)
				pipe.ZAdd(ctx, waitingRoomsKey, redis.Z{
					Score:  float64(room.CreatedAt.UnixNano()),
					Member: room.Code,
				})
				return nil
			})

			return err
		}, waitingRoomsKey)

		// another arrival touched the index first; let the caller re-find
		if errors.Is(err, redis.TxFailedErr) {
			return nil, apperror.ErrJoinableRoomExists
		}

		if errors.Is(err, apperror.ErrDuplicateRoomCode) {
			continue
		}

		if err != nil {
			return nil, err
		}

		created = room

		return created, nil
	}

	return nil, apperror.ErrDuplicateRoomCode
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKey(code)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	var existingRoom entity.Room
	if err = json.Unmarshal([]byte(response), &existingRoom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &existingRoom, nil
}

// FindJoinable - returns the oldest waiting room that is below capacity.
// The joinable index may be momentarily stale; entries that no longer
// qualify are dropped from it while scanning.
func (that *dbRoom) FindJoinable(ctx context.Context) (*entity.Room, error) {
	codes, err := that.client.ZRange(ctx, waitingRoomsKey, 0, joinableScanLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read joinable index: %w", err)
	}

	for _, code := range codes {
		room, err := that.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			that.client.ZRem(ctx, waitingRoomsKey, code)
			continue
		}

		if err != nil {
			return nil, err
		}

		if !room.IsJoinable() {
			that.client.ZRem(ctx, waitingRoomsKey, code)
			continue
		}

		return room, nil
	}

	return nil, apperror.ErrNoJoinableRoom
}

// TryJoin - atomic conditional append: succeeds only if the room is still
// waiting and below capacity at the moment the transaction commits. A
// member already present is returned as-is (reconnect).
func (that *dbRoom) TryJoin(ctx context.Context, code string, member entity.Member) (*entity.Room, error) {
	var joined *entity.Room

	err := that.watchRoom(ctx, code, func(tx *redis.Tx) error {
		room, err := getRoomTx(ctx, tx, code)
		if err != nil {
			return err
		}

		if room.HasMember(member.PlayerID) {
			joined = room
			return nil
		}

		if !room.IsWaiting() {
			return apperror.ErrRoomNotWaiting
		}

		if room.IsFull() {
			return apperror.ErrRoomFull
		}

		room.Members = append(room.Members, member)

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(code), roomJSON, 0)
			if room.IsFull() {
				pipe.ZRem(ctx, waitingRoomsKey, code)
			}
			return nil
		})
		if err != nil {
			return err
		}

		joined = room

		return nil
	})
	if err != nil {
		return nil, err
	}

	return joined, nil
}

// TryLeave - atomic conditional removal. When the removal empties the room,
// the record and its index entry are deleted in the same transaction and
// (nil, nil) is returned.
func (that *dbRoom) TryLeave(ctx context.Context, code, playerID string) (*entity.Room, error) {
	var remaining *entity.Room

	err := that.watchRoom(ctx, code, func(tx *redis.Tx) error {
		room, err := getRoomTx(ctx, tx, code)
		if err != nil {
			return err
		}

		if !room.RemoveMember(playerID) {
			return apperror.ErrNotInRoom
		}

		if len(room.Members) == 0 {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, roomKey(code))
				pipe.ZRem(ctx, waitingRoomsKey, code)
				return nil
			})
			if err != nil {
				return err
			}

			remaining = nil

			return nil
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(code), roomJSON, 0)
			if room.IsJoinable() {
				pipe.ZAdd(ctx, waitingRoomsKey, redis.Z{
					Score:  float64(room.CreatedAt.UnixNano()),
					Member: code,
				})
			}
			return nil
		})
		if err != nil {
			return err
		}

		remaining = room

		return nil
	})
	if err != nil {
		return nil, err
	}

	return remaining, nil
}

// MarkPlaying - atomic waiting->playing transition. A room that already
// left waiting yields ErrAlreadyPlaying, the idempotency guard against a
// double game start.
func (that *dbRoom) MarkPlaying(ctx context.Context, code string) (*entity.Room, error) {
	var started *entity.Room

	err := that.watchRoom(ctx, code, func(tx *redis.Tx) error {
		room, err := getRoomTx(ctx, tx, code)
		if err != nil {
			return err
		}

		if !room.IsWaiting() {
			return apperror.ErrAlreadyPlaying
		}

		now := time.Now().UTC()
		room.Status = entity.StatusPlaying
		room.StartedAt = &now

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(code), roomJSON, 0)
			pipe.ZRem(ctx, waitingRoomsKey, code)
			return nil
		})
		if err != nil {
			return err
		}

		started = room

		return nil
	})
	if err != nil {
		return nil, err
	}

	return started, nil
}

// MarkFinished - atomic playing->finished transition. The record is kept
// for post-game display; only emptiness retires a room.
func (that *dbRoom) MarkFinished(ctx context.Context, code string) (*entity.Room, error) {
	var finished *entity.Room

	err := that.watchRoom(ctx, code, func(tx *redis.Tx) error {
		room, err := getRoomTx(ctx, tx, code)
		if err != nil {
			return err
		}

		if !room.IsPlaying() {
			return apperror.ErrNotPlaying
		}

		room.Status = entity.StatusFinished

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(code), roomJSON, 0)
			return nil
		})
		if err != nil {
			return err
		}

		finished = room

		return nil
	})
	if err != nil {
		return nil, err
	}

	return finished, nil
}

// ListWaiting - all waiting rooms, newest first.
func (that *dbRoom) ListWaiting(ctx context.Context) ([]*entity.Room, error) {
	codes, err := that.client.ZRevRange(ctx, waitingRoomsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read joinable index: %w", err)
	}

	rooms := make([]*entity.Room, 0, len(codes))

	for _, code := range codes {
		room, err := that.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, nil
}

// watchRoom - runs fn inside an optimistic WATCH transaction on the room
// key, retrying a bounded number of times when a concurrent write aborts
// the transaction. Errors returned by fn are not retried.
func (that *dbRoom) watchRoom(ctx context.Context, code string, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := that.client.Watch(ctx, fn, roomKey(code))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("room %s: %w", code, redis.TxFailedErr)
}

func getRoomTx(ctx context.Context, tx *redis.Tx, code string) (*entity.Room, error) {
	response, err := tx.Get(ctx, roomKey(code)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}
