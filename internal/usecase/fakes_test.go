package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

// memoryRoomRepo is a mutex-serialized room store with the same conditional
// semantics as the Redis repository. Every operation is atomic under the
// lock, so it is a faithful stand-in for exercising the coordinator's retry
// loop under real goroutine concurrency.
type memoryRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*entity.Room
	order []string // creation order, oldest first
	seq   int
}

func newMemoryRoomRepo() *memoryRoomRepo {
	return &memoryRoomRepo{
		rooms: make(map[string]*entity.Room),
	}
}

func cloneRoom(room *entity.Room) *entity.Room {
	clone := *room
	clone.Members = append([]entity.Member(nil), room.Members...)
	if room.StartedAt != nil {
		startedAt := *room.StartedAt
		clone.StartedAt = &startedAt
	}

	return &clone
}

func (that *memoryRoomRepo) joinableLocked() *entity.Room {
	for _, code := range that.order {
		room, ok := that.rooms[code]
		if ok && room.IsJoinable() {
			return room
		}
	}

	return nil
}

func (that *memoryRoomRepo) Create(_ context.Context) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.joinableLocked() != nil {
		return nil, apperror.ErrJoinableRoomExists
	}

	that.seq++
	room := entity.NewRoom(fmt.Sprintf("ROOM%02d", that.seq))

	that.rooms[room.Code] = room
	that.order = append(that.order, room.Code)

	return cloneRoom(room), nil
}

func (that *memoryRoomRepo) GetByCode(_ context.Context, code string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return cloneRoom(room), nil
}

func (that *memoryRoomRepo) FindJoinable(_ context.Context) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room := that.joinableLocked()
	if room == nil {
		return nil, apperror.ErrNoJoinableRoom
	}

	return cloneRoom(room), nil
}

func (that *memoryRoomRepo) TryJoin(_ context.Context, code string, member entity.Member) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if room.HasMember(member.PlayerID) {
		return cloneRoom(room), nil
	}

	if !room.IsWaiting() {
		return nil, apperror.ErrRoomNotWaiting
	}

	if room.IsFull() {
		return nil, apperror.ErrRoomFull
	}

	room.Members = append(room.Members, member)

	return cloneRoom(room), nil
}

func (that *memoryRoomRepo) TryLeave(_ context.Context, code, playerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if !room.RemoveMember(playerID) {
		return nil, apperror.ErrNotInRoom
	}

	if len(room.Members) == 0 {
		delete(that.rooms, code)
		return nil, nil
	}

	return cloneRoom(room), nil
}

func (that *memoryRoomRepo) MarkPlaying(_ context.Context, code string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if !room.IsWaiting() {
		return nil, apperror.ErrAlreadyPlaying
	}

	now := time.Now().UTC()
	room.Status = entity.StatusPlaying
	room.StartedAt = &now

	return cloneRoom(room), nil
}

// snapshot returns the rooms that still exist, oldest first.
func (that *memoryRoomRepo) snapshot() []*entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	rooms := make([]*entity.Room, 0, len(that.rooms))
	for _, code := range that.order {
		if room, ok := that.rooms[code]; ok {
			rooms = append(rooms, cloneRoom(room))
		}
	}

	return rooms
}

type memoryPlayerRepo struct {
	mu      sync.Mutex
	players map[string]*entity.Player
}

func newMemoryPlayerRepo() *memoryPlayerRepo {
	return &memoryPlayerRepo{
		players: make(map[string]*entity.Player),
	}
}

func (that *memoryPlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	clone := *player
	that.players[player.ID] = &clone

	return nil
}

func (that *memoryPlayerRepo) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return nil, apperror.ErrPlayerNotFound
	}

	clone := *player

	return &clone, nil
}

func (that *memoryPlayerRepo) SetCurrentRoom(_ context.Context, id, roomCode string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return apperror.ErrPlayerNotFound
	}

	player.RoomCode = roomCode

	return nil
}

func (that *memoryPlayerRepo) ClearConnection(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return apperror.ErrPlayerNotFound
	}

	player.ConnID = ""
	player.Online = false

	return nil
}

// recordingAnnouncer counts game-start announcements per room.
type recordingAnnouncer struct {
	mu      sync.Mutex
	started []string
}

func (that *recordingAnnouncer) GameStarted(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.started = append(that.started, room.Code)
}

func (that *recordingAnnouncer) startedRooms() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.started...)
}
