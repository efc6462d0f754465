package entity

import (
	"encoding/json"
	"time"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// RoomCapacity is the fixed number of players a room holds before the game starts.
const RoomCapacity = 5

// Member is a player's entry inside a room. Name and Balance are snapshots
// taken at join time and are not updated afterwards.
type Member struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Balance  int64     `json:"balance"`
	ConnID   string    `json:"conn_id,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Room struct {
	Code      string          `json:"code"`
	Members   []Member        `json:"members"`
	Capacity  int             `json:"capacity"`
	Status    string          `json:"status"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	GameData  json.RawMessage `json:"game_data,omitempty"`
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		Members:   []Member{},
		Capacity:  RoomCapacity,
		Status:    StatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Room) IsFull() bool {
	return len(that.Members) >= that.Capacity
}

// IsJoinable reports whether a player may still be appended to this room.
func (that *Room) IsJoinable() bool {
	return that.IsWaiting() && !that.IsFull()
}

func (that *Room) HasMember(playerID string) bool {
	_, ok := that.Member(playerID)
	return ok
}

// Member returns the entry for playerID, if present.
func (that *Room) Member(playerID string) (Member, bool) {
	for _, member := range that.Members {
		if member.PlayerID == playerID {
			return member, true
		}
	}

	return Member{}, false
}

// RemoveMember deletes the entry for playerID, preserving arrival order of
// the remaining members. It reports whether an entry was removed.
func (that *Room) RemoveMember(playerID string) bool {
	for i, member := range that.Members {
		if member.PlayerID == playerID {
			that.Members = append(that.Members[:i], that.Members[i+1:]...)
			return true
		}
	}

	return false
}
