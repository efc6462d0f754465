package broadcaster

import (
	"time"

	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

const (
	EventRoomAssigned     = "room:assigned"
	EventRosterChanged    = "roster:changed"
	EventGameStarted      = "game:started"
	EventLeaveConfirmed   = "leave:confirmed"
	EventMatchmakingError = "matchmaking:error"
)

// RosterEntry is the public view of a room member. Name and balance are the
// snapshots taken at join time.
type RosterEntry struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Balance  int64     `json:"balance"`
	JoinedAt time.Time `json:"joined_at"`
}

type RoomAssignedPayload struct {
	Code     string        `json:"code"`
	Roster   []RosterEntry `json:"roster"`
	Count    int           `json:"count"`
	Capacity int           `json:"capacity"`
	Status   string        `json:"status"`
}

type RosterChangedPayload struct {
	Code   string        `json:"code"`
	Roster []RosterEntry `json:"roster"`
	Count  int           `json:"count"`
	Joined *RosterEntry  `json:"joined,omitempty"`
	Left   string        `json:"left,omitempty"`
}

type GameStartedPayload struct {
	Code      string        `json:"code"`
	Roster    []RosterEntry `json:"roster"`
	StartedAt time.Time     `json:"started_at"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// Broadcaster maps coordinator outcomes to addressed notifications. All
// room-wide events go through the hub's per-room queue, so subscribers see
// them in the order they were produced.
type Broadcaster struct {
	hub *Hub
}

func New(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// RoomSnapshot - the public view of a room, as sent on assignment.
func RoomSnapshot(room *entity.Room) RoomAssignedPayload {
	return RoomAssignedPayload{
		Code:     room.Code,
		Roster:   roster(room),
		Count:    len(room.Members),
		Capacity: room.Capacity,
		Status:   room.Status,
	}
}

// RoomAssigned - sends the joining participant its room snapshot.
func (that *Broadcaster) RoomAssigned(connID string, room *entity.Room) {
	that.hub.SendTo(connID, EventRoomAssigned, RoomSnapshot(room))
}

// MemberJoined - tells everyone already in the room about the new member.
func (that *Broadcaster) MemberJoined(room *entity.Room, joined entity.Member) {
	entry := rosterEntry(joined)

	that.hub.BroadcastExcept(room.Code, joined.ConnID, EventRosterChanged, RosterChangedPayload{
		Code:   room.Code,
		Roster: roster(room),
		Count:  len(room.Members),
		Joined: &entry,
	})
}

// MemberLeft - tells the remaining members who departed.
func (that *Broadcaster) MemberLeft(room *entity.Room, playerID string) {
	that.hub.Broadcast(room.Code, EventRosterChanged, RosterChangedPayload{
		Code:   room.Code,
		Roster: roster(room),
		Count:  len(room.Members),
		Left:   playerID,
	})
}

// GameStarted - announces the waiting->playing transition to the whole room.
func (that *Broadcaster) GameStarted(room *entity.Room) {
	payload := GameStartedPayload{
		Code:   room.Code,
		Roster: roster(room),
	}
	if room.StartedAt != nil {
		payload.StartedAt = *room.StartedAt
	}

	that.hub.Broadcast(room.Code, EventGameStarted, payload)
}

// LeaveConfirmed - acknowledges a departure to the departing participant.
func (that *Broadcaster) LeaveConfirmed(connID string) {
	that.hub.SendTo(connID, EventLeaveConfirmed, struct{}{})
}

// Error - reports a matchmaking failure to a single participant.
func (that *Broadcaster) Error(connID, reason string) {
	that.hub.SendTo(connID, EventMatchmakingError, ErrorPayload{Reason: reason})
}

func roster(room *entity.Room) []RosterEntry {
	entries := make([]RosterEntry, 0, len(room.Members))
	for _, member := range room.Members {
		entries = append(entries, rosterEntry(member))
	}

	return entries
}

func rosterEntry(member entity.Member) RosterEntry {
	return RosterEntry{
		PlayerID: member.PlayerID,
		Name:     member.Name,
		Balance:  member.Balance,
		JoinedAt: member.JoinedAt,
	}
}
