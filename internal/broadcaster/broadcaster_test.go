package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

func testRoom() *entity.Room {
	room := entity.NewRoom("ROOM01")
	room.Members = []entity.Member{
		{PlayerID: "p1", Name: "alice", ConnID: "conn-1"},
		{PlayerID: "p2", Name: "bob", ConnID: "conn-2"},
	}

	return room
}

func TestRoomSnapshot(t *testing.T) {
	// Given: a waiting room with two members
	room := testRoom()

	// When: a snapshot is taken
	snapshot := RoomSnapshot(room)

	// Then: it mirrors the roster in seat order
	assert.Equal(t, "ROOM01", snapshot.Code)
	assert.Equal(t, 2, snapshot.Count)
	assert.Equal(t, entity.RoomCapacity, snapshot.Capacity)
	assert.Equal(t, entity.StatusWaiting, snapshot.Status)
	require.Len(t, snapshot.Roster, 2)
	assert.Equal(t, "p1", snapshot.Roster[0].PlayerID)
	assert.Equal(t, "p2", snapshot.Roster[1].PlayerID)
}

func TestBroadcaster_MemberJoined(t *testing.T) {
	// Given: both members connected, the second one freshly joined
	hub := newTestHub()
	events := New(hub)

	veteran := &recordingSender{}
	joiner := &recordingSender{}

	hub.Register("conn-1", veteran)
	hub.Register("conn-2", joiner)
	hub.Subscribe("ROOM01", "conn-1")
	hub.Subscribe("ROOM01", "conn-2")

	room := testRoom()

	// When: the join is announced
	events.MemberJoined(room, room.Members[1])
	hub.Close()

	// Then: the veteran hears about it, the joiner does not
	delivered := veteran.recordedEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, EventRosterChanged, delivered[0].event)

	payload, ok := delivered[0].payload.(RosterChangedPayload)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Count)
	require.NotNil(t, payload.Joined)
	assert.Equal(t, "p2", payload.Joined.PlayerID)
	assert.Empty(t, payload.Left)

	assert.Empty(t, joiner.recordedEvents())
}

func TestBroadcaster_MemberLeft(t *testing.T) {
	// Given: one member remaining after a departure
	hub := newTestHub()
	events := New(hub)

	remaining := &recordingSender{}
	hub.Register("conn-1", remaining)
	hub.Subscribe("ROOM01", "conn-1")

	room := testRoom()
	room.RemoveMember("p2")

	// When: the departure is announced
	events.MemberLeft(room, "p2")
	hub.Close()

	// Then: the remaining member sees the shrunken roster
	delivered := remaining.recordedEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, EventRosterChanged, delivered[0].event)

	payload, ok := delivered[0].payload.(RosterChangedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.Count)
	assert.Equal(t, "p2", payload.Left)
	assert.Nil(t, payload.Joined)
}

func TestBroadcaster_GameStarted(t *testing.T) {
	// Given: a full room transitioning to playing
	hub := newTestHub()
	events := New(hub)

	sender := &recordingSender{}
	hub.Register("conn-1", sender)
	hub.Subscribe("ROOM01", "conn-1")

	room := testRoom()
	room.Status = entity.StatusPlaying
	startedAt := time.Now().UTC()
	room.StartedAt = &startedAt

	// When: the start is announced
	events.GameStarted(room)
	hub.Close()

	// Then: the event carries the start time and roster
	delivered := sender.recordedEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, EventGameStarted, delivered[0].event)

	payload, ok := delivered[0].payload.(GameStartedPayload)
	require.True(t, ok)
	assert.Equal(t, "ROOM01", payload.Code)
	assert.Equal(t, startedAt, payload.StartedAt)
	assert.Len(t, payload.Roster, 2)
}

func TestBroadcaster_Error(t *testing.T) {
	// Given: a single connection
	hub := newTestHub()
	defer hub.Close()

	events := New(hub)

	sender := &recordingSender{}
	hub.Register("conn-1", sender)

	// When: a matchmaking failure is reported
	events.Error("conn-1", "no seats available")

	// Then: only that connection hears it
	delivered := sender.recordedEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, EventMatchmakingError, delivered[0].event)

	payload, ok := delivered[0].payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "no seats available", payload.Reason)
}
