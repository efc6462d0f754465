package entity

// Player is the runtime record for a connected identity. RoomCode and ConnID
// are best-effort denormalizations; room membership in storage is the source
// of truth.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
	RoomCode string `json:"room_code,omitempty"`
	ConnID   string `json:"conn_id,omitempty"`
	Online   bool   `json:"online"`
}

func (that *Player) InRoom() bool {
	return that.RoomCode != ""
}
