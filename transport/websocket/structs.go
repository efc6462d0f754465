package websocket

import "encoding/json"

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConnectPayload carries the credential presented on connect.
type ConnectPayload struct {
	Token string `json:"token"`
}

// RoomDetailsPayload names the room a client asks about.
type RoomDetailsPayload struct {
	Code string `json:"code"`
}

// frame represents a WebSocket frame and its metadata.
type frame struct {
	isFin   bool
	opCode  byte
	length  uint64
	payload []byte
}
