package model

import (
	"encoding/json"
	"fmt"
)

// Event types sent by clients
const (
	EventPresenceSyncRequest = "presence:sync:request"
	EventPresencePing        = "presence:ping"
	EventJoinRoom            = "joinRoom"
	EventSendMessage         = "sendMessage"
	EventWebRTCOffer         = "webrtc:offer"
	EventWebRTCAnswer        = "webrtc:answer"
	EventWebRTCICE           = "webrtc:ice"
	EventWebRTCHangup        = "webrtc:hangup"
)

// Event types pushed by the server
const (
	EventAck           = "ack"
	EventPresenceSync  = "presence:sync"
	EventPresenceState = "presence:state"
	EventNewMessage    = "newMessage"
)

// Envelope frames every message on the wire, in both directions. Clients
// attach an id when they want the result correlated back; the server echoes
// it on the ack. Server pushes carry no id.
type Envelope struct {
	Type    string          `json:"type"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoomRequest is the payload of a joinRoom event.
type JoinRoomRequest struct {
	RoomID int64 `json:"roomId" validate:"required,gt=0"`
}

// SendMessageRequest is the payload of a sendMessage event. Content is
// trimmed before the empty check, so whitespace-only content is rejected.
type SendMessageRequest struct {
	RoomID  int64  `json:"roomId" validate:"required,gt=0"`
	Content string `json:"content" validate:"max=2000"`
}

// SignalRequest is the payload of the four webrtc events. Body is opaque to
// the relay; it is forwarded verbatim and never interpreted or stored.
type SignalRequest struct {
	RoomID int64           `json:"roomId" validate:"required,gt=0"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// SignalPush is what the target user's connections receive for a relayed
// signal.
type SignalPush struct {
	RoomID     int64           `json:"roomId"`
	FromUserID int64           `json:"fromUserId"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Ack is the response payload for every client event. Only the fields
// relevant to the acknowledged event are set.
type Ack struct {
	OK        bool            `json:"ok"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Delivered *int            `json:"delivered,omitempty"`
	Presence  []PresenceState `json:"presence,omitempty"`
}

// AckOK builds a success ack.
func AckOK() Ack {
	return Ack{OK: true}
}

// AckError builds a failure ack from a relay error.
func AckError(err error) Ack {
	re := AsRelayError(err)
	return Ack{OK: false, Code: re.Code, Error: re.Message}
}

// PushEnvelope marshals a server-initiated event.
func PushEnvelope(eventType string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}

// AckEnvelope marshals an acknowledgment correlated to a client event.
func AckEnvelope(id int64, ack Ack) ([]byte, error) {
	body, err := json.Marshal(ack)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ack payload: %w", err)
	}
	return json.Marshal(Envelope{Type: EventAck, ID: id, Payload: body})
}
