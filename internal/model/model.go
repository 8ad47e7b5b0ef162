package model

import (
	"time"
)

// PresenceStatus is a user's currently-observable reachability state.
// OFFLINE is never stored anywhere: a user with no presence record is
// OFFLINE by contract.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusIdle    PresenceStatus = "IDLE"
	StatusOffline PresenceStatus = "OFFLINE"
)

// Room is a fixed two-party conversation channel. Membership is resolved
// by the store; the relay never creates or mutates rooms.
type Room struct {
	ID      int64 `json:"id"`
	User1ID int64 `json:"user1Id"`
	User2ID int64 `json:"user2Id"`
}

// IsMember reports whether userID is one of the two room members.
func (r *Room) IsMember(userID int64) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// OtherMember returns the member that is not userID. The caller must have
// checked membership first.
func (r *Room) OtherMember(userID int64) int64 {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// Message is a persisted chat message. ID and CreatedAt are assigned by the
// store at append time so that all observers share one ordering source.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PresenceState is the payload of a presence change event and of snapshot
// entries.
type PresenceState struct {
	UserID int64          `json:"userId"`
	Status PresenceStatus `json:"status"`
}

// SignalKind identifies a call-setup signaling operation.
type SignalKind string

const (
	SignalOffer  SignalKind = "offer"
	SignalAnswer SignalKind = "answer"
	SignalICE    SignalKind = "ice"
	SignalHangup SignalKind = "hangup"
)
