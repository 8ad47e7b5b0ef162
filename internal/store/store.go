// Package store defines the persistence contracts the relay depends on.
// The relay treats the store as an external collaborator: calls may fail or
// be slow, and in-memory relay state is only mutated after they succeed.
package store

import (
	"context"
	"errors"

	"github.com/duochat/relay/internal/model"
)

var (
	// ErrRoomNotFound is returned when a room id is unknown
	ErrRoomNotFound = errors.New("room not found")
)

// RoomStore resolves room membership. Membership is immutable for a room's
// lifetime, so callers re-query per attempt instead of caching.
type RoomStore interface {
	// GetRoom retrieves a room by id
	GetRoom(ctx context.Context, roomID int64) (*model.Room, error)
}

// MessageStore durably appends chat messages. The canonical message id and
// timestamp are assigned at append time, which is what gives every observer
// the same write-completion order.
type MessageStore interface {
	// AppendMessage durably stores a message and returns the canonical record
	AppendMessage(ctx context.Context, roomID, userID int64, content string) (*model.Message, error)
}

// Store combines the persistence contracts the relay needs.
type Store interface {
	RoomStore
	MessageStore
}
