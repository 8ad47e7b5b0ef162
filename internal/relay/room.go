package relay

import (
	"context"
	"errors"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/store"
)

// JoinRoom admits a connection to a room's broadcast group after checking
// membership against the store. The check runs on every call; repeated joins
// are harmless and membership is never cached.
func (s *Service) JoinRoom(ctx context.Context, c *hub.Conn, req model.JoinRoomRequest) error {
	s.presence.Touch(c.UserID)

	if err := s.validate.Struct(req); err != nil {
		return model.InvalidInput("roomId required")
	}

	room, err := s.lookupRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}
	if !room.IsMember(c.UserID) {
		return model.ErrForbidden
	}

	s.hub.JoinRoom(room.ID, c)
	return nil
}

// lookupRoom resolves a room, mapping store failures to the relay error
// taxonomy.
func (s *Service) lookupRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrRoomNotFound) {
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		s.logStoreError("room lookup", err)
		return nil, model.ErrInternal
	}
	return room, nil
}
