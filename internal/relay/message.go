package relay

import (
	"context"
	"strings"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/model"
)

// PostMessage validates and persists a chat message, then broadcasts the
// canonical stored record to the room's broadcast group.
//
// The broadcast happens strictly after the durable append, and the id and
// timestamp on the wire are the ones the store assigned. Observers therefore
// see messages in write-completion order, which for near-simultaneous posts
// from the two members is not necessarily submission order.
func (s *Service) PostMessage(ctx context.Context, c *hub.Conn, req model.SendMessageRequest) (*model.Message, error) {
	s.presence.Touch(c.UserID)

	if err := s.validate.Struct(req); err != nil {
		return nil, model.InvalidInput("invalid message payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.InvalidInput("content required")
	}

	room, err := s.lookupRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsMember(c.UserID) {
		return nil, model.ErrForbidden
	}

	msg, err := s.store.AppendMessage(ctx, room.ID, c.UserID, content)
	if err != nil {
		s.logStoreError("message append", err)
		return nil, model.ErrInternal
	}

	data, err := model.PushEnvelope(model.EventNewMessage, msg)
	if err != nil {
		return nil, model.ErrInternal
	}
	s.hub.BroadcastRoom(room.ID, data)
	s.metrics.MessageBroadcast(len(data))

	return msg, nil
}
