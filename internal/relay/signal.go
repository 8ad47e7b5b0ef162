package relay

import (
	"context"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/model"
)

// RelaySignal forwards a call-setup payload (offer, answer, ice, hangup) to
// the other member of a room.
//
// Delivery goes through the per-user connection index, never the room group:
// the sender must not receive its own signal on other tabs, and non-members
// hold no connections under the target user id by construction. Each call
// re-verifies membership; offer and answer share no session state.
//
// The returned count is how many of the target's connections received the
// payload. Zero is not an error: the other party may simply be offline, and
// the caller presents that as "could not reach the other party".
func (s *Service) RelaySignal(ctx context.Context, c *hub.Conn, kind model.SignalKind, req model.SignalRequest) (int, error) {
	s.presence.Touch(c.UserID)

	if err := s.validate.Struct(req); err != nil {
		return 0, model.InvalidInput("roomId required")
	}
	if kind != model.SignalHangup && len(req.Body) == 0 {
		return 0, model.InvalidInput("body required")
	}

	room, err := s.lookupRoom(ctx, req.RoomID)
	if err != nil {
		return 0, err
	}
	if !room.IsMember(c.UserID) {
		return 0, model.ErrForbidden
	}

	target := room.OtherMember(c.UserID)
	push := model.SignalPush{
		RoomID:     room.ID,
		FromUserID: c.UserID,
		Body:       req.Body,
	}

	data, err := model.PushEnvelope("webrtc:"+string(kind), push)
	if err != nil {
		return 0, model.ErrInternal
	}

	delivered := s.hub.SendToUser(target, data)
	s.metrics.SignalRelayed(string(kind), delivered)

	return delivered, nil
}
