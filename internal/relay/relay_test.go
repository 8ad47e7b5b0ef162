package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/metrics"
	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/presence"
	"github.com/duochat/relay/internal/relay"
	"github.com/duochat/relay/internal/store/memory"
)

// fixture wires a relay service over a seeded memory store. Room 4 belongs
// to users 1 and 2; user 5 is a member of no room.
type fixture struct {
	hub     *hub.Hub
	tracker *presence.Tracker
	store   *memory.Store
	service *relay.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	h := hub.New()
	// long durations: no timer fires during a test
	tracker := presence.NewTracker(time.Hour, time.Hour, h, presence.SinkFunc(func(model.PresenceState) {}))
	t.Cleanup(tracker.Stop)

	st := memory.New()
	st.AddRoom(4, 1, 2)

	return &fixture{
		hub:     h,
		tracker: tracker,
		store:   st,
		service: relay.New(h, tracker, st, metrics.NoopCollector{}),
	}
}

func (f *fixture) connect(t *testing.T, userID int64) *hub.Conn {
	t.Helper()
	c := hub.NewConn(userID, "USER", 16)
	f.hub.Register(c)
	return c
}

// pushes drains queued envelopes of the given type from a connection.
func pushes(t *testing.T, c *hub.Conn, eventType string) []model.Envelope {
	t.Helper()
	var out []model.Envelope
	for {
		select {
		case data := <-c.Outgoing():
			var env model.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("malformed envelope on wire: %v", err)
			}
			if env.Type == eventType {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func wantRelayError(t *testing.T, err error, want model.RelayError) {
	t.Helper()
	var re model.RelayError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RelayError %s", err, want.Code)
	}
	if re.Code != want.Code {
		t.Fatalf("error code = %s, want %s", re.Code, want.Code)
	}
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1)

	err := f.service.JoinRoom(context.Background(), c, model.JoinRoomRequest{RoomID: 99})
	wantRelayError(t, err, model.ErrRoomNotFound)
}

func TestJoinRoom_NonMemberForbidden(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 5)

	err := f.service.JoinRoom(context.Background(), c, model.JoinRoomRequest{RoomID: 4})
	wantRelayError(t, err, model.ErrForbidden)

	if f.hub.InRoom(4, c) {
		t.Error("forbidden connection must not be admitted to the room group")
	}
}

func TestJoinRoom_MemberAdmitted(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1)

	if err := f.service.JoinRoom(context.Background(), c, model.JoinRoomRequest{RoomID: 4}); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if !f.hub.InRoom(4, c) {
		t.Error("member connection should be admitted to the room group")
	}
	if got := f.tracker.StatusOf(1); got != model.StatusOnline {
		t.Errorf("join must touch presence, StatusOf = %s", got)
	}
}

func TestJoinRoom_MissingRoomID(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1)

	err := f.service.JoinRoom(context.Background(), c, model.JoinRoomRequest{})
	wantRelayError(t, err, model.ErrInvalidInput)
}

func TestPostMessage_EmptyContentRejected(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.service.PostMessage(context.Background(), c, model.SendMessageRequest{RoomID: 4, Content: content})
		wantRelayError(t, err, model.ErrInvalidInput)
	}
	if got := len(f.store.MessagesOf(4)); got != 0 {
		t.Errorf("store has %d messages, want 0", got)
	}
}

func TestPostMessage_NonMemberForbidden(t *testing.T) {
	f := newFixture(t)
	member := f.connect(t, 1)
	outsider := f.connect(t, 5)
	if err := f.service.JoinRoom(context.Background(), member, model.JoinRoomRequest{RoomID: 4}); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	pushes(t, member, model.EventNewMessage)

	_, err := f.service.PostMessage(context.Background(), outsider, model.SendMessageRequest{RoomID: 4, Content: "hi"})
	wantRelayError(t, err, model.ErrForbidden)

	if got := len(f.store.MessagesOf(4)); got != 0 {
		t.Errorf("forbidden post wrote %d messages, want 0", got)
	}
	if got := len(pushes(t, member, model.EventNewMessage)); got != 0 {
		t.Errorf("forbidden post broadcast %d messages, want 0", got)
	}
}

func TestPostMessage_BroadcastsStoredRecordToRoomGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, 1)
	bob := f.connect(t, 2)
	bobIdleTab := f.connect(t, 2) // a member connection that never joined

	for _, c := range []*hub.Conn{alice, bob} {
		if err := f.service.JoinRoom(ctx, c, model.JoinRoomRequest{RoomID: 4}); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	msg, err := f.service.PostMessage(ctx, alice, model.SendMessageRequest{RoomID: 4, Content: "  hello  "})
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if msg.ID == 0 {
		t.Error("stored message has no id")
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q, want trimmed %q", msg.Content, "hello")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("stored message has no timestamp")
	}

	for name, c := range map[string]*hub.Conn{"alice": alice, "bob": bob} {
		got := pushes(t, c, model.EventNewMessage)
		if len(got) != 1 {
			t.Fatalf("%s received %d newMessage pushes, want 1", name, len(got))
		}
		var received model.Message
		if err := json.Unmarshal(got[0].Payload, &received); err != nil {
			t.Fatalf("bad newMessage payload: %v", err)
		}
		if received.ID != msg.ID || received.Content != msg.Content {
			t.Errorf("%s received %+v, want the canonical stored record %+v", name, received, msg)
		}
	}

	if got := len(pushes(t, bobIdleTab, model.EventNewMessage)); got != 0 {
		t.Errorf("non-admitted connection received %d pushes, want 0", got)
	}
}

func TestPostMessage_StoreAssignsOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, 1)
	bob := f.connect(t, 2)

	first, err := f.service.PostMessage(ctx, alice, model.SendMessageRequest{RoomID: 4, Content: "one"})
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	second, err := f.service.PostMessage(ctx, bob, model.SendMessageRequest{RoomID: 4, Content: "two"})
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	if second.ID <= first.ID {
		t.Errorf("ids not monotonic: %d then %d", first.ID, second.ID)
	}
	stored := f.store.MessagesOf(4)
	if len(stored) != 2 || stored[0].ID != first.ID || stored[1].ID != second.ID {
		t.Errorf("store order mismatch: %+v", stored)
	}
}

func TestRelaySignal_TargetsOtherMemberConnectionsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceTab1 := f.connect(t, 1)
	aliceTab2 := f.connect(t, 1)
	bobTab1 := f.connect(t, 2)
	bobTab2 := f.connect(t, 2)
	stranger := f.connect(t, 5)

	body := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	delivered, err := f.service.RelaySignal(ctx, aliceTab1, model.SignalOffer, model.SignalRequest{RoomID: 4, Body: body})
	if err != nil {
		t.Fatalf("RelaySignal failed: %v", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 (both of bob's tabs)", delivered)
	}

	for name, c := range map[string]*hub.Conn{"bobTab1": bobTab1, "bobTab2": bobTab2} {
		got := pushes(t, c, model.EventWebRTCOffer)
		if len(got) != 1 {
			t.Fatalf("%s received %d offers, want 1", name, len(got))
		}
		var push model.SignalPush
		if err := json.Unmarshal(got[0].Payload, &push); err != nil {
			t.Fatalf("bad offer payload: %v", err)
		}
		if push.RoomID != 4 || push.FromUserID != 1 {
			t.Errorf("%s push = %+v, want roomId 4 fromUserId 1", name, push)
		}
		if string(push.Body) != string(body) {
			t.Errorf("%s body = %s, want forwarded verbatim", name, push.Body)
		}
	}

	// the sender's own other tab must not hear its signal
	if got := len(pushes(t, aliceTab2, model.EventWebRTCOffer)); got != 0 {
		t.Errorf("sender's other tab received %d offers, want 0", got)
	}
	if got := len(pushes(t, stranger, model.EventWebRTCOffer)); got != 0 {
		t.Errorf("stranger received %d offers, want 0", got)
	}
}

func TestRelaySignal_UnreachableTargetIsNotAnError(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, 1)

	delivered, err := f.service.RelaySignal(context.Background(), alice, model.SignalOffer,
		model.SignalRequest{RoomID: 4, Body: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("RelaySignal failed: %v", err)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0 for an offline target", delivered)
	}
}

func TestRelaySignal_NonMemberForbidden(t *testing.T) {
	f := newFixture(t)
	outsider := f.connect(t, 5)

	_, err := f.service.RelaySignal(context.Background(), outsider, model.SignalAnswer,
		model.SignalRequest{RoomID: 4, Body: json.RawMessage(`{}`)})
	wantRelayError(t, err, model.ErrForbidden)
}

func TestRelaySignal_InvalidInput(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, 1)
	bob := f.connect(t, 2)
	ctx := context.Background()

	// missing room id
	_, err := f.service.RelaySignal(ctx, alice, model.SignalOffer,
		model.SignalRequest{Body: json.RawMessage(`{}`)})
	wantRelayError(t, err, model.ErrInvalidInput)

	// missing body on an offer
	_, err = f.service.RelaySignal(ctx, alice, model.SignalOffer, model.SignalRequest{RoomID: 4})
	wantRelayError(t, err, model.ErrInvalidInput)

	if got := len(pushes(t, bob, model.EventWebRTCOffer)); got != 0 {
		t.Errorf("invalid signals delivered %d pushes, want 0", got)
	}
}

func TestRelaySignal_HangupNeedsNoBody(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, 1)
	bob := f.connect(t, 2)

	delivered, err := f.service.RelaySignal(context.Background(), alice, model.SignalHangup,
		model.SignalRequest{RoomID: 4})
	if err != nil {
		t.Fatalf("RelaySignal(hangup) failed: %v", err)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if got := len(pushes(t, bob, model.EventWebRTCHangup)); got != 1 {
		t.Errorf("bob received %d hangups, want 1", got)
	}
}

func TestRelaySignal_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, 1)

	_, err := f.service.RelaySignal(context.Background(), alice, model.SignalICE,
		model.SignalRequest{RoomID: 123, Body: json.RawMessage(`{}`)})
	wantRelayError(t, err, model.ErrRoomNotFound)
}
