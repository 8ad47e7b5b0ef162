// Package handler owns the connection lifecycle: handshake verification,
// registration, event dispatch, and cleanup on disconnect.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/duochat/relay/internal/auth"
	"github.com/duochat/relay/internal/config"
	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/metrics"
	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/presence"
	"github.com/duochat/relay/internal/relay"
)

// WebSocketHandler upgrades client connections and pumps events between the
// transport and the relay service.
type WebSocketHandler struct {
	config   *config.Config
	relay    *relay.Service
	hub      *hub.Hub
	presence *presence.Tracker
	auth     auth.Verifier
	metrics  metrics.Collector
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cfg *config.Config, svc *relay.Service, h *hub.Hub, tracker *presence.Tracker, verifier auth.Verifier, collector metrics.Collector) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		config:   cfg,
		relay:    svc,
		hub:      h,
		presence: tracker,
		auth:     verifier,
		metrics:  collector,
		upgrader: upgrader,
	}
}

// ServeHTTP handles the WebSocket handshake. The bearer credential is
// verified once here, never per event. Rejected credentials never reach the
// hub.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	identity, err := h.auth.Verify(token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade connection: %v", err)
		return
	}

	c := hub.NewConn(identity.UserID, identity.Role, h.config.WebSocket.SendBuffer)
	h.hub.Register(c)
	h.metrics.ClientConnected()

	// Registration precedes the first touch so a pending offline-grace timer
	// observes the live connection and stands down.
	h.presence.Touch(c.UserID)

	h.sendSnapshot(c)
	log.Printf("connect user=%d conn=%s", c.UserID, c.ID)

	go h.writePump(conn, c)
	go h.readPump(conn, c)
}

// sendSnapshot pushes the presence snapshot to a newly connected peer only.
func (h *WebSocketHandler) sendSnapshot(c *hub.Conn) {
	data, err := model.PushEnvelope(model.EventPresenceSync, h.presence.Snapshot())
	if err != nil {
		log.Printf("failed to marshal presence snapshot: %v", err)
		return
	}
	h.hub.Send(c, data)
}

// readPump pumps events from the WebSocket connection into the relay
// service. It owns disconnect cleanup: unregistering the connection and, when
// the user's last connection closes, scheduling offline-with-grace.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, c *hub.Conn) {
	defer func() {
		remaining := h.hub.Unregister(c)
		h.metrics.ClientDisconnected()
		if remaining == 0 {
			h.presence.ScheduleOffline(c.UserID)
		}
		conn.Close()
		log.Printf("disconnect user=%d conn=%s remaining=%d", c.UserID, c.ID, remaining)
	}()

	conn.SetReadLimit(h.config.WebSocket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
		return nil
	})

	var limiter *rate.Limiter
	if h.config.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(h.config.RateLimit.EventsPerSec), h.config.RateLimit.Burst)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			break
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.ack(c, 0, model.AckError(model.InvalidInput("malformed envelope")))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			h.metrics.EventError(env.Type, model.ErrRateLimited.Code)
			h.ack(c, env.ID, model.AckError(model.ErrRateLimited))
			continue
		}

		h.dispatch(c, env)
	}
}

// dispatch routes one client event. Failures are reported on the calling
// connection's ack only; they never terminate the connection.
func (h *WebSocketHandler) dispatch(c *hub.Conn, env model.Envelope) {
	ctx := context.Background()
	h.metrics.EventReceived(env.Type)

	switch env.Type {
	case model.EventPresencePing:
		h.relay.Touch(c.UserID)

	case model.EventPresenceSyncRequest:
		h.relay.Touch(c.UserID)
		ack := model.AckOK()
		ack.Presence = h.relay.Snapshot()
		h.ack(c, env.ID, ack)

	case model.EventJoinRoom:
		var req model.JoinRoomRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.fail(c, env, model.InvalidInput("malformed payload"))
			return
		}
		if err := h.relay.JoinRoom(ctx, c, req); err != nil {
			h.fail(c, env, err)
			return
		}
		h.ack(c, env.ID, model.AckOK())

	case model.EventSendMessage:
		var req model.SendMessageRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.fail(c, env, model.InvalidInput("malformed payload"))
			return
		}
		msg, err := h.relay.PostMessage(ctx, c, req)
		if err != nil {
			h.fail(c, env, err)
			return
		}
		ack := model.AckOK()
		ack.Message = msg
		h.ack(c, env.ID, ack)

	case model.EventWebRTCOffer, model.EventWebRTCAnswer, model.EventWebRTCICE, model.EventWebRTCHangup:
		var req model.SignalRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.fail(c, env, model.InvalidInput("malformed payload"))
			return
		}
		kind := model.SignalKind(env.Type[len("webrtc:"):])
		delivered, err := h.relay.RelaySignal(ctx, c, kind, req)
		if err != nil {
			h.fail(c, env, err)
			return
		}
		ack := model.AckOK()
		ack.Delivered = &delivered
		h.ack(c, env.ID, ack)

	default:
		h.fail(c, env, model.InvalidInput("unknown event type"))
	}
}

func (h *WebSocketHandler) fail(c *hub.Conn, env model.Envelope, err error) {
	h.metrics.EventError(env.Type, model.AsRelayError(err).Code)
	h.ack(c, env.ID, model.AckError(err))
}

func (h *WebSocketHandler) ack(c *hub.Conn, id int64, ack model.Ack) {
	data, err := model.AckEnvelope(id, ack)
	if err != nil {
		log.Printf("failed to marshal ack: %v", err)
		return
	}
	h.hub.Send(c, data)
}

// writePump pumps queued messages to the WebSocket connection and keeps it
// alive with pings.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, c *hub.Conn) {
	ticker := time.NewTicker(h.config.WebSocket.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Outgoing():
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if !ok {
				// Hub closed the queue
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
