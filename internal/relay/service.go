// Package relay implements the room channel manager, the message relay, and
// the signaling relay. Every operation re-verifies room membership against
// the store; a prior join is never trusted.
package relay

import (
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/metrics"
	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/presence"
	"github.com/duochat/relay/internal/store"
)

// Service coordinates the hub, the presence tracker, and the store. It owns
// no connection state of its own.
type Service struct {
	hub      *hub.Hub
	presence *presence.Tracker
	store    store.Store
	metrics  metrics.Collector
	validate *validator.Validate
}

// New creates a new relay service
func New(h *hub.Hub, tracker *presence.Tracker, st store.Store, collector metrics.Collector) *Service {
	return &Service{
		hub:      h,
		presence: tracker,
		store:    st,
		metrics:  collector,
		validate: validator.New(),
	}
}

// Touch forwards an activity signal to the presence tracker.
func (s *Service) Touch(userID int64) {
	s.presence.Touch(userID)
}

// Snapshot returns the current presence snapshot, ONLINE and IDLE users
// only.
func (s *Service) Snapshot() []model.PresenceState {
	return s.presence.Snapshot()
}

func (s *Service) logStoreError(op string, err error) {
	log.Printf("store error during %s: %v", op, err)
}
