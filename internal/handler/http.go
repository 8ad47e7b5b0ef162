package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/presence"
)

// HTTPHandler serves the non-WebSocket surface: health and metrics.
type HTTPHandler struct {
	hub      *hub.Hub
	presence *presence.Tracker
	started  time.Time
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(h *hub.Hub, tracker *presence.Tracker) *HTTPHandler {
	return &HTTPHandler{
		hub:      h,
		presence: tracker,
		started:  time.Now(),
	}
}

// SetupRoutes registers the HTTP routes
func (h *HTTPHandler) SetupRoutes(router *mux.Router, ws http.Handler, wsPath string, metricsHandler http.Handler) {
	router.Handle(wsPath, ws)
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
}

// handleHealth reports process liveness with a few gauges useful when
// eyeballing a running relay.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "up",
		"connections": h.hub.Size(),
		"present":     len(h.presence.Snapshot()),
		"uptime":      time.Since(h.started).String(),
	})
}
