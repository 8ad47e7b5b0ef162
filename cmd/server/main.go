package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/duochat/relay/internal/auth"
	"github.com/duochat/relay/internal/config"
	"github.com/duochat/relay/internal/handler"
	"github.com/duochat/relay/internal/hub"
	"github.com/duochat/relay/internal/metrics"
	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/presence"
	"github.com/duochat/relay/internal/relay"
	"github.com/duochat/relay/internal/store/memory"
	"github.com/duochat/relay/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log.Println("Starting duochat relay")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT secret is required (config auth.jwt_secret or JWT_SECRET)")
	}

	// Persistence. The memory store stands in for the chat application's
	// database; the relay only reads membership and appends messages.
	st := memory.New()
	seedRooms(st)

	authService := auth.NewService(cfg.Auth)
	collector := metrics.NewPrometheusCollector()
	h := hub.New()

	tracker := presence.NewTracker(
		cfg.Presence.IdleTimeout,
		cfg.Presence.OfflineGrace,
		h,
		presence.SinkFunc(func(state model.PresenceState) {
			collector.PresenceTransition(string(state.Status))
			data, err := model.PushEnvelope(model.EventPresenceState, state)
			if err != nil {
				log.Printf("failed to marshal presence state: %v", err)
				return
			}
			h.BroadcastAll(data)
		}),
	)

	relayService := relay.New(h, tracker, st, collector)
	wsHandler := handler.NewWebSocketHandler(cfg, relayService, h, tracker, authService, collector)
	httpHandler := handler.NewHTTPHandler(h, tracker)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	httpHandler.SetupRoutes(router, wsHandler, cfg.WebSocket.Path, collector.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTP.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	tracker.Stop()
	h.Close()

	log.Println("Shutdown complete")
}

// seedRooms registers a couple of demo rooms for local runs. In a real
// deployment the store is backed by the chat application's database.
func seedRooms(st *memory.Store) {
	st.AddRoom(1, 1, 2)
	st.AddRoom(2, 1, 3)
	st.AddRoom(3, 2, 3)
}
