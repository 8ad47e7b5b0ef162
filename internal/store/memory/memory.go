// Package memory provides an in-memory store implementation, used for local
// runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/duochat/relay/internal/model"
	"github.com/duochat/relay/internal/store"
)

// Store implements store.Store with in-memory maps.
type Store struct {
	rooms    map[int64]*model.Room      // Map of roomID -> Room
	messages map[int64][]*model.Message // Map of roomID -> ordered messages
	nextID   int64
	mu       sync.RWMutex
}

// New creates a new memory-based store
func New() *Store {
	return &Store{
		rooms:    make(map[int64]*model.Room),
		messages: make(map[int64][]*model.Message),
	}
}

// AddRoom registers a room with its two members. Room management belongs to
// the outer application; the relay only reads membership, so this exists for
// seeding and tests.
func (s *Store) AddRoom(roomID, user1ID, user2ID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[roomID] = &model.Room{
		ID:      roomID,
		User1ID: user1ID,
		User2ID: user2ID,
	}
}

// GetRoom retrieves a room by id
func (s *Store) GetRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[roomID]
	if !exists {
		return nil, store.ErrRoomNotFound
	}

	// Return a copy to prevent concurrent modification
	roomCopy := *room
	return &roomCopy, nil
}

// AppendMessage durably stores a message and returns the canonical record
func (s *Store) AppendMessage(ctx context.Context, roomID, userID int64, content string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[roomID]; !exists {
		return nil, store.ErrRoomNotFound
	}

	s.nextID++
	msg := &model.Message{
		ID:        s.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)

	msgCopy := *msg
	return &msgCopy, nil
}

// MessagesOf returns the stored messages of a room in append order.
func (s *Store) MessagesOf(roomID int64) []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Message, 0, len(s.messages[roomID]))
	for _, msg := range s.messages[roomID] {
		msgCopy := *msg
		out = append(out, &msgCopy)
	}
	return out
}
