// internal/game/room_store.go
package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/durak/internal/models"
)

var (
	// ErrRoomExists is returned by CreateRoom when the code is already taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrNoSuchRoom is returned by stores when a room id is unknown.
	ErrNoSuchRoom = errors.New("room does not exist")
)

// RoomStore is the durable home of every Room and its seated Players.
// Implementations return copies; a caller mutates its copy and writes it back
// with SaveRoom. Serialising writers per room is the Engine's job.
type RoomStore interface {
	// CreateRoom inserts a new room and its players. Returns ErrRoomExists on an id collision.
	CreateRoom(ctx context.Context, room *models.Room) error
	// GetRoom loads a room with its players in seating order, or ErrNoSuchRoom.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	// SaveRoom replaces the stored room and its player list with room.
	SaveRoom(ctx context.Context, room *models.Room) error
	// DeleteRoom removes the room and cascades to its players.
	DeleteRoom(ctx context.Context, roomID string) error
	// ListStaleRooms returns ids of rooms whose last activity is before cutoff.
	ListStaleRooms(ctx context.Context, cutoff time.Time) ([]string, error)
	// FindPlayerRoom returns the id of the room the player is seated in, or ErrNoSuchRoom.
	FindPlayerRoom(ctx context.Context, playerID string) (string, error)
}

// MemoryStore is an in-process RoomStore backed by a map.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*models.Room),
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNoSuchRoom
	}
	return r.Clone(), nil
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return ErrNoSuchRoom
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func (s *MemoryStore) ListStaleRooms(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.LastActivityAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) FindPlayerRoom(_ context.Context, playerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		if r.Player(playerID) != nil {
			return id, nil
		}
	}
	return "", ErrNoSuchRoom
}
