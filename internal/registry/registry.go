// ABOUTME: Room registry for creation, lookup and membership management
// ABOUTME: Enforces name uniqueness and auto-membership of the creator

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hallway-chat/hallway/internal/store"
)

// ErrNameTaken is returned when creating a room whose name already exists
var ErrNameTaken = errors.New("room name already taken")

// ErrEmptyName is returned when creating a room with a blank name
var ErrEmptyName = errors.New("room name cannot be empty")

// RoomStore defines what the registry needs from storage
type RoomStore interface {
	CreateRoom(ctx context.Context, room *store.Room) error
	GetRoom(ctx context.Context, id int64) (*store.Room, error)
	ListRooms(ctx context.Context) ([]*store.Room, error)
	AddMember(ctx context.Context, roomID, userID int64, at time.Time) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]*store.User, error)
}

// Registry manages rooms and their member sets
type Registry struct {
	store  RoomStore
	logger *slog.Logger
}

// New creates a room registry
func New(s RoomStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  s,
		logger: logger.With("component", "registry"),
	}
}

// CreateRoom creates a room with the given name, owned by creatorID.
// Names are matched case-sensitively; a collision returns ErrNameTaken.
// The creator becomes the room's sole initial member in the same store
// transaction as the room row itself.
func (r *Registry) CreateRoom(ctx context.Context, name string, creatorID int64) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	room := &store.Room{
		Name:      name,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("creating room: %w", err)
	}

	r.logger.Info("room created", "room_id", room.ID, "name", room.Name, "created_by", creatorID)
	return room, nil
}

// GetRoom retrieves a room by ID.
// Returns store.ErrNotFound if the room doesn't exist.
func (r *Registry) GetRoom(ctx context.Context, id int64) (*store.Room, error) {
	return r.store.GetRoom(ctx, id)
}

// ListRooms returns all rooms. The list is produced fresh on every call;
// nothing is cached.
func (r *Registry) ListRooms(ctx context.Context) ([]*store.Room, error) {
	return r.store.ListRooms(ctx)
}

// Join adds a user to a room's member set. Joining a room the user
// already belongs to is a no-op; membership is additive only - there is
// no leave operation.
func (r *Registry) Join(ctx context.Context, roomID, userID int64) error {
	if _, err := r.store.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if err := r.store.AddMember(ctx, roomID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("adding member: %w", err)
	}

	r.logger.Debug("member joined", "room_id", roomID, "user_id", userID)
	return nil
}

// IsMember reports whether the user belongs to the room
func (r *Registry) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return r.store.IsMember(ctx, roomID, userID)
}

// Members returns the users belonging to a room.
// Returns store.ErrNotFound if the room doesn't exist.
func (r *Registry) Members(ctx context.Context, roomID int64) ([]*store.User, error) {
	if _, err := r.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return r.store.ListMembers(ctx, roomID)
}
