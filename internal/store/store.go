// ABOUTME: Store interface and data types for hallway persistence
// ABOUTME: Defines User, Room, Message, Membership structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrRoomExists is returned when creating a room whose name is already taken
var ErrRoomExists = errors.New("room already exists")

// ErrUsernameTaken is returned when registering a user with a taken username
var ErrUsernameTaken = errors.New("username already taken")

// ErrEmailTaken is returned when registering a user with a registered email
var ErrEmailTaken = errors.New("email already registered")

// User is a registered account. Message identifiers reference users by ID;
// the password hash never leaves the store/users layers.
type User struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Admin         bool
	Active        bool
	CreatedAt     time.Time
	LastLogin     *time.Time
}

// Room is a named chat room. Names are globally unique (case-sensitive).
type Room struct {
	ID        int64
	Name      string
	CreatedBy int64
	CreatedAt time.Time
}

// Membership records that a user belongs to a room
type Membership struct {
	RoomID   int64
	UserID   int64
	JoinedAt time.Time
}

// Message is a single chat message. IDs come from a single global
// sequence assigned at insert time; within a room they define both
// identity and chronological order (timestamps may collide at second
// granularity, IDs never do).
type Message struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Deleted   bool
}

// Store defines the interface for chat persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	SetEmailVerified(ctx context.Context, id int64) error
	SetAdmin(ctx context.Context, id int64, admin bool) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Rooms. CreateRoom atomically inserts the room and the creator's
	// membership in one transaction.
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id int64) (*Room, error)
	GetRoomByName(ctx context.Context, name string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)

	// Membership (additive only)
	AddMember(ctx context.Context, roomID, userID int64, at time.Time) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]*User, error)

	// Messages. InsertMessage assigns the message ID from the global
	// sequence and fills it into msg before returning.
	InsertMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	ListMessagesSince(ctx context.Context, roomID, afterID int64) ([]*Message, error)
	NextMessageAfter(ctx context.Context, roomID, afterID int64) (*Message, error)
	CountRoomMessages(ctx context.Context, roomID int64) (int, error)
	UpdateMessageContent(ctx context.Context, id int64, content string, at time.Time) error
	MarkMessageDeleted(ctx context.Context, id int64, at time.Time) error

	// Close releases any resources held by the store
	Close() error
}
