// ABOUTME: Append-only message ledger with per-room ordering guarantees
// ABOUTME: Validates content, assigns identifiers via the store's global sequence

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hallway-chat/hallway/internal/store"
)

// ErrEmptyContent is returned when posting a blank or whitespace-only message
var ErrEmptyContent = errors.New("message content is empty")

// ErrNotOwner is returned when mutating a message the caller does not own
var ErrNotOwner = errors.New("message belongs to another user")

// MessageStore defines what the ledger needs from storage
type MessageStore interface {
	GetRoom(ctx context.Context, id int64) (*store.Room, error)
	InsertMessage(ctx context.Context, msg *store.Message) error
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	ListMessagesSince(ctx context.Context, roomID, afterID int64) ([]*store.Message, error)
	UpdateMessageContent(ctx context.Context, id int64, content string, at time.Time) error
	MarkMessageDeleted(ctx context.Context, id int64, at time.Time) error
}

// Ledger is the append-only, strictly ordered message stream per room.
// Identifier assignment is linearized by the store's atomic insert:
// concurrent appends never receive the same identifier, and identifiers
// are consistent with commit order.
type Ledger struct {
	store  MessageStore
	logger *slog.Logger
}

// New creates a message ledger
func New(s MessageStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  s,
		logger: logger.With("component", "ledger"),
	}
}

// Append validates and stores a message in the given room. Content that
// is empty after trimming is rejected with ErrEmptyContent before
// anything is written; the stored content keeps the author's original
// whitespace. Returns store.ErrNotFound if the room doesn't exist. The
// assigned identifier and timestamp are filled into the returned message.
func (l *Ledger) Append(ctx context.Context, roomID, authorID int64, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	if _, err := l.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	msg := &store.Message{
		RoomID:    roomID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	l.logger.Debug("message appended", "message_id", msg.ID, "room_id", roomID, "author_id", authorID)
	return msg, nil
}

// ListSince returns all messages in the room with identifier strictly
// greater than afterID, ordered by identifier ascending. afterID 0
// means from the beginning. An unknown room yields an empty sequence.
func (l *Ledger) ListSince(ctx context.Context, roomID, afterID int64) ([]*store.Message, error) {
	return l.store.ListMessagesSince(ctx, roomID, afterID)
}

// History returns the full ordered message sequence for a room,
// used when a client enters the room.
func (l *Ledger) History(ctx context.Context, roomID int64) ([]*store.Message, error) {
	return l.store.ListMessagesSince(ctx, roomID, 0)
}

// Edit replaces a message's content and stamps its update timestamp.
// Only the message's author may edit it.
func (l *Ledger) Edit(ctx context.Context, messageID, userID int64, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg, err := l.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.UserID != userID {
		return nil, ErrNotOwner
	}

	if err := l.store.UpdateMessageContent(ctx, messageID, content, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("editing message: %w", err)
	}
	return l.store.GetMessage(ctx, messageID)
}

// Delete soft-deletes a message: the record survives with its deleted
// flag set, and it disappears from history and polling. Only the
// message's author may delete it.
func (l *Ledger) Delete(ctx context.Context, messageID, userID int64) error {
	msg, err := l.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.UserID != userID {
		return ErrNotOwner
	}

	if err := l.store.MarkMessageDeleted(ctx, messageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	l.logger.Debug("message deleted", "message_id", messageID, "user_id", userID)
	return nil
}
