// ABOUTME: Polling coordinator serving incremental "what's new since cursor" queries
// ABOUTME: Returns at most one message per call; empty results are normal, not errors

package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hallway-chat/hallway/internal/store"
)

// MessageSource defines what the coordinator needs from storage
type MessageSource interface {
	NextMessageAfter(ctx context.Context, roomID, afterID int64) (*store.Message, error)
}

// Coordinator answers client polls. Clients hold no connection between
// calls; all the coordinator needs is the cursor they carry.
type Coordinator struct {
	source MessageSource
	logger *slog.Logger
}

// New creates a polling coordinator
func New(source MessageSource, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		source: source,
		logger: logger.With("component", "poll"),
	}
}

// Next returns the earliest message in the room with identifier strictly
// greater than lastSeenID, or nil when the caller has seen everything.
// The call never blocks waiting for new data: no new message means an
// immediate nil result, and the client retries on its own schedule.
//
// Repeating the same (roomID, lastSeenID) call is deterministic: the
// same nil result while nothing new exists, the same next message once
// one does, until the caller advances its cursor past it.
//
// A nonexistent room is indistinguishable from a room with no new
// messages: both yield nil. Polling is read-only and tolerates a
// briefly stale view; a just-committed message is picked up on the
// next call.
func (c *Coordinator) Next(ctx context.Context, roomID, lastSeenID int64) (*store.Message, error) {
	msg, err := c.source.NextMessageAfter(ctx, roomID, lastSeenID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying next message: %w", err)
	}
	return msg, nil
}
