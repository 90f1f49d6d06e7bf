// Package store provides persistent storage for hallway using SQLite.
//
// # Data Models
//
//   - User: Registered account with unique username and email
//   - Room: Named chat room with a creator and a member set
//   - Membership: Many-to-many user/room relation with a join timestamp
//   - Message: A room's chat line; IDs come from one global sequence
//
// Message ordering is defined by ID, never by timestamp alone:
// timestamps are stored at second resolution and may collide, IDs are
// assigned by an atomic AUTOINCREMENT insert and never repeat. Within a
// room, ascending ID is chronological order.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads plus a busy
// timeout so concurrent writers queue on the write lock:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// Pragmas are part of the DSN so every pooled connection gets them.
// Tests use a t.TempDir() database path.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrRoomExists: Room name already taken
//   - ErrUsernameTaken / ErrEmailTaken: Account uniqueness collisions
//
// Other failures surface as wrapped errors; callers do not retry here.
// Retry policy belongs to the transport layer, not the store.
//
// All methods accept context.Context for cancellation support.
package store
