// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user/room CRUD, membership, message ordering and cursor queries

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// newTestStore creates a store backed by a temp-dir database
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUser inserts a user with defaults and returns it
func createTestUser(t *testing.T, s *SQLiteStore, username string) *User {
	t.Helper()
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Active:       true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return user
}

// createTestRoom inserts a room owned by the given user and returns it
func createTestRoom(t *testing.T, s *SQLiteStore, name string, creator *User) *Room {
	t.Helper()
	room := &Room{
		Name:      name,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom(%s) failed: %v", name, err)
	}
	return room
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	if user.ID == 0 {
		t.Fatal("CreateUser did not assign an ID")
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username mismatch: got %q, want %q", got.Username, "alice")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email mismatch: got %q, want %q", got.Email, "alice@example.com")
	}
	if !got.Active {
		t.Error("Active flag not persisted")
	}
	if got.LastLogin != nil {
		t.Errorf("LastLogin should be nil for new user, got %v", got.LastLogin)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("GetUserByUsername returned wrong user: got id %d, want %d", byName.ID, user.ID)
	}

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("GetUserByEmail returned wrong user: got id %d, want %d", byEmail.ID, user.ID)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "alice")

	dup := &User{
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), dup); err != ErrUsernameTaken {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "alice")

	dup := &User{
		Username:     "alice2",
		Email:        "alice@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), dup); err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUser(context.Background(), 9999); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByUsername(context.Background(), "ghost"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLastLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdateLastLogin(ctx, user.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("LastLogin not updated: got %v, want %v", got.LastLogin, at)
	}

	if err := s.UpdateLastLogin(ctx, 9999, at); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestSetEmailVerifiedAndAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	if err := s.SetEmailVerified(ctx, user.ID); err != nil {
		t.Fatalf("SetEmailVerified failed: %v", err)
	}
	if err := s.SetAdmin(ctx, user.ID, true); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !got.EmailVerified {
		t.Error("EmailVerified not set")
	}
	if !got.Admin {
		t.Error("Admin not set")
	}
}

func TestCreateRoom_CreatorIsMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")

	room := createTestRoom(t, s, "general", alice)
	if room.ID == 0 {
		t.Fatal("CreateRoom did not assign an ID")
	}

	member, err := s.IsMember(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("creator is not a member of the room it created")
	}

	members, err := s.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].ID != alice.ID {
		t.Errorf("expected creator as sole member, got %d members", len(members))
	}
}

func TestCreateRoom_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	createTestRoom(t, s, "general", alice)

	dup := &Room{Name: "general", CreatedBy: bob.ID, CreatedAt: time.Now().UTC()}
	if err := s.CreateRoom(ctx, dup); err != ErrRoomExists {
		t.Errorf("expected ErrRoomExists, got %v", err)
	}

	// Exactly one room with that name survives
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	count := 0
	for _, r := range rooms {
		if r.Name == "general" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one room named general, got %d", count)
	}
}

func TestCreateRoom_NameIsCaseSensitive(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "alice")
	createTestRoom(t, s, "general", alice)

	// Different case is a different room
	other := &Room{Name: "General", CreatedBy: alice.ID, CreatedAt: time.Now().UTC()}
	if err := s.CreateRoom(context.Background(), other); err != nil {
		t.Errorf("expected case-sensitive uniqueness, got %v", err)
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetRoom(context.Background(), 9999); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRoomByName(context.Background(), "ghost"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddMember_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	room := createTestRoom(t, s, "general", alice)

	now := time.Now().UTC()
	if err := s.AddMember(ctx, room.ID, bob.ID, now); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	// Second add is a no-op
	if err := s.AddMember(ctx, room.ID, bob.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("repeated AddMember failed: %v", err)
	}

	members, err := s.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
}

func TestInsertMessage_AssignsIncreasingIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	var lastID int64
	for i := 0; i < 3; i++ {
		msg := &Message{
			RoomID:    room.ID,
			UserID:    alice.ID,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
		if msg.ID <= lastID {
			t.Errorf("IDs not strictly increasing: %d after %d", msg.ID, lastID)
		}
		lastID = msg.ID
	}
}

func TestListMessagesSince_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	want := []string{"one", "two", "three"}
	for _, content := range want {
		msg := &Message{RoomID: room.ID, UserID: alice.ID, Content: content, CreatedAt: time.Now().UTC()}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	got, err := s.ListMessagesSince(ctx, room.ID, 0)
	if err != nil {
		t.Fatalf("ListMessagesSince failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("message %d: got %q, want %q", i, m.Content, want[i])
		}
		if i > 0 && got[i].ID <= got[i-1].ID {
			t.Errorf("IDs not ascending at index %d", i)
		}
	}

	// Cursor past the second message yields only the third
	tail, err := s.ListMessagesSince(ctx, room.ID, got[1].ID)
	if err != nil {
		t.Fatalf("ListMessagesSince failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Content != "three" {
		t.Errorf("expected only the last message after cursor, got %d messages", len(tail))
	}
}

func TestListMessagesSince_ScopedToRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	roomA := createTestRoom(t, s, "alpha", alice)
	roomB := createTestRoom(t, s, "beta", alice)

	for i, roomID := range []int64{roomA.ID, roomB.ID, roomA.ID} {
		msg := &Message{RoomID: roomID, UserID: alice.ID, Content: fmt.Sprintf("m%d", i), CreatedAt: time.Now().UTC()}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	got, err := s.ListMessagesSince(ctx, roomA.ID, 0)
	if err != nil {
		t.Fatalf("ListMessagesSince failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages in room alpha, got %d", len(got))
	}
	for _, m := range got {
		if m.RoomID != roomA.ID {
			t.Errorf("message %d belongs to room %d, want %d", m.ID, m.RoomID, roomA.ID)
		}
	}
}

func TestNextMessageAfter_Cursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	var ids []int64
	for i := 0; i < 3; i++ {
		msg := &Message{RoomID: room.ID, UserID: alice.ID, Content: fmt.Sprintf("m%d", i), CreatedAt: time.Now().UTC()}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	// Walk the cursor one message at a time
	cursor := int64(0)
	for _, want := range ids {
		next, err := s.NextMessageAfter(ctx, room.ID, cursor)
		if err != nil {
			t.Fatalf("NextMessageAfter(%d) failed: %v", cursor, err)
		}
		if next.ID != want {
			t.Errorf("NextMessageAfter(%d): got id %d, want %d", cursor, next.ID, want)
		}
		cursor = next.ID
	}

	// Caught up: nothing left
	if _, err := s.NextMessageAfter(ctx, room.ID, cursor); err != ErrNotFound {
		t.Errorf("expected ErrNotFound at end of stream, got %v", err)
	}
}

func TestMarkMessageDeleted_HiddenFromQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	msg := &Message{RoomID: room.ID, UserID: alice.ID, Content: "oops", CreatedAt: time.Now().UTC()}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	if err := s.MarkMessageDeleted(ctx, msg.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkMessageDeleted failed: %v", err)
	}

	// Row survives with the flag set
	got, err := s.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if !got.Deleted {
		t.Error("Deleted flag not set")
	}
	if got.UpdatedAt == nil {
		t.Error("UpdatedAt not stamped on delete")
	}

	// Hidden from range and cursor queries
	msgs, err := s.ListMessagesSince(ctx, room.ID, 0)
	if err != nil {
		t.Fatalf("ListMessagesSince failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("deleted message still listed: %d messages", len(msgs))
	}
	if _, err := s.NextMessageAfter(ctx, room.ID, 0); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	count, err := s.CountRoomMessages(ctx, room.ID)
	if err != nil {
		t.Fatalf("CountRoomMessages failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected count 0 after delete, got %d", count)
	}

	// Double delete is ErrNotFound
	if err := s.MarkMessageDeleted(ctx, msg.ID, time.Now().UTC()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestUpdateMessageContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	msg := &Message{RoomID: room.ID, UserID: alice.ID, Content: "first", CreatedAt: time.Now().UTC()}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdateMessageContent(ctx, msg.ID, "second", at); err != nil {
		t.Fatalf("UpdateMessageContent failed: %v", err)
	}

	got, err := s.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Content != "second" {
		t.Errorf("Content not updated: got %q", got.Content)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt mismatch: got %v, want %v", got.UpdatedAt, at)
	}
}

func TestInsertMessage_ConcurrentDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	room := createTestRoom(t, s, "general", alice)

	const n = 20
	ids := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := &Message{
				RoomID:    room.ID,
				UserID:    alice.ID,
				Content:   fmt.Sprintf("concurrent %d", i),
				CreatedAt: time.Now().UTC(),
			}
			errs[i] = s.InsertMessage(ctx, msg)
			ids[i] = msg.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert %d failed: %v", i, err)
		}
	}

	// All IDs distinct, and together they form a gap-free range
	seen := make(map[int64]bool, n)
	min, max := ids[0], ids[0]
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ID assigned: %d", id)
		}
		seen[id] = true
		if id < min {
			min = id
		}
		if id > max {
			max = id
		}
	}
	if max-min != n-1 {
		t.Errorf("IDs are not consecutive: range [%d, %d] for %d inserts", min, max, n)
	}
}
