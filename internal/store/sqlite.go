// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/room/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them:
	// WAL for concurrent reads, busy_timeout so concurrent writers
	// queue instead of failing with SQLITE_BUSY.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// Message IDs use AUTOINCREMENT so the sequence is strictly increasing
// and never reuses an ID, even after deletes. The insert commit is the
// serialization point for concurrent appends.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			username       TEXT NOT NULL UNIQUE,
			email          TEXT NOT NULL UNIQUE,
			password_hash  TEXT NOT NULL,
			email_verified INTEGER NOT NULL DEFAULT 0,
			is_admin       INTEGER NOT NULL DEFAULT 0,
			is_active      INTEGER NOT NULL DEFAULT 1,
			created_at     TEXT NOT NULL,
			last_login     TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS rooms (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL UNIQUE,
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_rooms_name ON rooms(name);

		CREATE TABLE IF NOT EXISTS room_members (
			room_id   INTEGER NOT NULL REFERENCES rooms(id),
			user_id   INTEGER NOT NULL REFERENCES users(id),
			joined_at TEXT NOT NULL,
			PRIMARY KEY (room_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id    INTEGER NOT NULL REFERENCES rooms(id),
			user_id    INTEGER NOT NULL REFERENCES users(id),
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT,
			is_deleted INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_messages_room_id ON messages(room_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint
// violation, optionally on a specific column (e.g. "users.username").
func isConstraintViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "constraint failed") {
		return false
	}
	if column == "" {
		return true
	}
	return strings.Contains(errStr, column)
}

// CreateUser inserts a new user and fills in the assigned ID.
// Returns ErrUsernameTaken or ErrEmailTaken on uniqueness collisions.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, email_verified, is_admin, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		boolToInt(user.EmailVerified),
		boolToInt(user.Admin),
		boolToInt(user.Active),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err, "users.username") {
			return ErrUsernameTaken
		}
		if isConstraintViolation(err, "users.email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user id: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

// boolToInt converts a bool to the 0/1 SQLite stores it as
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const userColumns = `id, username, email, password_hash, email_verified, is_admin, is_active, created_at, last_login`

// scanUser scans one user row from a row-like scanner
func scanUser(scan func(dest ...any) error) (*User, error) {
	var u User
	var verified, admin, active int
	var createdAtStr string
	var lastLogin sql.NullString

	err := scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &verified, &admin, &active, &createdAtStr, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.EmailVerified = verified != 0
	u.Admin = admin != 0
	u.Active = active != 0

	u.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastLogin.Valid {
		t, err := time.Parse(time.RFC3339, lastLogin.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_login: %w", err)
		}
		u.LastLogin = &t
	}

	return &u, nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row.Scan)
}

// GetUserByUsername retrieves a user by username.
// Returns ErrNotFound if no user has that username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row.Scan)
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if no user has that email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row.Scan)
}

// UpdateLastLogin records a successful login timestamp.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating last_login: %w", err)
	}
	return requireRowsAffected(result)
}

// SetEmailVerified marks a user's email address as verified.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) SetEmailVerified(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("updating email_verified: %w", err)
	}
	return requireRowsAffected(result)
}

// SetAdmin sets or clears a user's admin flag.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) SetAdmin(ctx context.Context, id int64, admin bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, boolToInt(admin), id)
	if err != nil {
		return fmt.Errorf("updating is_admin: %w", err)
	}
	return requireRowsAffected(result)
}

// ListUsers returns all users ordered by ID
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// requireRowsAffected translates a zero-row update into ErrNotFound
func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRoom inserts a room and the creator's membership in one
// transaction, filling in the assigned room ID. The creator is a member
// the instant the room exists - there is no window where the room has
// no members. Returns ErrRoomExists if the name is taken.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *Room) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := room.CreatedAt.UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, created_by, created_at) VALUES (?, ?, ?)`,
		room.Name, room.CreatedBy, createdAt,
	)
	if err != nil {
		if isConstraintViolation(err, "rooms.name") {
			return ErrRoomExists
		}
		return fmt.Errorf("inserting room: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting room id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		id, room.CreatedBy, createdAt,
	); err != nil {
		return fmt.Errorf("inserting creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing room creation: %w", err)
	}

	room.ID = id
	s.logger.Debug("created room", "id", room.ID, "name", room.Name, "created_by", room.CreatedBy)
	return nil
}

// scanRoom scans one room row from a row-like scanner
func scanRoom(scan func(dest ...any) error) (*Room, error) {
	var r Room
	var createdAtStr string

	err := scan(&r.ID, &r.Name, &r.CreatedBy, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning room: %w", err)
	}

	r.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &r, nil
}

// GetRoom retrieves a room by ID.
// Returns ErrNotFound if the room doesn't exist.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM rooms WHERE id = ?`, id)
	return scanRoom(row.Scan)
}

// GetRoomByName retrieves a room by its exact name (case-sensitive).
// Returns ErrNotFound if no room has that name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM rooms WHERE name = ?`, name)
	return scanRoom(row.Scan)
}

// ListRooms returns all rooms ordered by ID
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_by, created_at FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		r, err := scanRoom(rows.Scan)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// AddMember adds a user to a room. Adding an existing member is a no-op;
// membership is additive only.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		roomID, userID, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}

	s.logger.Debug("added member", "room_id", roomID, "user_id", userID)
	return nil
}

// IsMember reports whether the user belongs to the room
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying membership: %w", err)
	}
	return true, nil
}

// ListMembers returns the users belonging to a room, ordered by join time
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]*User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.email_verified, u.is_admin, u.is_active, u.created_at, u.last_login
		FROM users u
		JOIN room_members m ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, u.id
	`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return users, nil
}

// InsertMessage appends a message and fills in the ID assigned by the
// global sequence. The insert is a single atomic statement; two
// concurrent inserts never observe the same ID.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *Message) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.RoomID, msg.UserID, msg.Content, msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting message id: %w", err)
	}

	s.logger.Debug("inserted message", "id", msg.ID, "room_id", msg.RoomID, "user_id", msg.UserID)
	return nil
}

const messageColumns = `id, room_id, user_id, content, created_at, updated_at, is_deleted`

// scanMessage scans one message row from a row-like scanner
func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var m Message
	var deleted int
	var createdAtStr string
	var updatedAt sql.NullString

	err := scan(&m.ID, &m.RoomID, &m.UserID, &m.Content, &createdAtStr, &updatedAt, &deleted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	m.Deleted = deleted != 0
	m.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if updatedAt.Valid {
		t, err := time.Parse(time.RFC3339, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		m.UpdatedAt = &t
	}

	return &m, nil
}

// GetMessage retrieves a message by ID regardless of its deleted flag.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return scanMessage(row.Scan)
}

// ListMessagesSince returns all non-deleted messages in a room with ID
// strictly greater than afterID, ordered by ID ascending. afterID 0
// means from the beginning.
func (s *SQLiteStore) ListMessagesSince(ctx context.Context, roomID, afterID int64) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = ? AND id > ? AND is_deleted = 0
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, roomID, afterID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// NextMessageAfter returns the earliest non-deleted message in a room
// with ID strictly greater than afterID. Returns ErrNotFound when the
// caller has seen everything.
func (s *SQLiteStore) NextMessageAfter(ctx context.Context, roomID, afterID int64) (*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = ? AND id > ? AND is_deleted = 0
		ORDER BY id ASC
		LIMIT 1
	`

	row := s.db.QueryRowContext(ctx, query, roomID, afterID)
	return scanMessage(row.Scan)
}

// CountRoomMessages returns the number of non-deleted messages in a room
func (s *SQLiteStore) CountRoomMessages(ctx context.Context, roomID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ? AND is_deleted = 0`,
		roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// UpdateMessageContent replaces a message's content and stamps updated_at.
// Returns ErrNotFound if the message doesn't exist or is deleted.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id int64, content string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		content, at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return requireRowsAffected(result)
}

// MarkMessageDeleted soft-deletes a message. The row is kept; the flag
// and updated_at change. Returns ErrNotFound if the message doesn't
// exist or is already deleted.
func (s *SQLiteStore) MarkMessageDeleted(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return requireRowsAffected(result)
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
