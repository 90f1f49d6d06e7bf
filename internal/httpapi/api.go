// ABOUTME: HTTP API handlers for accounts, rooms, messages and polling
// ABOUTME: JSON over net/http ServeMux with bearer-token auth middleware

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hallway-chat/hallway/internal/auth"
	"github.com/hallway-chat/hallway/internal/ledger"
	"github.com/hallway-chat/hallway/internal/poll"
	"github.com/hallway-chat/hallway/internal/registry"
	"github.com/hallway-chat/hallway/internal/store"
	"github.com/hallway-chat/hallway/internal/users"
)

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /api/login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the JSON representation of a user account.
type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Admin         bool   `json:"admin"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
	LastLogin     string `json:"last_login,omitempty"`
}

// CreateRoomRequest is the JSON request body for POST /api/rooms.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// RoomResponse is the JSON representation of a room.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// PostMessageRequest is the JSON request body for POST /api/rooms/{id}/messages.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse is the JSON representation of a message as clients
// render it: sender username and a short wall-clock time, not the
// internal timestamps.
type MessageResponse struct {
	ID      int64  `json:"id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

// messageTimeFormat is the wall-clock format clients render next to each message
const messageTimeFormat = "15:04"

// API exposes the chat services over HTTP.
type API struct {
	users    *users.Service
	registry *registry.Registry
	ledger   *ledger.Ledger
	poll     *poll.Coordinator
	logger   *slog.Logger
}

// New creates the HTTP API layer over the given services.
func New(u *users.Service, reg *registry.Registry, led *ledger.Ledger, p *poll.Coordinator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		users:    u,
		registry: reg,
		ledger:   led,
		poll:     p,
		logger:   logger.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the mux. authMiddleware
// wraps everything that needs a logged-in user; adminMiddleware
// additionally gates the admin listing endpoints.
func (a *API) RegisterRoutes(mux *http.ServeMux, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	// Account endpoints - no auth required
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/verify-email", a.handleVerifyEmail)

	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}
	mux.Handle("GET /api/rooms", authed(a.handleListRooms))
	mux.Handle("POST /api/rooms", authed(a.handleCreateRoom))
	mux.Handle("POST /api/rooms/{id}/join", authed(a.handleJoinRoom))
	mux.Handle("GET /api/rooms/{id}/messages", authed(a.handleRoomHistory))
	mux.Handle("POST /api/rooms/{id}/messages", authed(a.handlePostMessage))
	mux.Handle("GET /api/rooms/{id}/poll", authed(a.handlePoll))
	mux.Handle("DELETE /api/messages/{id}", authed(a.handleDeleteMessage))

	mux.Handle("GET /api/admin/users", authMiddleware(adminMiddleware(http.HandlerFunc(a.handleAdminListUsers))))
	mux.Handle("GET /api/admin/rooms", authMiddleware(adminMiddleware(http.HandlerFunc(a.handleAdminListRooms))))
}

// handleRegister handles POST /api/register.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := a.users.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidUsername),
		errors.Is(err, users.ErrInvalidEmail),
		errors.Is(err, users.ErrWeakPassword):
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrUsernameTaken):
		a.sendJSONError(w, http.StatusConflict, "username already taken")
		return
	case errors.Is(err, store.ErrEmailTaken):
		a.sendJSONError(w, http.StatusConflict, "email already registered")
		return
	case err != nil:
		a.logger.Error("failed to register user", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.writeJSON(w, http.StatusCreated, userResponse(user))
}

// handleLogin handles POST /api/login.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, token, err := a.users.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		a.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		a.logger.Error("failed to log in user", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: userResponse(user)})
}

// handleVerifyEmail handles GET /api/verify-email?token=X.
func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		a.sendJSONError(w, http.StatusBadRequest, "token query param required")
		return
	}

	err := a.users.VerifyEmail(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		a.sendJSONError(w, http.StatusBadRequest, "verification link expired")
		return
	case errors.Is(err, auth.ErrInvalidToken):
		a.sendJSONError(w, http.StatusBadRequest, "invalid verification token")
		return
	case errors.Is(err, store.ErrNotFound):
		a.sendJSONError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		a.logger.Error("failed to verify email", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// handleListRooms handles GET /api/rooms.
func (a *API) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.registry.ListRooms(r.Context())
	if err != nil {
		a.logger.Error("failed to list rooms", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = roomResponse(room)
	}
	a.writeJSON(w, http.StatusOK, response)
}

// handleCreateRoom handles POST /api/rooms.
func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		a.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	room, err := a.registry.CreateRoom(r.Context(), req.Name, identity.UserID)
	switch {
	case errors.Is(err, registry.ErrEmptyName):
		a.sendJSONError(w, http.StatusBadRequest, "room name cannot be empty")
		return
	case errors.Is(err, registry.ErrNameTaken):
		a.sendJSONError(w, http.StatusConflict, "room name already taken")
		return
	case err != nil:
		a.logger.Error("failed to create room", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.writeJSON(w, http.StatusCreated, roomResponse(room))
}

// handleJoinRoom handles POST /api/rooms/{id}/join.
func (a *API) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		a.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID, ok := a.pathID(w, r)
	if !ok {
		return
	}

	err := a.registry.Join(r.Context(), roomID, identity.UserID)
	if errors.Is(err, store.ErrNotFound) {
		a.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to join room", "error", err, "room_id", roomID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRoomHistory handles GET /api/rooms/{id}/messages.
// Returns the room's full ordered message history.
func (a *API) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID, ok := a.pathID(w, r)
	if !ok {
		return
	}

	if _, err := a.registry.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.sendJSONError(w, http.StatusNotFound, "room not found")
			return
		}
		a.logger.Error("failed to get room", "error", err, "room_id", roomID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := a.ledger.History(r.Context(), roomID)
	if err != nil {
		a.logger.Error("failed to get history", "error", err, "room_id", roomID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	senders := newSenderCache(a.users)
	response := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		response[i] = a.messageResponse(r.Context(), senders, msg)
	}
	a.writeJSON(w, http.StatusOK, response)
}

// handlePostMessage handles POST /api/rooms/{id}/messages.
// Membership is informational: any authenticated user may post to any
// existing room.
func (a *API) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		a.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID, ok := a.pathID(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := a.ledger.Append(r.Context(), roomID, identity.UserID, req.Content)
	switch {
	case errors.Is(err, ledger.ErrEmptyContent):
		a.sendJSONError(w, http.StatusBadRequest, "message content is empty")
		return
	case errors.Is(err, store.ErrNotFound):
		a.sendJSONError(w, http.StatusNotFound, "room not found")
		return
	case err != nil:
		a.logger.Error("failed to post message", "error", err, "room_id", roomID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.writeJSON(w, http.StatusCreated, MessageResponse{
		ID:      msg.ID,
		Sender:  identity.Username,
		Content: msg.Content,
		Time:    msg.CreatedAt.Format(messageTimeFormat),
	})
}

// handlePoll handles GET /api/rooms/{id}/poll?last_message_id=N.
// Returns the next unseen message or JSON null when there is nothing
// new. A nonexistent room also yields null; polling never blocks and
// never errors for the normal "caught up" case.
func (a *API) handlePoll(w http.ResponseWriter, r *http.Request) {
	roomID, ok := a.pathID(w, r)
	if !ok {
		return
	}

	var lastSeenID int64
	if raw := r.URL.Query().Get("last_message_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			a.sendJSONError(w, http.StatusBadRequest, "last_message_id must be a non-negative integer")
			return
		}
		lastSeenID = parsed
	}

	msg, err := a.poll.Next(r.Context(), roomID, lastSeenID)
	if err != nil {
		a.logger.Error("failed to poll", "error", err, "room_id", roomID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if msg == nil {
		a.writeJSON(w, http.StatusOK, nil)
		return
	}

	senders := newSenderCache(a.users)
	a.writeJSON(w, http.StatusOK, a.messageResponse(r.Context(), senders, msg))
}

// handleDeleteMessage handles DELETE /api/messages/{id}.
func (a *API) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		a.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID, ok := a.pathID(w, r)
	if !ok {
		return
	}

	err := a.ledger.Delete(r.Context(), messageID, identity.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.sendJSONError(w, http.StatusNotFound, "message not found")
		return
	case errors.Is(err, ledger.ErrNotOwner):
		a.sendJSONError(w, http.StatusForbidden, "not your message")
		return
	case err != nil:
		a.logger.Error("failed to delete message", "error", err, "message_id", messageID)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAdminListUsers handles GET /api/admin/users.
func (a *API) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	allUsers, err := a.users.List(r.Context())
	if err != nil {
		a.logger.Error("failed to list users", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]UserResponse, len(allUsers))
	for i, u := range allUsers {
		response[i] = userResponse(u)
	}
	a.writeJSON(w, http.StatusOK, response)
}

// handleAdminListRooms handles GET /api/admin/rooms.
func (a *API) handleAdminListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.registry.ListRooms(r.Context())
	if err != nil {
		a.logger.Error("failed to list rooms", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = roomResponse(room)
	}
	a.writeJSON(w, http.StatusOK, response)
}

// pathID extracts the {id} path segment as an int64, writing a 400
// response and returning false when it is malformed.
func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		a.sendJSONError(w, http.StatusBadRequest, "invalid id in path")
		return 0, false
	}
	return id, true
}

// senderCache resolves user IDs to usernames, memoized per request so
// a long history hits the store once per distinct author.
type senderCache struct {
	users *users.Service
	names map[int64]string
}

func newSenderCache(u *users.Service) *senderCache {
	return &senderCache{users: u, names: make(map[int64]string)}
}

func (c *senderCache) name(ctx context.Context, userID int64) string {
	if name, ok := c.names[userID]; ok {
		return name
	}
	name := "unknown"
	if u, err := c.users.Get(ctx, userID); err == nil {
		name = u.Username
	}
	c.names[userID] = name
	return name
}

// messageResponse converts a stored message to its client representation.
func (a *API) messageResponse(ctx context.Context, senders *senderCache, msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:      msg.ID,
		Sender:  senders.name(ctx, msg.UserID),
		Content: msg.Content,
		Time:    msg.CreatedAt.Format(messageTimeFormat),
	}
}

// userResponse converts a stored user to its JSON representation.
func userResponse(u *store.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Admin:         u.Admin,
		Active:        u.Active,
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		resp.LastLogin = u.LastLogin.Format(time.RFC3339)
	}
	return resp
}

// roomResponse converts a stored room to its JSON representation.
func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (a *API) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
