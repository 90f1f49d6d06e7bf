// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Covers bearer extraction, token validation, account status and admin gating

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallway-chat/hallway/internal/store"
)

func newAuthFixture(t *testing.T) (*store.SQLiteStore, *JWTCodec) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, newTestCodec(t)
}

// echoIdentity is a terminal handler that records the resolved identity
func echoIdentity(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestHTTPAuthMiddleware_Success(t *testing.T) {
	s, codec := newAuthFixture(t)
	ctx := context.Background()

	user := &store.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Active: true, Admin: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, user))

	token, err := codec.Issue(user.ID, time.Hour)
	require.NoError(t, err)

	var got *Identity
	handler := HTTPAuthMiddleware(s, codec)(echoIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.Admin)
}

func TestHTTPAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	s, codec := newAuthFixture(t)

	var got *Identity
	handler := HTTPAuthMiddleware(s, codec)(echoIdentity(&got))

	cases := map[string]string{
		"missing": "",
		"no bearer prefix": "Token abc",
		"empty token":      "Bearer ",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, got)
		})
	}
}

func TestHTTPAuthMiddleware_UnknownUser(t *testing.T) {
	s, codec := newAuthFixture(t)

	token, err := codec.Issue(9999, time.Hour)
	require.NoError(t, err)

	var got *Identity
	handler := HTTPAuthMiddleware(s, codec)(echoIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPAuthMiddleware_DisabledAccount(t *testing.T) {
	s, codec := newAuthFixture(t)
	ctx := context.Background()

	user := &store.User{Username: "mallory", Email: "m@example.com", PasswordHash: "x", Active: false, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, user))

	token, err := codec.Issue(user.ID, time.Hour)
	require.NoError(t, err)

	var got *Identity
	handler := HTTPAuthMiddleware(s, codec)(echoIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminHTTP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdminHTTP()(ok)

	// No identity at all
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated but not admin
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: 1, Username: "alice"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: 1, Username: "root", Admin: true}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
