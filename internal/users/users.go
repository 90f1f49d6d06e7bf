// ABOUTME: Account service for registration, login and email verification
// ABOUTME: Hashes passwords with bcrypt and issues session tokens on login

package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hallway-chat/hallway/internal/auth"
	"github.com/hallway-chat/hallway/internal/mail"
	"github.com/hallway-chat/hallway/internal/store"
)

// Account errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password too short")
)

// Username validation: alphanumeric + underscores, starts with a letter, 3-32 characters
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

// emailRegex is a deliberately loose shape check; real validation is the
// verification mail itself
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// verificationTokenTTL is how long an email verification link stays valid
const verificationTokenTTL = 24 * time.Hour

// UserStore defines what the account service needs from storage
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	SetEmailVerified(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*store.User, error)
}

// Service manages user accounts
type Service struct {
	store    UserStore
	tokens   auth.TokenIssuer
	verifier auth.TokenVerifier
	mailer   mail.Sender
	baseURL  string
	tokenTTL time.Duration
	logger   *slog.Logger
}

// Config holds account service construction parameters
type Config struct {
	// BaseURL is the external URL used to build verification links
	BaseURL string
	// SessionTTL is how long issued session tokens stay valid
	SessionTTL time.Duration
}

// New creates an account service. codec handles both issuing and
// verifying tokens; mailer delivers verification links.
func New(s UserStore, codec *auth.JWTCodec, mailer mail.Sender, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:    s,
		tokens:   codec,
		verifier: codec,
		mailer:   mailer,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokenTTL: cfg.SessionTTL,
		logger:   logger.With("component", "users"),
	}
}

// Register creates a new account. Usernames and emails are unique;
// collisions surface as store.ErrUsernameTaken / store.ErrEmailTaken.
// A verification mail is sent best-effort: failure to deliver is logged
// and does not fail registration.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if !usernameRegex.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	s.sendVerificationMail(ctx, user)
	return user, nil
}

// sendVerificationMail delivers the verification link, logging failures
func (s *Service) sendVerificationMail(ctx context.Context, user *store.User) {
	token, err := s.tokens.IssueEmailVerification(user.ID, verificationTokenTTL)
	if err != nil {
		s.logger.Error("failed to issue verification token", "error", err, "user_id", user.ID)
		return
	}

	link := s.baseURL + "/api/verify-email?token=" + token
	body := "Click the link below to verify your email address:\n\n" +
		link + "\n\n" +
		"This link is valid for 24 hours.\n"

	if err := s.mailer.Send(ctx, user.Email, "Verify your email", body); err != nil {
		s.logger.Error("failed to send verification mail", "error", err, "user_id", user.ID)
	}
}

// Login checks credentials and returns the user plus a session token.
// The last-login timestamp is updated on success. Unknown username and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	if !user.Active {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", fmt.Errorf("recording login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(user.ID, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

// VerifyEmail redeems a verification token and marks the account's
// email address as verified
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.verifier.VerifyEmailVerification(token)
	if err != nil {
		return err
	}

	if err := s.store.SetEmailVerified(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("email verified", "user_id", userID)
	return nil
}

// Get retrieves a user by ID.
// Returns store.ErrNotFound if the user doesn't exist.
func (s *Service) Get(ctx context.Context, id int64) (*store.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns all users, for the admin surface
func (s *Service) List(ctx context.Context) ([]*store.User, error) {
	return s.store.ListUsers(ctx)
}
