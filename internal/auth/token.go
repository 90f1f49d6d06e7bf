// ABOUTME: JWT issuing and verification for session and email verification tokens
// ABOUTME: Uses HS256 signing with configurable secret and purpose-scoped claims

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Token purposes. A session token is useless as a verification link and
// vice versa; the purpose claim keeps the two from being swapped.
const (
	purposeSession     = "session"
	purposeVerifyEmail = "verify_email"
)

// TokenIssuer defines the interface for minting user tokens
type TokenIssuer interface {
	Issue(userID int64, expiresIn time.Duration) (string, error)
	IssueEmailVerification(userID int64, expiresIn time.Duration) (string, error)
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (userID int64, err error)
	VerifyEmailVerification(tokenString string) (userID int64, err error)
}

// JWTCodec implements TokenIssuer and TokenVerifier using HS256 signed JWTs
type JWTCodec struct {
	secret []byte
}

// NewJWTCodec creates a codec with the given signing secret
func NewJWTCodec(secret []byte) (*JWTCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &JWTCodec{secret: secret}, nil
}

// Issue creates a session token for the given user ID
func (c *JWTCodec) Issue(userID int64, expiresIn time.Duration) (string, error) {
	return c.issue(userID, purposeSession, expiresIn)
}

// IssueEmailVerification creates a short-lived token proving ownership
// of the email address the user registered with
func (c *JWTCodec) IssueEmailVerification(userID int64, expiresIn time.Duration) (string, error) {
	return c.issue(userID, purposeVerifyEmail, expiresIn)
}

func (c *JWTCodec) issue(userID int64, purpose string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"pur": purpose,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify validates a session token and extracts the user ID from the "sub" claim
func (c *JWTCodec) Verify(tokenString string) (int64, error) {
	return c.verify(tokenString, purposeSession)
}

// VerifyEmailVerification validates an email verification token
func (c *JWTCodec) VerifyEmailVerification(tokenString string) (int64, error) {
	return c.verify(tokenString, purposeVerifyEmail)
}

func (c *JWTCodec) verify(tokenString, purpose string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	if pur, _ := claims["pur"].(string); pur != purpose {
		return 0, fmt.Errorf("%w: wrong token purpose", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed sub claim", ErrInvalidToken)
	}

	return userID, nil
}

// Ensure JWTCodec implements both interfaces
var (
	_ TokenIssuer   = (*JWTCodec)(nil)
	_ TokenVerifier = (*JWTCodec)(nil)
)
