// Package auth provides token issuing, password hashing, request
// authentication and GitHub sign-in for the API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client posts email + password to /api/auth/token/login/
//  2. Server checks the bcrypt hash and issues a signed JWT
//  3. Client sends it back as "Authorization: Token <jwt>" (or Bearer, or
//     the "token" cookie set by the GitHub callback)
//  4. Middleware validates the JWT and puts the user id in the context
//  5. /api/auth/token/logout/ revokes the token's id until it would have
//     expired anyway
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"42","jti":"c9v...","exp":1234567890,"iss":"foodgram"}
//
// The signature is checked with the secret alone; only logout needs state.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "foodgram"

// DefaultTTL is used when the configured token lifetime is zero.
const DefaultTTL = 24 * time.Hour

// ErrRevoked is returned by Validate for tokens passed to Revoke.
var ErrRevoked = errors.New("auth: token revoked")

// TokenService handles JWT creation, validation and revocation.
//
// Revoked token ids live in memory until their expiry passes, so a
// restart forgets them. Tokens are short-lived enough that this is the
// accepted trade-off for a single-process deployment.
type TokenService struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // jti → expiry
	now     func() time.Time
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. The secret should be at least 32 bytes of random data in
// production. Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}, nil
}

// claims is the JWT payload. Subject holds the decimal user id and ID a
// unique xid so a single token can be revoked.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates a signed token for userID using the configured TTL.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom lifetime. Negative
// durations produce already-expired tokens, which tests rely on.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns the user id it carries.
//
// Rejected: wrong algorithm, bad signature, wrong issuer, missing or past
// expiry, non-numeric subject, revoked id.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return 0, err
	}

	if s.isRevoked(c.ID) {
		return 0, ErrRevoked
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: token has no valid subject")
	}

	return userID, nil
}

// Revoke invalidates a token until its natural expiry. Revoking an invalid
// or already expired token is an error; revoking twice is not.
func (s *TokenService) Revoke(tokenStr string) error {
	c, err := s.parse(tokenStr)
	if err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("auth: token has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[c.ID] = c.ExpiresAt.Time
	return nil
}

func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	return c, nil
}

func (s *TokenService) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}
