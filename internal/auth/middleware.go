package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the
// values stored under it.
type contextKey string

const (
	userIDKey contextKey = "userID"
	tokenKey  contextKey = "token"
)

// CookieName is the cookie the GitHub callback sets. API clients use the
// Authorization header instead.
const CookieName = "token"

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token with 401 and stores
// the user id in the context otherwise.
//
// Token sources, first match wins:
//
//	Authorization: Token <jwt>
//	Authorization: Bearer <jwt>
//	Cookie: token=<jwt>
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, userID, err := authenticate(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", "Token")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"Authentication credentials were not provided."}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID, raw)))
		})
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// lets anonymous requests through unchanged. Public listings use it so
// is_favorited and is_subscribed can be computed for signed-in viewers.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, userID, err := authenticate(r, tokens); err == nil {
				r = r.WithContext(withIdentity(r.Context(), userID, raw))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user id, or (0, false) for
// anonymous requests.
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// TokenFromContext returns the raw token that authenticated the request.
// Logout uses it to revoke exactly that token.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey).(string)
	return tok, ok && tok != ""
}

// WithUserID returns a context that carries userID as the authenticated
// user. Handler tests use it in place of a real token.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func withIdentity(ctx context.Context, userID int64, raw string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, tokenKey, raw)
}

func authenticate(r *http.Request, tokens *TokenService) (string, int64, error) {
	raw := extractToken(r)
	if raw == "" {
		return "", 0, errNoToken
	}
	userID, err := tokens.Validate(raw)
	if err != nil {
		return "", 0, err
	}
	return raw, userID, nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && (strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			return strings.TrimSpace(value)
		}
		return ""
	}

	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
