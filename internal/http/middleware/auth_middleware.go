package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/perch-social/perch/internal/domain"
	"github.com/perch-social/perch/internal/http/response"
	"github.com/perch-social/perch/internal/service"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionValidator is the slice of the session service the middleware needs.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.User, error)
}

// SessionTokenFromRequest reads the session token from X-Session-Token, with
// Authorization: Bearer accepted as a fallback.
func SessionTokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Session-Token")); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// SessionAuthMiddleware resolves the request's session token and stores the
// user in the context. It fails closed: a storage or cache-backend failure is
// a 503, never a pass-through.
func SessionAuthMiddleware(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionTokenFromRequest(r)
			if token == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token", nil)
				return
			}
			user, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrSessionExpired) {
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session token", nil)
					return
				}
				response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "session validation unavailable", nil)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*domain.User)
	return u, ok
}
