package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/excel-analytics/internal/core"
	"github.com/JonMunkholm/excel-analytics/internal/logging"
)

// ErrNoToken means the request carried no bearer token.
var ErrNoToken = errors.New("no token provided")

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*core.User, error)
}

// ErrorResponder writes an error response for a rejected request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

type userKey struct{}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, u *core.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by JWTAuth, or nil.
func UserFromContext(ctx context.Context) *core.User {
	u, _ := ctx.Value(userKey{}).(*core.User)
	return u
}

// JWTAuth returns middleware that requires an "Authorization: Bearer <token>"
// header naming an active user. The user is stored on the request context
// for handlers and for the request logger.
func JWTAuth(auth Authenticator, fail ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				fail(w, r, ErrNoToken)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				slog.Warn("auth: rejected token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				fail(w, r, err)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = logging.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// It must run after JWTAuth.
func RequireAdmin(fail ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				fail(w, r, ErrNoToken)
				return
			}
			if user.Role != core.RoleAdmin {
				slog.Warn("auth: admin route denied",
					"path", r.URL.Path,
					"user_id", user.ID,
				)
				fail(w, r, core.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
