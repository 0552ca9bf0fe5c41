package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/excel-analytics/internal/core"
	webmw "github.com/JonMunkholm/excel-analytics/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for the
// activity log.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, webmw.ClientIP(r), r.UserAgent())
}

// currentUser returns the user JWTAuth attached to r.
func currentUser(r *http.Request) *core.User {
	return webmw.UserFromContext(r.Context())
}
