package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "activity_ip"
	ctxKeyUserAgent contextKey = "activity_ua"
)

// ContextWithClient records the caller's IP address and User-Agent so
// activity entries written while serving the request carry them.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	if ip != "" {
		ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, userAgent)
	}
	return ctx
}

// IPAddressFromContext returns the recorded client IP, or nil.
func IPAddressFromContext(ctx context.Context) *string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return &v
	}
	return nil
}

// UserAgentFromContext returns the recorded User-Agent, or nil.
func UserAgentFromContext(ctx context.Context) *string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return &v
	}
	return nil
}
