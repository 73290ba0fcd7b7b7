// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *Identity for the authenticated caller
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: all protected API endpoints
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, activity log
	RequestIDKey Key = "request_id"
)

// Identity describes the authenticated user attached to a request.
type Identity struct {
	UserID int64
	Email  string
}

// WithIdentity attaches the caller identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom extracts the caller identity from the context, if present.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*Identity)
	return id, ok
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID from the context.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
